package models

import "time"

// User mirrors the subscription state kept for an identity-provider user.
type User struct {
	ID                  string     `bson:"_id" json:"id"`
	Email               string     `bson:"email,omitempty" json:"email,omitempty"`
	HasActiveMembership bool       `bson:"has_active_membership" json:"has_active_membership"`
	StripeCustomerID    string     `bson:"stripe_customer_id,omitempty" json:"-"`
	SubscriptionID      string     `bson:"subscription_id,omitempty" json:"subscription_id,omitempty"`
	SubscriptionStatus  string     `bson:"subscription_status,omitempty" json:"subscription_status,omitempty"`
	LastPaymentDate     *time.Time `bson:"last_payment_date,omitempty" json:"last_payment_date,omitempty"`
	CreatedAt           time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `bson:"updated_at" json:"updated_at"`
}

// Plan is the subscription snapshot the quota gate needs.
type Plan struct {
	HasActiveMembership bool `json:"has_active_membership"`
}

type PlanResponse struct {
	HasActiveMembership bool   `json:"has_active_membership"`
	Tier                string `json:"tier"`
	QuestionLimit       int    `json:"question_limit"`
	DocumentLimit       int    `json:"document_limit"`
	DocumentCount       int64  `json:"document_count"`
	CanDelete           bool   `json:"can_delete"`
}
