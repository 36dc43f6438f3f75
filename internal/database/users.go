package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"saascribe-platform/internal/config"
	"saascribe-platform/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

var ErrUserNotFound = errors.New("user not found")

// SubscriptionUpdate carries the fields a billing event may change. Nil
// pointers leave the stored value untouched.
type SubscriptionUpdate struct {
	HasActiveMembership bool
	SubscriptionID      *string
	SubscriptionStatus  *string
	LastPaymentDate     *time.Time
}

type UserRepository struct {
	col *mongo.Collection
	now func() time.Time
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{col: db.Collection(config.UsersCollection), now: time.Now}
}

// GetPlan returns the user's plan. Users without a record are on the free plan.
func (r *UserRepository) GetPlan(ctx context.Context, userID string) (models.Plan, error) {
	var user models.User
	err := r.col.FindOne(ctx, bson.M{"_id": userID}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Plan{}, nil
	}
	if err != nil {
		return models.Plan{}, fmt.Errorf("get plan: %w", err)
	}
	return models.Plan{HasActiveMembership: user.HasActiveMembership}, nil
}

func (r *UserRepository) FindByStripeCustomer(ctx context.Context, customerID string) (*models.User, error) {
	var user models.User
	err := r.col.FindOne(ctx, bson.M{"stripe_customer_id": customerID}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user by customer: %w", err)
	}
	return &user, nil
}

func (r *UserRepository) UpdateSubscription(ctx context.Context, userID string, u SubscriptionUpdate) error {
	set := bson.M{
		"has_active_membership": u.HasActiveMembership,
		"updated_at":            r.now(),
	}
	if u.SubscriptionID != nil {
		set["subscription_id"] = *u.SubscriptionID
	}
	if u.SubscriptionStatus != nil {
		set["subscription_status"] = *u.SubscriptionStatus
	}
	if u.LastPaymentDate != nil {
		set["last_payment_date"] = *u.LastPaymentDate
	}

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}
