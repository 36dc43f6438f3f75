package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"saascribe-platform/internal/database"
	"saascribe-platform/internal/logger"
	"saascribe-platform/models"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
)

const signatureTolerance = 5 * time.Minute

var (
	ErrWebhookSignature = errors.New("invalid webhook signature")
	ErrUnknownCustomer  = errors.New("unknown billing customer")
	ErrMalformedEvent   = errors.New("malformed billing event")
)

// SubscriptionStore is implemented by database.UserRepository.
type SubscriptionStore interface {
	FindByStripeCustomer(ctx context.Context, customerID string) (*models.User, error)
	UpdateSubscription(ctx context.Context, userID string, u database.SubscriptionUpdate) error
}

// BillingService applies Stripe webhooks to users' membership flag.
type BillingService struct {
	users  SubscriptionStore
	secret string
	now    func() time.Time
}

func NewBillingService(users SubscriptionStore, webhookSecret string) *BillingService {
	return &BillingService{users: users, secret: webhookSecret, now: time.Now}
}

// HandleWebhook verifies and applies one event. Unknown event types and
// events without a customer are acknowledged without changes.
func (s *BillingService) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) error {
	event, err := s.constructEvent(payload, signatureHeader)
	if err != nil {
		return err
	}

	log := logger.FromContext(ctx).With("event_id", event.ID, "event_type", string(event.Type))

	var (
		update     database.SubscriptionUpdate
		customerID string
	)
	switch string(event.Type) {
	case models.EventSubscriptionCreated, models.EventSubscriptionUpdated:
		var sub stripe.Subscription
		if err := decodeObject(event, &sub); err != nil {
			return err
		}
		status := string(sub.Status)
		update.HasActiveMembership = sub.Status == stripe.SubscriptionStatusActive || sub.Status == stripe.SubscriptionStatusTrialing
		update.SubscriptionID = &sub.ID
		update.SubscriptionStatus = &status
		customerID = customerOf(sub.Customer)
	case models.EventInvoicePaid:
		var inv stripe.Invoice
		if err := decodeObject(event, &inv); err != nil {
			return err
		}
		paid := s.now().UTC()
		if inv.Created > 0 {
			paid = time.Unix(inv.Created, 0).UTC()
		}
		update.HasActiveMembership = true
		update.LastPaymentDate = &paid
		if inv.Subscription != nil && inv.Subscription.ID != "" {
			update.SubscriptionID = &inv.Subscription.ID
		}
		customerID = customerOf(inv.Customer)
	case models.EventSubscriptionDeleted, models.EventSubscriptionCanceled:
		var sub stripe.Subscription
		if err := decodeObject(event, &sub); err != nil {
			return err
		}
		status := string(stripe.SubscriptionStatusCanceled)
		update.SubscriptionStatus = &status
		customerID = customerOf(sub.Customer)
	default:
		log.Info("ignoring billing event")
		return nil
	}

	if customerID == "" {
		log.Warn("billing event has no customer, acknowledging")
		return nil
	}
	user, err := s.users.FindByStripeCustomer(ctx, customerID)
	if errors.Is(err, database.ErrUserNotFound) {
		return ErrUnknownCustomer
	}
	if err != nil {
		return err
	}

	if err := s.users.UpdateSubscription(ctx, user.ID, update); err != nil {
		return fmt.Errorf("apply billing event: %w", err)
	}
	log.Info("membership updated", "user_id", user.ID, "active", update.HasActiveMembership)
	return nil
}

// constructEvent checks the Stripe-Signature header and decodes the event.
// Events from any account API version are accepted; only the fields read
// here need to be present.
func (s *BillingService) constructEvent(payload []byte, header string) (stripe.Event, error) {
	if s.secret == "" {
		return stripe.Event{}, ErrWebhookSignature
	}
	event, err := webhook.ConstructEventWithOptions(payload, header, s.secret, webhook.ConstructEventOptions{
		Tolerance:                signatureTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	switch {
	case err == nil:
		return event, nil
	case errors.Is(err, webhook.ErrNotSigned), errors.Is(err, webhook.ErrInvalidHeader),
		errors.Is(err, webhook.ErrNoValidSignature), errors.Is(err, webhook.ErrTooOld):
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrWebhookSignature, err)
	default:
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
}

func decodeObject(event stripe.Event, v any) error {
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return ErrMalformedEvent
	}
	if err := json.Unmarshal(event.Data.Raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return nil
}

func customerOf(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}
