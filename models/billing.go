package models

// Billing event types accepted by the webhook.
const (
	EventSubscriptionCreated  = "customer.subscription.created"
	EventSubscriptionUpdated  = "customer.subscription.updated"
	EventSubscriptionDeleted  = "customer.subscription.deleted"
	EventSubscriptionCanceled = "customer.subscription.canceled"
	EventInvoicePaid          = "invoice.payment_succeeded"
)
