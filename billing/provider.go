package billing

import "context"

// StatusActive is the only subscription status treated as current.
// Everything else (incomplete, past_due, canceled, ...) is reconciled
// away.
const StatusActive = "active"

// ProviderSubscription is the provider-neutral view of a subscription
// used by the reconciler and the commands.
type ProviderSubscription struct {
	ID      string
	Status  string
	PriceID string

	// PaymentClientSecret is the client secret the mobile payment sheet
	// confirms. Only populated on create and update.
	PaymentClientSecret string
}

// PaymentProvider is the billing backend. The production implementation
// lives in billing/stripe.
type PaymentProvider interface {
	// FindCustomerByEmail returns the customer id for the email, or ""
	// when no customer exists.
	FindCustomerByEmail(ctx context.Context, email string) (string, error)

	CreateCustomer(ctx context.Context, email string) (string, error)

	// CreateSubscription starts an incomplete subscription whose first
	// invoice must be confirmed client-side.
	CreateSubscription(ctx context.Context, customerID, priceID string) (*ProviderSubscription, error)

	GetSubscription(ctx context.Context, subscriptionID string) (*ProviderSubscription, error)

	// UpdateSubscriptionPrice swaps the subscription's single item to
	// the new price.
	UpdateSubscriptionPrice(ctx context.Context, subscriptionID, newPriceID string) (*ProviderSubscription, error)

	CancelSubscription(ctx context.Context, subscriptionID string) error

	// ListActiveSubscriptions returns up to limit active subscriptions
	// for the customer, newest first.
	ListActiveSubscriptions(ctx context.Context, customerID string, limit int) ([]*ProviderSubscription, error)

	// CreateEphemeralKey mints a short-lived key the payment sheet uses
	// to act on the customer.
	CreateEphemeralKey(ctx context.Context, customerID string) (string, error)
}
