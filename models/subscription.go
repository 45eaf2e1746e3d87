package models

// Subscription is the registry record for one email address. It is a
// hint, not an authoritative view: the underlying subscription must be
// revalidated against Stripe before it is treated as current. Only a
// provider-reported "active" status makes it authoritative.
type Subscription struct {
	SubscriptionID string `json:"subscriptionId"`
	PriceID        string `json:"priceId,omitempty"`
	CustomerID     string `json:"customerId"`
}
