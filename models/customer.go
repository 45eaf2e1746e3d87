package models

import "time"

// Customer maps an email address to its Stripe customer. Created lazily
// on first interaction for an email and never deleted.
type Customer struct {
	Email            string
	StripeCustomerID string
	CreatedAt        time.Time
}
