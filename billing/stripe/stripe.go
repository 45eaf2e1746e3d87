// Package stripe implements billing.PaymentProvider on the Stripe API.
package stripe

import (
	"context"
	"errors"
	"time"

	"github.com/stripe/stripe-go/v83"

	"social-signin.app/payments/billing"
	"social-signin.app/payments/internal/metrics"
)

// EphemeralKeyAPIVersion pins the API version ephemeral keys are minted
// for. The mobile payment sheet breaks when the key's version and the
// SDK's version drift apart, so this moves in lockstep with the SDK.
const EphemeralKeyAPIVersion = "2025-08-27.basil"

// Provider talks to Stripe. All methods translate Stripe responses into
// the provider-neutral types the billing service consumes.
type Provider struct {
	client  *stripe.Client
	metrics metrics.Metrics
}

func New(apiKey string, m metrics.Metrics) *Provider {
	if m == nil {
		m = metrics.Noop{}
	}
	return &Provider{
		client:  stripe.NewClient(apiKey),
		metrics: m,
	}
}

func (p *Provider) observe(op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	p.metrics.RecordProviderCall(op, status)
	p.metrics.RecordProviderCallDuration(op, time.Since(start))
}

func (p *Provider) FindCustomerByEmail(ctx context.Context, email string) (customerID string, err error) {
	start := time.Now()
	defer func() { p.observe("find_customer", start, err) }()

	params := &stripe.CustomerListParams{
		Email: stripe.String(email),
	}
	params.Limit = stripe.Int64(1)

	for customer, iterErr := range p.client.V1Customers.List(ctx, params) {
		if iterErr != nil {
			err = providerErr("find_customer", iterErr)
			return "", err
		}
		return customer.ID, nil
	}

	return "", nil
}

func (p *Provider) CreateCustomer(ctx context.Context, email string) (customerID string, err error) {
	start := time.Now()
	defer func() { p.observe("create_customer", start, err) }()

	customer, createErr := p.client.V1Customers.Create(ctx, &stripe.CustomerCreateParams{
		Email: stripe.String(email),
	})
	if createErr != nil {
		err = providerErr("create_customer", createErr)
		return "", err
	}

	return customer.ID, nil
}

func (p *Provider) CreateSubscription(ctx context.Context, customerID, priceID string) (sub *billing.ProviderSubscription, err error) {
	start := time.Now()
	defer func() { p.observe("create_subscription", start, err) }()

	params := &stripe.SubscriptionCreateParams{
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionCreateItemParams{
			{Price: stripe.String(priceID)},
		},
		PaymentBehavior: stripe.String("default_incomplete"),
		PaymentSettings: &stripe.SubscriptionCreatePaymentSettingsParams{
			SaveDefaultPaymentMethod: stripe.String("on_subscription"),
		},
	}
	params.AddExpand("latest_invoice.confirmation_secret")

	created, createErr := p.client.V1Subscriptions.Create(ctx, params)
	if createErr != nil {
		err = providerErr("create_subscription", createErr)
		return nil, err
	}

	return toProviderSubscription(created), nil
}

func (p *Provider) GetSubscription(ctx context.Context, subscriptionID string) (sub *billing.ProviderSubscription, err error) {
	start := time.Now()
	defer func() { p.observe("get_subscription", start, err) }()

	retrieved, getErr := p.client.V1Subscriptions.Retrieve(ctx, subscriptionID, &stripe.SubscriptionRetrieveParams{})
	if getErr != nil {
		err = providerErr("get_subscription", getErr)
		return nil, err
	}

	return toProviderSubscription(retrieved), nil
}

func (p *Provider) UpdateSubscriptionPrice(ctx context.Context, subscriptionID, newPriceID string) (sub *billing.ProviderSubscription, err error) {
	start := time.Now()
	defer func() { p.observe("update_subscription", start, err) }()

	current, getErr := p.client.V1Subscriptions.Retrieve(ctx, subscriptionID, &stripe.SubscriptionRetrieveParams{})
	if getErr != nil {
		err = providerErr("update_subscription", getErr)
		return nil, err
	}
	if current.Items == nil || len(current.Items.Data) == 0 {
		err = &billing.ProviderError{Op: "update_subscription", Err: errors.New("subscription has no items")}
		return nil, err
	}

	params := &stripe.SubscriptionUpdateParams{
		Items: []*stripe.SubscriptionUpdateItemParams{
			{
				ID:    stripe.String(current.Items.Data[0].ID),
				Price: stripe.String(newPriceID),
			},
		},
		PaymentBehavior:   stripe.String("default_incomplete"),
		ProrationBehavior: stripe.String("always_invoice"),
		CancelAtPeriodEnd: stripe.Bool(false),
	}
	params.AddExpand("latest_invoice.confirmation_secret")

	updated, updateErr := p.client.V1Subscriptions.Update(ctx, subscriptionID, params)
	if updateErr != nil {
		err = providerErr("update_subscription", updateErr)
		return nil, err
	}

	return toProviderSubscription(updated), nil
}

func (p *Provider) CancelSubscription(ctx context.Context, subscriptionID string) (err error) {
	start := time.Now()
	defer func() { p.observe("cancel_subscription", start, err) }()

	if _, cancelErr := p.client.V1Subscriptions.Cancel(ctx, subscriptionID, &stripe.SubscriptionCancelParams{}); cancelErr != nil {
		err = providerErr("cancel_subscription", cancelErr)
		return err
	}

	return nil
}

func (p *Provider) ListActiveSubscriptions(ctx context.Context, customerID string, limit int) (subs []*billing.ProviderSubscription, err error) {
	start := time.Now()
	defer func() { p.observe("list_subscriptions", start, err) }()

	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String(billing.StatusActive),
	}
	params.Limit = stripe.Int64(int64(limit))

	for subscription, iterErr := range p.client.V1Subscriptions.List(ctx, params) {
		if iterErr != nil {
			err = providerErr("list_subscriptions", iterErr)
			return nil, err
		}
		subs = append(subs, toProviderSubscription(subscription))
		if len(subs) >= limit {
			break
		}
	}

	return subs, nil
}

func (p *Provider) CreateEphemeralKey(ctx context.Context, customerID string) (secret string, err error) {
	start := time.Now()
	defer func() { p.observe("create_ephemeral_key", start, err) }()

	key, createErr := p.client.V1EphemeralKeys.Create(ctx, &stripe.EphemeralKeyCreateParams{
		Customer:      stripe.String(customerID),
		StripeVersion: stripe.String(EphemeralKeyAPIVersion),
	})
	if createErr != nil {
		err = providerErr("create_ephemeral_key", createErr)
		return "", err
	}

	return key.Secret, nil
}

// toProviderSubscription flattens the fields the billing service needs.
// The expanded invoice confirmation secret is only present on create and
// update responses.
func toProviderSubscription(sub *stripe.Subscription) *billing.ProviderSubscription {
	result := &billing.ProviderSubscription{
		ID:     sub.ID,
		Status: string(sub.Status),
	}

	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		result.PriceID = sub.Items.Data[0].Price.ID
	}

	if sub.LatestInvoice != nil && sub.LatestInvoice.ConfirmationSecret != nil {
		result.PaymentClientSecret = sub.LatestInvoice.ConfirmationSecret.ClientSecret
	}

	return result
}

// providerErr wraps a Stripe failure, surfacing Stripe's own message
// when one is available.
func providerErr(op string, err error) *billing.ProviderError {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return &billing.ProviderError{Op: op, Msg: stripeErr.Msg, Err: err}
	}
	return &billing.ProviderError{Op: op, Err: err}
}
