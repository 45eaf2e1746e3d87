package stripe

import (
	"errors"
	"testing"

	"github.com/stripe/stripe-go/v83"

	"social-signin.app/payments/billing"
)

func TestToProviderSubscription_FullResponse(t *testing.T) {
	sub := &stripe.Subscription{
		ID:     "sub_123",
		Status: stripe.SubscriptionStatusActive,
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{
				{
					ID:    "si_1",
					Price: &stripe.Price{ID: "price_A"},
				},
			},
		},
		LatestInvoice: &stripe.Invoice{
			ConfirmationSecret: &stripe.InvoiceConfirmationSecret{
				ClientSecret: "pi_123_secret_456",
			},
		},
	}

	got := toProviderSubscription(sub)

	if got.ID != "sub_123" {
		t.Errorf("Expected id 'sub_123', got '%s'", got.ID)
	}
	if got.Status != "active" {
		t.Errorf("Expected status 'active', got '%s'", got.Status)
	}
	if got.PriceID != "price_A" {
		t.Errorf("Expected price 'price_A', got '%s'", got.PriceID)
	}
	if got.PaymentClientSecret != "pi_123_secret_456" {
		t.Errorf("Expected client secret, got '%s'", got.PaymentClientSecret)
	}
}

func TestToProviderSubscription_SparseResponse(t *testing.T) {
	// Retrieve without expansions returns neither an invoice
	// confirmation secret nor, for some statuses, items.
	sub := &stripe.Subscription{
		ID:     "sub_123",
		Status: stripe.SubscriptionStatusCanceled,
	}

	got := toProviderSubscription(sub)

	if got.Status != "canceled" {
		t.Errorf("Expected status 'canceled', got '%s'", got.Status)
	}
	if got.PriceID != "" {
		t.Errorf("Expected empty price, got '%s'", got.PriceID)
	}
	if got.PaymentClientSecret != "" {
		t.Errorf("Expected empty client secret, got '%s'", got.PaymentClientSecret)
	}
}

func TestToProviderSubscription_NilPrice(t *testing.T) {
	sub := &stripe.Subscription{
		ID:     "sub_123",
		Status: stripe.SubscriptionStatusActive,
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{{ID: "si_1"}},
		},
	}

	if got := toProviderSubscription(sub); got.PriceID != "" {
		t.Errorf("Expected empty price for nil item price, got '%s'", got.PriceID)
	}
}

func TestProviderErr_StripeMessage(t *testing.T) {
	err := providerErr("create_subscription", &stripe.Error{
		Msg: "No such price: 'price_bogus'",
	})

	if err.Error() != "No such price: 'price_bogus'" {
		t.Errorf("Expected Stripe's message verbatim, got '%s'", err.Error())
	}

	var perr *billing.ProviderError
	if !errors.As(err, &perr) {
		t.Fatal("Expected a ProviderError")
	}
	if perr.Op != "create_subscription" {
		t.Errorf("Expected op 'create_subscription', got '%s'", perr.Op)
	}
}

func TestProviderErr_PlainError(t *testing.T) {
	underlying := errors.New("connection refused")
	err := providerErr("get_subscription", underlying)

	if !errors.Is(err, underlying) {
		t.Error("Expected the underlying error to be wrapped")
	}
	if err.Msg != "" {
		t.Errorf("Expected no provider message for a plain error, got '%s'", err.Msg)
	}
}
