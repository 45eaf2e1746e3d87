package billing

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"social-signin.app/payments/internal/logger"
	"social-signin.app/payments/internal/metrics"
	"social-signin.app/payments/models"
	"social-signin.app/payments/storage"
)

// CheckoutBundle carries everything the mobile payment sheet needs to
// confirm a new or updated subscription.
type CheckoutBundle struct {
	CustomerID                string `json:"customerId"`
	EphemeralKeySecret        string `json:"ephemeralKeySecret"`
	PaymentIntentClientSecret string `json:"paymentIntentClientSecret"`
	SubscriptionID            string `json:"subscriptionId"`
	CurrentPriceID            string `json:"currentPriceId"`
}

// Service owns the subscription registry and drives the payment
// provider. All operations are keyed by customer email.
type Service struct {
	store    storage.Store
	provider PaymentProvider
	metrics  metrics.Metrics

	// resolveGroup collapses concurrent resolutions for the same email
	// into a single provider round trip.
	resolveGroup singleflight.Group

	// emailLocks serializes commands per email so two writes for the
	// same customer never interleave.
	emailLocks map[string]*sync.Mutex
	locksMutex sync.Mutex
}

func NewService(store storage.Store, provider PaymentProvider, m metrics.Metrics) *Service {
	if m == nil {
		m = metrics.Noop{}
	}
	return &Service{
		store:      store,
		provider:   provider,
		metrics:    m,
		emailLocks: make(map[string]*sync.Mutex),
	}
}

func (s *Service) lockEmail(email string) *sync.Mutex {
	s.locksMutex.Lock()
	mu, ok := s.emailLocks[email]
	if !ok {
		mu = &sync.Mutex{}
		s.emailLocks[email] = mu
	}
	s.locksMutex.Unlock()

	mu.Lock()
	return mu
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ResolveCurrentSubscription returns the customer's current active
// subscription, or nil when there is none. The cached registry record is
// revalidated against the provider on every call; stale records are
// dropped and the customer's live subscriptions are rediscovered.
func (s *Service) ResolveCurrentSubscription(ctx context.Context, email string) (*models.Subscription, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, validationErrorf("email is required")
	}

	result, err, _ := s.resolveGroup.Do(email, func() (interface{}, error) {
		return s.resolve(ctx, email)
	})
	if err != nil {
		s.metrics.RecordCommand("resolve", "error")
		return nil, err
	}
	s.metrics.RecordCommand("resolve", "ok")

	sub, _ := result.(*models.Subscription)
	return sub, nil
}

func (s *Service) resolve(ctx context.Context, email string) (*models.Subscription, error) {
	cached, err := s.store.GetSubscription(ctx, email)
	if err != nil {
		return nil, err
	}

	if cached != nil {
		// Status is the only thing revalidated: an active subscription
		// makes the cached record authoritative as stored.
		live, err := s.provider.GetSubscription(ctx, cached.SubscriptionID)
		if err == nil && live.Status == StatusActive {
			return cached, nil
		}

		// Gone or no longer active: the record is stale.
		logger.Info("Dropping stale subscription record", map[string]interface{}{
			"email":           email,
			"subscription_id": cached.SubscriptionID,
		})
		if err := s.store.DeleteSubscription(ctx, email); err != nil {
			return nil, err
		}
	}

	return s.discover(ctx, email)
}

// discover looks for an active subscription the registry does not know
// about, e.g. after a restart with the in-memory store.
func (s *Service) discover(ctx context.Context, email string) (*models.Subscription, error) {
	customerID, err := s.customerID(ctx, email)
	if err != nil {
		return nil, err
	}
	if customerID == "" {
		return nil, nil
	}

	subs, err := s.provider.ListActiveSubscriptions(ctx, customerID, 10)
	if err != nil {
		return nil, err
	}

	// The list is already filtered server-side, but the status is
	// checked again here so a lagging filter can't promote a
	// non-active subscription to current.
	var found *ProviderSubscription
	for _, sub := range subs {
		if sub.Status == StatusActive {
			found = sub
			break
		}
	}
	if found == nil {
		return nil, nil
	}

	record := &models.Subscription{
		SubscriptionID: found.ID,
		PriceID:        found.PriceID,
		CustomerID:     customerID,
	}
	if err := s.store.SaveSubscription(ctx, email, record); err != nil {
		return nil, err
	}

	logger.Info("Recovered subscription from provider", map[string]interface{}{
		"email":           email,
		"subscription_id": record.SubscriptionID,
	})

	return record, nil
}

// customerID returns the provider customer id for the email, consulting
// the local customer cache before searching the provider. "" means the
// customer does not exist.
func (s *Service) customerID(ctx context.Context, email string) (string, error) {
	customer, err := s.store.GetCustomer(ctx, email)
	if err != nil {
		return "", err
	}
	if customer != nil {
		return customer.StripeCustomerID, nil
	}

	customerID, err := s.provider.FindCustomerByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if customerID != "" {
		if err := s.store.SaveCustomer(ctx, &models.Customer{
			Email:            email,
			StripeCustomerID: customerID,
			CreatedAt:        time.Now(),
		}); err != nil {
			return "", err
		}
	}

	return customerID, nil
}

// CreateSubscription starts a new incomplete subscription on the price
// and returns the checkout bundle the client confirms. The customer is
// created on first use.
func (s *Service) CreateSubscription(ctx context.Context, email, priceID string) (*CheckoutBundle, error) {
	email = normalizeEmail(email)
	if email == "" || priceID == "" {
		s.metrics.RecordCommand("create", "invalid")
		return nil, validationErrorf("email and priceId are required")
	}

	mu := s.lockEmail(email)
	defer mu.Unlock()

	customerID, err := s.ensureCustomer(ctx, email)
	if err != nil {
		s.metrics.RecordCommand("create", "error")
		return nil, err
	}

	sub, err := s.provider.CreateSubscription(ctx, customerID, priceID)
	if err != nil {
		s.metrics.RecordCommand("create", "error")
		return nil, err
	}

	ephemeralKey, err := s.provider.CreateEphemeralKey(ctx, customerID)
	if err != nil {
		s.metrics.RecordCommand("create", "error")
		return nil, err
	}

	record := &models.Subscription{
		SubscriptionID: sub.ID,
		PriceID:        priceID,
		CustomerID:     customerID,
	}
	if err := s.store.SaveSubscription(ctx, email, record); err != nil {
		s.metrics.RecordCommand("create", "error")
		return nil, err
	}

	logger.Info("Created subscription", map[string]interface{}{
		"email":           email,
		"subscription_id": sub.ID,
		"price_id":        priceID,
	})
	s.metrics.RecordCommand("create", "ok")

	return &CheckoutBundle{
		CustomerID:                customerID,
		EphemeralKeySecret:        ephemeralKey,
		PaymentIntentClientSecret: sub.PaymentClientSecret,
		SubscriptionID:            sub.ID,
		CurrentPriceID:            priceID,
	}, nil
}

func (s *Service) ensureCustomer(ctx context.Context, email string) (string, error) {
	customerID, err := s.customerID(ctx, email)
	if err != nil {
		return "", err
	}
	if customerID != "" {
		return customerID, nil
	}

	customerID, err = s.provider.CreateCustomer(ctx, email)
	if err != nil {
		return "", err
	}

	if err := s.store.SaveCustomer(ctx, &models.Customer{
		Email:            email,
		StripeCustomerID: customerID,
		CreatedAt:        time.Now(),
	}); err != nil {
		return "", err
	}

	return customerID, nil
}

// UpdateSubscription moves the customer's subscription to a new price.
// The command is gated on the registry record alone, not on live status:
// an incomplete subscription from a fresh create is still updatable. The
// returned bundle lets the client re-confirm payment when the plan
// change produces a new invoice.
func (s *Service) UpdateSubscription(ctx context.Context, email, newPriceID string) (*CheckoutBundle, error) {
	email = normalizeEmail(email)
	if email == "" || newPriceID == "" {
		s.metrics.RecordCommand("update", "invalid")
		return nil, validationErrorf("email and newPriceId are required")
	}

	mu := s.lockEmail(email)
	defer mu.Unlock()

	current, err := s.store.GetSubscription(ctx, email)
	if err != nil {
		s.metrics.RecordCommand("update", "error")
		return nil, err
	}
	if current == nil {
		s.metrics.RecordCommand("update", "missing")
		return nil, ErrNoSubscription
	}

	updated, err := s.provider.UpdateSubscriptionPrice(ctx, current.SubscriptionID, newPriceID)
	if err != nil {
		s.metrics.RecordCommand("update", "error")
		return nil, err
	}

	ephemeralKey, err := s.provider.CreateEphemeralKey(ctx, current.CustomerID)
	if err != nil {
		s.metrics.RecordCommand("update", "error")
		return nil, err
	}

	record := &models.Subscription{
		SubscriptionID: updated.ID,
		PriceID:        newPriceID,
		CustomerID:     current.CustomerID,
	}
	if err := s.store.SaveSubscription(ctx, email, record); err != nil {
		s.metrics.RecordCommand("update", "error")
		return nil, err
	}

	logger.Info("Updated subscription", map[string]interface{}{
		"email":           email,
		"subscription_id": updated.ID,
		"price_id":        newPriceID,
	})
	s.metrics.RecordCommand("update", "ok")

	return &CheckoutBundle{
		CustomerID:                current.CustomerID,
		EphemeralKeySecret:        ephemeralKey,
		PaymentIntentClientSecret: updated.PaymentClientSecret,
		SubscriptionID:            updated.ID,
		CurrentPriceID:            newPriceID,
	}, nil
}

// CancelSubscription cancels the subscription the registry knows about.
// Like update, the gate is the registry record, not live status. The
// record is dropped even if the provider cancel fails, since a failed
// cancel leaves it suspect either way and the next resolution
// rediscovers whatever actually survived.
func (s *Service) CancelSubscription(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		s.metrics.RecordCommand("cancel", "invalid")
		return validationErrorf("email is required")
	}

	mu := s.lockEmail(email)
	defer mu.Unlock()

	current, err := s.store.GetSubscription(ctx, email)
	if err != nil {
		s.metrics.RecordCommand("cancel", "error")
		return err
	}
	if current == nil {
		s.metrics.RecordCommand("cancel", "missing")
		return ErrNoSubscription
	}

	cancelErr := s.provider.CancelSubscription(ctx, current.SubscriptionID)

	if err := s.store.DeleteSubscription(ctx, email); err != nil {
		s.metrics.RecordCommand("cancel", "error")
		return err
	}

	if cancelErr != nil {
		s.metrics.RecordCommand("cancel", "error")
		return cancelErr
	}

	logger.Info("Cancelled subscription", map[string]interface{}{
		"email":           email,
		"subscription_id": current.SubscriptionID,
	})
	s.metrics.RecordCommand("cancel", "ok")

	return nil
}
