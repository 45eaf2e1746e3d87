package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"social-signin.app/payments/billing"
	"social-signin.app/payments/storage"
)

// TestStore creates an empty in-memory registry for tests.
func TestStore() *storage.MemoryStore {
	return storage.NewMemoryStore()
}

// FakeProvider is an in-memory PaymentProvider. Tests seed customers and
// subscriptions directly and flip subscription statuses to simulate
// client-side payment confirmation.
type FakeProvider struct {
	mutex sync.Mutex

	customersByEmail map[string]string
	subscriptions    map[string]*billing.ProviderSubscription
	customerSubs     map[string][]string

	nextCustomer     int
	nextSubscription int

	// Calls records every provider method invoked, in order.
	Calls []string

	// Err, when set, is returned by every method.
	Err error

	// ListIgnoresStatus makes ListActiveSubscriptions return every
	// subscription regardless of status, simulating a provider whose
	// status filter lags behind recent transitions.
	ListIgnoresStatus bool
}

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		customersByEmail: make(map[string]string),
		subscriptions:    make(map[string]*billing.ProviderSubscription),
		customerSubs:     make(map[string][]string),
	}
}

func (f *FakeProvider) record(call string) {
	f.Calls = append(f.Calls, call)
}

// CallCount returns how many times the named method was invoked.
func (f *FakeProvider) CallCount(call string) int {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	count := 0
	for _, c := range f.Calls {
		if c == call {
			count++
		}
	}
	return count
}

func (f *FakeProvider) FindCustomerByEmail(ctx context.Context, email string) (string, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.record("FindCustomerByEmail")

	if f.Err != nil {
		return "", f.Err
	}
	return f.customersByEmail[email], nil
}

func (f *FakeProvider) CreateCustomer(ctx context.Context, email string) (string, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.record("CreateCustomer")

	if f.Err != nil {
		return "", f.Err
	}

	f.nextCustomer++
	customerID := fmt.Sprintf("cus_%d", f.nextCustomer)
	f.customersByEmail[email] = customerID
	return customerID, nil
}

func (f *FakeProvider) CreateSubscription(ctx context.Context, customerID, priceID string) (*billing.ProviderSubscription, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.record("CreateSubscription")

	if f.Err != nil {
		return nil, f.Err
	}

	f.nextSubscription++
	sub := &billing.ProviderSubscription{
		ID:                  fmt.Sprintf("sub_%d", f.nextSubscription),
		Status:              "incomplete",
		PriceID:             priceID,
		PaymentClientSecret: fmt.Sprintf("pi_%d_secret", f.nextSubscription),
	}
	f.subscriptions[sub.ID] = sub
	f.customerSubs[customerID] = append(f.customerSubs[customerID], sub.ID)

	copied := *sub
	return &copied, nil
}

func (f *FakeProvider) GetSubscription(ctx context.Context, subscriptionID string) (*billing.ProviderSubscription, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.record("GetSubscription")

	if f.Err != nil {
		return nil, f.Err
	}

	sub, ok := f.subscriptions[subscriptionID]
	if !ok {
		return nil, fmt.Errorf("no such subscription: %s", subscriptionID)
	}

	copied := *sub
	return &copied, nil
}

func (f *FakeProvider) UpdateSubscriptionPrice(ctx context.Context, subscriptionID, newPriceID string) (*billing.ProviderSubscription, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.record("UpdateSubscriptionPrice")

	if f.Err != nil {
		return nil, f.Err
	}

	sub, ok := f.subscriptions[subscriptionID]
	if !ok {
		return nil, fmt.Errorf("no such subscription: %s", subscriptionID)
	}

	sub.PriceID = newPriceID
	sub.PaymentClientSecret = fmt.Sprintf("%s_update_secret", subscriptionID)

	copied := *sub
	return &copied, nil
}

func (f *FakeProvider) CancelSubscription(ctx context.Context, subscriptionID string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.record("CancelSubscription")

	if f.Err != nil {
		return f.Err
	}

	sub, ok := f.subscriptions[subscriptionID]
	if !ok {
		return fmt.Errorf("no such subscription: %s", subscriptionID)
	}
	sub.Status = "canceled"
	return nil
}

func (f *FakeProvider) ListActiveSubscriptions(ctx context.Context, customerID string, limit int) ([]*billing.ProviderSubscription, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.record("ListActiveSubscriptions")

	if f.Err != nil {
		return nil, f.Err
	}

	var active []*billing.ProviderSubscription
	for _, id := range f.customerSubs[customerID] {
		sub := f.subscriptions[id]
		if !f.ListIgnoresStatus && sub.Status != billing.StatusActive {
			continue
		}
		copied := *sub
		active = append(active, &copied)
		if len(active) >= limit {
			break
		}
	}
	return active, nil
}

func (f *FakeProvider) CreateEphemeralKey(ctx context.Context, customerID string) (string, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.record("CreateEphemeralKey")

	if f.Err != nil {
		return "", f.Err
	}
	return fmt.Sprintf("ek_%s", customerID), nil
}

// ActivateSubscription simulates the client confirming payment.
func (f *FakeProvider) ActivateSubscription(subscriptionID string) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if sub, ok := f.subscriptions[subscriptionID]; ok {
		sub.Status = billing.StatusActive
	}
}

// SeedActiveSubscription registers a customer with an already-active
// subscription, as if it existed before the server started.
func (f *FakeProvider) SeedActiveSubscription(email, customerID, subscriptionID, priceID string) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	f.customersByEmail[email] = customerID
	f.subscriptions[subscriptionID] = &billing.ProviderSubscription{
		ID:      subscriptionID,
		Status:  billing.StatusActive,
		PriceID: priceID,
	}
	f.customerSubs[customerID] = append(f.customerSubs[customerID], subscriptionID)
}

// MakeJSONRequest sends a JSON request through the handler and returns
// the recorder.
func MakeJSONRequest(t *testing.T, handler http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Buffer
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		reader = bytes.NewBuffer(payload)
	} else {
		reader = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

// AssertErrorResponse checks status code and the error message body.
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	t.Helper()

	if w.Code != expectedStatus {
		t.Errorf("Expected status %d, got %d", expectedStatus, w.Code)
	}

	var response map[string]string
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}

	if response["error"] != expectedError {
		t.Errorf("Expected error '%s', got '%s'", expectedError, response["error"])
	}
}
