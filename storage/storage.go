package storage

import (
	"context"
	"sync"

	"social-signin.app/payments/models"
)

// Store is the registry the subscription service reads and writes. Both
// lookups return (nil, nil) when no record exists for the email.
type Store interface {
	GetSubscription(ctx context.Context, email string) (*models.Subscription, error)
	SaveSubscription(ctx context.Context, email string, sub *models.Subscription) error
	DeleteSubscription(ctx context.Context, email string) error

	GetCustomer(ctx context.Context, email string) (*models.Customer, error)
	SaveCustomer(ctx context.Context, customer *models.Customer) error

	Close() error
}

// MemoryStore keeps the registry in process memory. Nothing survives a
// restart; Stripe remains the source of truth either way.
type MemoryStore struct {
	mu            sync.RWMutex
	subscriptions map[string]models.Subscription
	customers     map[string]models.Customer
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subscriptions: make(map[string]models.Subscription),
		customers:     make(map[string]models.Customer),
	}
}

func (m *MemoryStore) GetSubscription(ctx context.Context, email string) (*models.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sub, exists := m.subscriptions[email]
	if !exists {
		return nil, nil
	}
	return &sub, nil
}

func (m *MemoryStore) SaveSubscription(ctx context.Context, email string, sub *models.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.subscriptions[email] = *sub
	return nil
}

func (m *MemoryStore) DeleteSubscription(ctx context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.subscriptions, email)
	return nil
}

func (m *MemoryStore) GetCustomer(ctx context.Context, email string) (*models.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	customer, exists := m.customers[email]
	if !exists {
		return nil, nil
	}
	return &customer, nil
}

func (m *MemoryStore) SaveCustomer(ctx context.Context, customer *models.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.customers[customer.Email] = *customer
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
