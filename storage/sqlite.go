package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"social-signin.app/payments/models"
)

// SQLiteStore implements Store on a local SQLite file. Same
// last-writer-wins semantics as MemoryStore, just reachable across
// restarts when a DATABASE_URL is configured.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{
		db:   db,
		path: path,
	}

	if err := store.migrate(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	schema := `
      CREATE TABLE IF NOT EXISTS customers (
          email TEXT PRIMARY KEY,
          stripe_customer_id TEXT NOT NULL,
          created_at DATETIME DEFAULT CURRENT_TIMESTAMP
      );

      CREATE TABLE IF NOT EXISTS subscriptions (
          email TEXT PRIMARY KEY,
          subscription_id TEXT NOT NULL,
          price_id TEXT,
          customer_id TEXT NOT NULL,
          updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
      );
      `

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *SQLiteStore) GetSubscription(ctx context.Context, email string) (*models.Subscription, error) {
	query := `SELECT subscription_id, price_id, customer_id FROM subscriptions WHERE email = ?`

	var sub models.Subscription
	var priceID sql.NullString
	err := s.db.QueryRowContext(ctx, query, email).Scan(
		&sub.SubscriptionID,
		&priceID,
		&sub.CustomerID,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	sub.PriceID = priceID.String
	return &sub, nil
}

func (s *SQLiteStore) SaveSubscription(ctx context.Context, email string, sub *models.Subscription) error {
	query := `INSERT OR REPLACE INTO subscriptions (email, subscription_id, price_id, customer_id, updated_at) VALUES (?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		email,
		sub.SubscriptionID,
		sub.PriceID,
		sub.CustomerID,
		time.Now(),
	)

	if err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}

	return nil
}

func (s *SQLiteStore) DeleteSubscription(ctx context.Context, email string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE email = ?`, email)
	if err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetCustomer(ctx context.Context, email string) (*models.Customer, error) {
	query := `SELECT email, stripe_customer_id, created_at FROM customers WHERE email = ?`

	var customer models.Customer
	err := s.db.QueryRowContext(ctx, query, email).Scan(
		&customer.Email,
		&customer.StripeCustomerID,
		&customer.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &customer, nil
}

func (s *SQLiteStore) SaveCustomer(ctx context.Context, customer *models.Customer) error {
	query := `INSERT OR REPLACE INTO customers (email, stripe_customer_id, created_at) VALUES (?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		customer.Email,
		customer.StripeCustomerID,
		customer.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save customer: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
