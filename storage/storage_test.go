package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"social-signin.app/payments/models"
)

// runStoreSuite runs the standard registry tests against any Store
// implementation.
func runStoreSuite(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("SubscriptionOperations", func(t *testing.T) {
		sub := &models.Subscription{
			SubscriptionID: "sub_test1",
			PriceID:        "price_basic",
			CustomerID:     "cus_test1",
		}

		if err := store.SaveSubscription(ctx, "a@example.com", sub); err != nil {
			t.Fatalf("Failed to save subscription: %v", err)
		}

		got, err := store.GetSubscription(ctx, "a@example.com")
		if err != nil {
			t.Fatalf("Failed to get subscription: %v", err)
		}
		if got == nil {
			t.Fatalf("Expected subscription, got nil")
		}
		if got.SubscriptionID != "sub_test1" {
			t.Errorf("Expected subscription ID 'sub_test1', got '%s'", got.SubscriptionID)
		}
		if got.PriceID != "price_basic" {
			t.Errorf("Expected price ID 'price_basic', got '%s'", got.PriceID)
		}
		if got.CustomerID != "cus_test1" {
			t.Errorf("Expected customer ID 'cus_test1', got '%s'", got.CustomerID)
		}
	})

	t.Run("SubscriptionOverwrite", func(t *testing.T) {
		first := &models.Subscription{SubscriptionID: "sub_old", PriceID: "price_basic", CustomerID: "cus_ow"}
		second := &models.Subscription{SubscriptionID: "sub_old", PriceID: "price_pro", CustomerID: "cus_ow"}

		if err := store.SaveSubscription(ctx, "ow@example.com", first); err != nil {
			t.Fatalf("Failed to save subscription: %v", err)
		}
		if err := store.SaveSubscription(ctx, "ow@example.com", second); err != nil {
			t.Fatalf("Failed to overwrite subscription: %v", err)
		}

		got, err := store.GetSubscription(ctx, "ow@example.com")
		if err != nil {
			t.Fatalf("Failed to get subscription: %v", err)
		}
		if got.PriceID != "price_pro" {
			t.Errorf("Expected overwritten price ID 'price_pro', got '%s'", got.PriceID)
		}
	})

	t.Run("SubscriptionWithoutPrice", func(t *testing.T) {
		sub := &models.Subscription{SubscriptionID: "sub_noprice", CustomerID: "cus_np"}

		if err := store.SaveSubscription(ctx, "np@example.com", sub); err != nil {
			t.Fatalf("Failed to save subscription: %v", err)
		}

		got, err := store.GetSubscription(ctx, "np@example.com")
		if err != nil {
			t.Fatalf("Failed to get subscription: %v", err)
		}
		if got == nil {
			t.Fatalf("Expected subscription, got nil")
		}
		if got.PriceID != "" {
			t.Errorf("Expected empty price ID, got '%s'", got.PriceID)
		}
	})

	t.Run("DeleteSubscription", func(t *testing.T) {
		sub := &models.Subscription{SubscriptionID: "sub_del", CustomerID: "cus_del"}

		if err := store.SaveSubscription(ctx, "del@example.com", sub); err != nil {
			t.Fatalf("Failed to save subscription: %v", err)
		}
		if err := store.DeleteSubscription(ctx, "del@example.com"); err != nil {
			t.Fatalf("Failed to delete subscription: %v", err)
		}

		got, err := store.GetSubscription(ctx, "del@example.com")
		if err != nil {
			t.Fatalf("Failed to get subscription after delete: %v", err)
		}
		if got != nil {
			t.Errorf("Expected nil after delete, got %+v", got)
		}

		// Deleting a missing record is not an error.
		if err := store.DeleteSubscription(ctx, "del@example.com"); err != nil {
			t.Errorf("Expected no error deleting missing record, got %v", err)
		}
	})

	t.Run("CustomerOperations", func(t *testing.T) {
		customer := &models.Customer{
			Email:            "c@example.com",
			StripeCustomerID: "cus_c1",
			CreatedAt:        time.Now(),
		}

		if err := store.SaveCustomer(ctx, customer); err != nil {
			t.Fatalf("Failed to save customer: %v", err)
		}

		got, err := store.GetCustomer(ctx, "c@example.com")
		if err != nil {
			t.Fatalf("Failed to get customer: %v", err)
		}
		if got == nil {
			t.Fatalf("Expected customer, got nil")
		}
		if got.StripeCustomerID != "cus_c1" {
			t.Errorf("Expected Stripe customer ID 'cus_c1', got '%s'", got.StripeCustomerID)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		sub, err := store.GetSubscription(ctx, "missing@example.com")
		if err != nil {
			t.Errorf("Expected no error for missing subscription, got %v", err)
		}
		if sub != nil {
			t.Errorf("Expected nil for missing subscription, got %+v", sub)
		}

		customer, err := store.GetCustomer(ctx, "missing@example.com")
		if err != nil {
			t.Errorf("Expected no error for missing customer, got %v", err)
		}
		if customer != nil {
			t.Errorf("Expected nil for missing customer, got %+v", customer)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	runStoreSuite(t, store)
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.db")
	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("Failed to create SQLite store: %v", err)
	}
	defer store.Close()

	runStoreSuite(t, store)
}

func TestMemoryStore_CopiesRecords(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	ctx := context.Background()
	sub := &models.Subscription{SubscriptionID: "sub_copy", PriceID: "price_a", CustomerID: "cus_copy"}
	if err := store.SaveSubscription(ctx, "copy@example.com", sub); err != nil {
		t.Fatalf("Failed to save subscription: %v", err)
	}

	// Mutating the caller's record must not leak into the store.
	sub.PriceID = "price_mutated"

	got, err := store.GetSubscription(ctx, "copy@example.com")
	if err != nil {
		t.Fatalf("Failed to get subscription: %v", err)
	}
	if got.PriceID != "price_a" {
		t.Errorf("Expected stored price ID 'price_a', got '%s'", got.PriceID)
	}

	// Mutating a returned record must not change later reads.
	got.PriceID = "price_mutated"
	again, err := store.GetSubscription(ctx, "copy@example.com")
	if err != nil {
		t.Fatalf("Failed to re-read subscription: %v", err)
	}
	if again.PriceID != "price_a" {
		t.Errorf("Expected stored price ID 'price_a' on re-read, got '%s'", again.PriceID)
	}
}
