package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"social-signin.app/payments/billing"
	"social-signin.app/payments/internal/logger"
)

type CreateSubscriptionRequest struct {
	Email   string `json:"email"`
	PriceID string `json:"priceId"`
}

type UpdateSubscriptionRequest struct {
	Email      string `json:"email"`
	NewPriceID string `json:"newPriceId"`
}

type CancelSubscriptionRequest struct {
	Email string `json:"email"`
}

func (s *Server) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req CreateSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	bundle, err := s.Billing.CreateSubscription(r.Context(), req.Email, req.PriceID)
	if err != nil {
		writeBillingError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, bundle)
}

func (s *Server) UpdateSubscription(w http.ResponseWriter, r *http.Request) {
	var req UpdateSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	bundle, err := s.Billing.UpdateSubscription(r.Context(), req.Email, req.NewPriceID)
	if err != nil {
		writeBillingError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, bundle)
}

func (s *Server) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	var req CancelSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.Billing.CancelSubscription(r.Context(), req.Email); err != nil {
		writeBillingError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) CurrentSubscription(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")

	sub, err := s.Billing.ResolveCurrentSubscription(r.Context(), email)
	if err != nil {
		writeBillingError(w, err)
		return
	}

	// sub is nil when the customer has no active subscription; the
	// client relies on the explicit null.
	writeJSON(w, http.StatusOK, map[string]interface{}{"subscription": sub})
}

// writeBillingError maps billing errors onto the wire. Validation
// problems and missing subscriptions are client errors; provider
// failures surface Stripe's message with a 500.
func writeBillingError(w http.ResponseWriter, err error) {
	var verr *billing.ValidationError
	if errors.As(err, &verr) {
		writeError(w, http.StatusBadRequest, verr.Msg)
		return
	}

	if errors.Is(err, billing.ErrNoSubscription) {
		writeError(w, http.StatusBadRequest, "No existing subscription")
		return
	}

	var perr *billing.ProviderError
	if errors.As(err, &perr) {
		logger.Error("Provider call failed", map[string]interface{}{
			"op":    perr.Op,
			"error": perr.Error(),
		})
		writeError(w, http.StatusInternalServerError, perr.Error())
		return
	}

	logger.Error("Unexpected billing error", map[string]interface{}{
		"error": err.Error(),
	})
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("Failed to encode response", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
