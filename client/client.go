// Package client is the app-side companion to the subscription backend:
// a small HTTP client plus the plan selection state machine the mobile
// UI drives.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"social-signin.app/payments/billing"
	"social-signin.app/payments/models"
)

// APIError is a non-2xx response from the backend, carrying the
// server's error message.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.Status, e.Message)
}

type APIClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// CurrentSubscription returns the active subscription for the email, or
// nil when the server reports none.
func (c *APIClient) CurrentSubscription(ctx context.Context, email string) (*models.Subscription, error) {
	endpoint := fmt.Sprintf("%s/stripe/subscription?email=%s", c.BaseURL, url.QueryEscape(email))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var response struct {
		Subscription *models.Subscription `json:"subscription"`
	}
	if err := c.do(req, &response); err != nil {
		return nil, err
	}

	return response.Subscription, nil
}

func (c *APIClient) CreateSubscription(ctx context.Context, email, priceID string) (*billing.CheckoutBundle, error) {
	var bundle billing.CheckoutBundle
	err := c.postJSON(ctx, "/stripe/create-subscription", map[string]string{
		"email":   email,
		"priceId": priceID,
	}, &bundle)
	if err != nil {
		return nil, err
	}
	return &bundle, nil
}

func (c *APIClient) UpdateSubscription(ctx context.Context, email, newPriceID string) (*billing.CheckoutBundle, error) {
	var bundle billing.CheckoutBundle
	err := c.postJSON(ctx, "/stripe/update-subscription", map[string]string{
		"email":      email,
		"newPriceId": newPriceID,
	}, &bundle)
	if err != nil {
		return nil, err
	}
	return &bundle, nil
}

func (c *APIClient) CancelSubscription(ctx context.Context, email string) error {
	return c.postJSON(ctx, "/stripe/cancel-subscription", map[string]string{
		"email": email,
	}, nil)
}

func (c *APIClient) postJSON(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *APIClient) do(req *http.Request, out interface{}) error {
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return &APIError{Status: resp.StatusCode, Message: errBody.Error}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
