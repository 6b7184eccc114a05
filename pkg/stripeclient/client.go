/**
 * @description
 * This package provides a client for the payment-intent API of the payment
 * gateway. It encapsulates the logic for making authenticated HTTP requests,
 * handling request body construction, and parsing responses.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, time: Standard Go libraries.
 */
package stripeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Intent statuses as reported by the gateway. An intent in one of the
// "requires_*" states has not been finalized and can still be confirmed by the
// client, which makes it reusable for retried checkout attempts.
const (
	IntentStatusRequiresPaymentMethod = "requires_payment_method"
	IntentStatusRequiresConfirmation  = "requires_confirmation"
	IntentStatusRequiresAction        = "requires_action"
	IntentStatusProcessing            = "processing"
	IntentStatusSucceeded             = "succeeded"
	IntentStatusCanceled              = "canceled"
)

// IsReusableStatus reports whether an intent can be handed back to a client
// instead of creating a new one.
func IsReusableStatus(status string) bool {
	switch status {
	case IntentStatusRequiresPaymentMethod, IntentStatusRequiresConfirmation, IntentStatusRequiresAction:
		return true
	default:
		return false
	}
}

// IsOpenStatus reports whether an intent is still cancelable at the gateway.
func IsOpenStatus(status string) bool {
	return IsReusableStatus(status) || status == IntentStatusProcessing
}

// Client is a client for the payment gateway API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new payment gateway client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// PaymentIntent is the gateway-side object representing an attempted charge.
type PaymentIntent struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	ClientSecret string            `json:"client_secret"`
	Amount       int64             `json:"amount"`
	Currency     string            `json:"currency"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// createIntentRequest is the payload for creating a payment intent.
type createIntentRequest struct {
	Amount   int64             `json:"amount"` // in minor units
	Currency string            `json:"currency"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ErrorResponse represents an error returned by the gateway API.
type ErrorResponse struct {
	StatusCode int `json:"-"`
	Err        struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (e *ErrorResponse) Error() string {
	if e.Err.Message != "" {
		return fmt.Sprintf("gateway api error: %s - %s", e.Err.Code, e.Err.Message)
	}
	return "unknown gateway api error"
}

// IsNotFound reports whether the gateway no longer knows the referenced object.
func (e *ErrorResponse) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound || e.Err.Code == "resource_missing"
}

// CreatePaymentIntent asks the gateway to open a new intent for the given
// amount in minor units.
func (c *Client) CreatePaymentIntent(ctx context.Context, amountMinorUnits int64, currency string, metadata map[string]string) (*PaymentIntent, error) {
	payload := createIntentRequest{
		Amount:   amountMinorUnits,
		Currency: currency,
		Metadata: metadata,
	}
	return c.doIntentRequest(ctx, http.MethodPost, "/v1/payment_intents", payload)
}

// RetrievePaymentIntent fetches the live state of an intent.
func (c *Client) RetrievePaymentIntent(ctx context.Context, intentID string) (*PaymentIntent, error) {
	return c.doIntentRequest(ctx, http.MethodGet, "/v1/payment_intents/"+intentID, nil)
}

// CancelPaymentIntent instructs the gateway to cancel an intent. Canceling an
// already-terminal intent returns a gateway error.
func (c *Client) CancelPaymentIntent(ctx context.Context, intentID string) (*PaymentIntent, error) {
	return c.doIntentRequest(ctx, http.MethodPost, "/v1/payment_intents/"+intentID+"/cancel", nil)
}

// doIntentRequest is a generic helper to execute intent API calls.
func (c *Client) doIntentRequest(ctx context.Context, method, path string, payload interface{}) (*PaymentIntent, error) {
	var bodyReader io.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal intent request: %w", err)
		}
		bodyReader = bytes.NewBuffer(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create intent request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute intent request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read intent response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errResp := &ErrorResponse{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(bodyBytes, errResp); err != nil {
			log.Printf("level=warn component=gateway_client op=%s path=%s status=%d msg=\"non-2xx response (unparsable error body)\"", method, path, resp.StatusCode)
			return nil, fmt.Errorf("failed to decode error response (status %d)", resp.StatusCode)
		}
		log.Printf("level=warn component=gateway_client op=%s path=%s status=%d code=%q detail=%q", method, path, resp.StatusCode, errResp.Err.Code, errResp.Err.Message)
		return nil, errResp
	}

	var intent PaymentIntent
	if err := json.Unmarshal(bodyBytes, &intent); err != nil {
		return nil, fmt.Errorf("failed to decode intent response: %w", err)
	}

	return &intent, nil
}
