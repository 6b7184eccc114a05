package domain

import (
	"time"

	"github.com/google/uuid"
)

// Payment statuses. A payment record is never physically deleted; it is moved
// to a terminal status by webhook settlement or the stale-payment reaper.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
)

// Payment is one payment-intent attempt against an inspection. It maps directly
// to the `payments` table; `gateway_intent_id` is unique.
type Payment struct {
	ID              uuid.UUID         `json:"id"`
	InspectionID    uuid.UUID         `json:"inspection_id"`
	UserID          uuid.UUID         `json:"user_id"`
	Amount          int64             `json:"amount"` // in paise
	Currency        string            `json:"currency"`
	GatewayIntentID string            `json:"gateway_intent_id"`
	Status          string            `json:"status"`
	FailureReason   *string           `json:"failure_reason,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// CreatePaymentIntentRequest is the DTO for the create-payment-intent endpoint.
type CreatePaymentIntentRequest struct {
	InspectionID     uuid.UUID `json:"inspection_id"`
	IsRetry          bool      `json:"is_retry"`
	ExistingIntentID string    `json:"existing_intent_id,omitempty"`
}

// PaymentIntentHandle is what the client needs to confirm a payment out-of-band.
type PaymentIntentHandle struct {
	PaymentID    uuid.UUID `json:"payment_id"`
	IntentID     string    `json:"intent_id"`
	ClientSecret string    `json:"client_secret"`
	Status       string    `json:"status"`
	Amount       int64     `json:"amount"`
	Currency     string    `json:"currency"`
	Reused       bool      `json:"reused"`
}

// SettlementOutcome reports what a settlement write actually changed. Applied is
// false when the event was a replay against an already-terminal payment.
type SettlementOutcome struct {
	Payment        *Payment
	Inspection     *Inspection
	Applied        bool
	WalletRefunded int64 // wallet deduction returned to the user on failure
}
