package domain

import "github.com/google/uuid"

// Notification types published to the notification exchange. Delivery is
// fire-and-forget; a publish failure never aborts the business transaction.
const (
	NotificationBookingConfirmed   = "booking_confirmed"
	NotificationBookingCancelled   = "booking_cancelled"
	NotificationPaymentFailed      = "payment_failed"
	NotificationInspectionComplete = "inspection_completed"
	NotificationWithdrawalRequest  = "withdrawal_requested"
	NotificationWithdrawalDecision = "withdrawal_processed"
)

// NotificationEvent is the payload sent to the notification sink.
type NotificationEvent struct {
	RecipientID   uuid.UUID         `json:"recipient_id"`
	RecipientRole string            `json:"recipient_role"` // user | inspector | admin
	Type          string            `json:"type"`
	Title         string            `json:"title"`
	Message       string            `json:"message"`
	Data          map[string]string `json:"data,omitempty"`
}

// EmailEvent is the payload sent to the best-effort email sender. The
// notification worker owns address lookup, so events carry the recipient id.
type EmailEvent struct {
	RecipientID uuid.UUID `json:"recipient_id"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
}
