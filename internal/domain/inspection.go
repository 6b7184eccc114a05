/**
 * @description
 * This file defines the core domain models for the booking-service. These structs
 * represent the main entities and data transfer objects (DTOs) used throughout the
 * service's business logic, database interactions, and API layers.
 *
 * @notes
 * - Monetary amounts are stored as `int64` in the smallest currency unit (paise),
 *   which avoids floating-point inaccuracies with financial data.
 * - Inspections carry an optimistic-lock `version`; state transitions include the
 *   expected version (or a status guard) in the UPDATE predicate.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Inspection statuses.
const (
	InspectionStatusPending        = "pending"
	InspectionStatusPaymentPending = "payment_pending"
	InspectionStatusConfirmed      = "confirmed"
	InspectionStatusCompleted      = "completed"
	InspectionStatusCancelled      = "cancelled"
)

// Report statuses.
const (
	ReportStatusDraft     = "draft"
	ReportStatusCompleted = "completed"
)

// Inspection represents one booking of an inspector for a vehicle on a specific
// date and slot. It maps directly to the `inspections` table.
type Inspection struct {
	ID               uuid.UUID  `json:"id"`
	UserID           uuid.UUID  `json:"user_id"`
	VehicleID        uuid.UUID  `json:"vehicle_id"`
	InspectorID      uuid.UUID  `json:"inspector_id"`
	InspectionTypeID uuid.UUID  `json:"inspection_type_id"`
	ScheduledDate    time.Time  `json:"scheduled_date"` // date only, midnight UTC
	SlotNumber       int        `json:"slot_number"`
	TimeSlot         string     `json:"time_slot"` // e.g. "09:00-10:00"
	BookingReference string     `json:"booking_reference"`
	Status           string     `json:"status"`
	Amount           int64      `json:"amount"`           // total price in paise
	WalletDeduction  int64      `json:"wallet_deduction"` // portion funded from the user's wallet
	RemainingAmount  int64      `json:"remaining_amount"` // portion owed to the payment gateway
	Version          int        `json:"version"`
	Report           *Report    `json:"report,omitempty"`
	CancelReason     *string    `json:"cancel_reason,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Report is the inspection report embedded in an inspection.
type Report struct {
	OverallCondition string `json:"overall_condition"`
	EngineCondition  string `json:"engine_condition"`
	BodyCondition    string `json:"body_condition"`
	TyreCondition    string `json:"tyre_condition"`
	Mileage          int64  `json:"mileage"`
	Remarks          string `json:"remarks"`
	Status           string `json:"status"` // draft | completed
	Version          int    `json:"version"`
}

// InspectionType describes a bookable inspection product and its base price.
type InspectionType struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	BasePrice       int64     `json:"base_price"` // in paise
	DurationMinutes int       `json:"duration_minutes"`
	Active          bool      `json:"active"`
}

// BookInspectionRequest is the DTO for incoming booking API requests.
type BookInspectionRequest struct {
	VehicleID        uuid.UUID `json:"vehicle_id"`
	InspectorID      uuid.UUID `json:"inspector_id"`
	InspectionTypeID uuid.UUID `json:"inspection_type_id"`
	Date             string    `json:"date"` // YYYY-MM-DD
	SlotNumber       int       `json:"slot_number"`
	TimeSlot         string    `json:"time_slot"`
	UseWalletBalance bool      `json:"use_wallet_balance"`
	ConfirmAgreement bool      `json:"confirm_agreement"`
}

// BookingResult is returned by the booking workflow so the caller can decide
// whether to proceed to external payment for the remaining amount.
type BookingResult struct {
	Booking         *Inspection `json:"booking"`
	Amount          int64       `json:"amount"`
	WalletDeduction int64       `json:"wallet_deduction"`
	RemainingAmount int64       `json:"remaining_amount"`
}

// SubmitReportRequest is the DTO for the inspector's final report submission.
type SubmitReportRequest struct {
	OverallCondition string `json:"overall_condition"`
	EngineCondition  string `json:"engine_condition"`
	BodyCondition    string `json:"body_condition"`
	TyreCondition    string `json:"tyre_condition"`
	Mileage          int64  `json:"mileage"`
	Remarks          string `json:"remarks"`
	ExpectedVersion  int    `json:"expected_version"`
}
