package domain

import (
	"time"

	"github.com/google/uuid"
)

// MaxDailySlotCapacity caps the number of concurrent bookings an inspector can
// accept per day regardless of time-slot granularity.
const MaxDailySlotCapacity = 10

// TimeSlot is one labelled window inside a day template.
type TimeSlot struct {
	StartTime   string `json:"start_time"` // "09:00"
	EndTime     string `json:"end_time"`   // "10:00"
	IsAvailable bool   `json:"is_available"`
}

// DayAvailability is an inspector's template for one weekday. SlotCapacity is
// the number of bookable slots (0 means the day is fully unavailable).
type DayAvailability struct {
	InspectorID  uuid.UUID  `json:"inspector_id"`
	Weekday      string     `json:"weekday"` // "monday" .. "sunday"
	Enabled      bool       `json:"enabled"`
	SlotCapacity int        `json:"slot_capacity"`
	TimeSlots    []TimeSlot `json:"time_slots"`
}

// UnavailabilityPeriod is an inspector-declared blocked date range (vacation,
// maintenance). Dates inside any period are excluded from availability.
type UnavailabilityPeriod struct {
	ID          uuid.UUID `json:"id"`
	InspectorID uuid.UUID `json:"inspector_id"`
	StartDate   time.Time `json:"start_date"` // inclusive, date only
	EndDate     time.Time `json:"end_date"`   // inclusive, date only
	Reason      string    `json:"reason"`
}

// UpdateAvailabilityRequest is the DTO for the inspector availability endpoint.
type UpdateAvailabilityRequest struct {
	Days                  []DayAvailability      `json:"days"`
	UnavailabilityPeriods []UnavailabilityPeriod `json:"unavailability_periods"`
}
