package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/inspecto/booking-service/internal/domain"
	"github.com/inspecto/booking-service/internal/store"
)

var validWeekdays = map[string]bool{
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
}

var ErrInvalidAvailability = errors.New("invalid availability payload")

// GetAvailableSlots computes the open slot numbers for an inspector on a date.
// The result is advisory: the booking insert is the final arbiter. A disabled
// day, zero capacity, missing template, or a date inside an unavailability
// period all yield an empty list, not an error.
func (s *Service) GetAvailableSlots(ctx context.Context, inspectorID uuid.UUID, date time.Time) ([]int, error) {
	weekday := strings.ToLower(date.Weekday().String())

	day, err := s.repo.FindDayAvailability(ctx, inspectorID, weekday)
	if err != nil {
		if errors.Is(err, store.ErrAvailabilityNotFound) {
			return []int{}, nil
		}
		return nil, err
	}
	if !day.Enabled || day.SlotCapacity <= 0 {
		return []int{}, nil
	}

	capacity := day.SlotCapacity
	if capacity > domain.MaxDailySlotCapacity {
		capacity = domain.MaxDailySlotCapacity
	}

	blocked, err := s.repo.IsDateUnavailable(ctx, inspectorID, date)
	if err != nil {
		return nil, err
	}
	if blocked {
		return []int{}, nil
	}

	booked, err := s.repo.FindBookedSlotNumbers(ctx, inspectorID, date)
	if err != nil {
		return nil, err
	}
	taken := make(map[int]bool, len(booked))
	for _, n := range booked {
		taken[n] = true
	}

	available := make([]int, 0, capacity)
	for n := 1; n <= capacity; n++ {
		if !taken[n] {
			available = append(available, n)
		}
	}
	sort.Ints(available)
	return available, nil
}

// UpdateAvailability replaces an inspector's weekly template and blocked date
// ranges. Slot capacities are clamped to the daily maximum.
func (s *Service) UpdateAvailability(ctx context.Context, inspectorID uuid.UUID, req domain.UpdateAvailabilityRequest) error {
	for i := range req.Days {
		day := &req.Days[i]
		day.Weekday = strings.ToLower(strings.TrimSpace(day.Weekday))
		if !validWeekdays[day.Weekday] {
			return fmt.Errorf("%w: unknown weekday %q", ErrInvalidAvailability, day.Weekday)
		}
		if day.SlotCapacity < 0 {
			day.SlotCapacity = 0
		}
		if day.SlotCapacity > domain.MaxDailySlotCapacity {
			log.Printf("WARN: UpdateAvailability: clamping %s capacity %d to %d for inspector %s",
				day.Weekday, day.SlotCapacity, domain.MaxDailySlotCapacity, inspectorID)
			day.SlotCapacity = domain.MaxDailySlotCapacity
		}
		day.InspectorID = inspectorID
	}

	for _, p := range req.UnavailabilityPeriods {
		if p.EndDate.Before(p.StartDate) {
			return fmt.Errorf("%w: unavailability period ends before it starts", ErrInvalidAvailability)
		}
	}

	for _, day := range req.Days {
		if err := s.repo.UpsertDayAvailability(ctx, day); err != nil {
			return fmt.Errorf("failed to save %s template: %w", day.Weekday, err)
		}
	}
	if req.UnavailabilityPeriods != nil {
		if err := s.repo.ReplaceUnavailabilityPeriods(ctx, inspectorID, req.UnavailabilityPeriods); err != nil {
			return fmt.Errorf("failed to save unavailability periods: %w", err)
		}
	}
	return nil
}
