package app

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/inspecto/booking-service/internal/domain"
	"github.com/inspecto/booking-service/internal/store"
)

type availabilityRepoStub struct {
	store.Repository

	day         *domain.DayAvailability
	dayErr      error
	blocked     bool
	bookedSlots []int
}

func (s *availabilityRepoStub) FindDayAvailability(ctx context.Context, inspectorID uuid.UUID, weekday string) (*domain.DayAvailability, error) {
	if s.dayErr != nil {
		return nil, s.dayErr
	}
	return s.day, nil
}

func (s *availabilityRepoStub) IsDateUnavailable(ctx context.Context, inspectorID uuid.UUID, date time.Time) (bool, error) {
	return s.blocked, nil
}

func (s *availabilityRepoStub) FindBookedSlotNumbers(ctx context.Context, inspectorID uuid.UUID, date time.Time) ([]int, error) {
	return s.bookedSlots, nil
}

func TestGetAvailableSlots(t *testing.T) {
	// 2026-09-07 is a Monday.
	monday := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		repo *availabilityRepoStub
		want []int
	}{
		{
			name: "full capacity with no bookings",
			repo: &availabilityRepoStub{
				day: &domain.DayAvailability{Weekday: "monday", Enabled: true, SlotCapacity: 4},
			},
			want: []int{1, 2, 3, 4},
		},
		{
			name: "booked slots are subtracted",
			repo: &availabilityRepoStub{
				day:         &domain.DayAvailability{Weekday: "monday", Enabled: true, SlotCapacity: 4},
				bookedSlots: []int{1, 3},
			},
			want: []int{2, 4},
		},
		{
			name: "disabled day yields empty list",
			repo: &availabilityRepoStub{
				day: &domain.DayAvailability{Weekday: "monday", Enabled: false, SlotCapacity: 4},
			},
			want: []int{},
		},
		{
			name: "zero capacity yields empty list",
			repo: &availabilityRepoStub{
				day: &domain.DayAvailability{Weekday: "monday", Enabled: true, SlotCapacity: 0},
			},
			want: []int{},
		},
		{
			name: "missing template yields empty list",
			repo: &availabilityRepoStub{dayErr: store.ErrAvailabilityNotFound},
			want: []int{},
		},
		{
			name: "unavailability period excludes the whole date",
			repo: &availabilityRepoStub{
				day:     &domain.DayAvailability{Weekday: "monday", Enabled: true, SlotCapacity: 4},
				blocked: true,
			},
			want: []int{},
		},
		{
			name: "capacity above the daily maximum is clamped",
			repo: &availabilityRepoStub{
				day: &domain.DayAvailability{Weekday: "monday", Enabled: true, SlotCapacity: 25},
			},
			want: []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
		},
		{
			name: "fully booked day yields empty list",
			repo: &availabilityRepoStub{
				day:         &domain.DayAvailability{Weekday: "monday", Enabled: true, SlotCapacity: 2},
				bookedSlots: []int{1, 2},
			},
			want: []int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := NewService(ServiceParams{Repo: tt.repo})
			got, err := service.GetAvailableSlots(context.Background(), uuid.New(), monday)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("expected %v, got %v", tt.want, got)
				}
			}
		})
	}
}

func TestUpdateAvailabilityValidation(t *testing.T) {
	repo := &updateAvailabilityRepoStub{}
	service := NewService(ServiceParams{Repo: repo})
	inspectorID := uuid.New()

	err := service.UpdateAvailability(context.Background(), inspectorID, domain.UpdateAvailabilityRequest{
		Days: []domain.DayAvailability{{Weekday: "funday", Enabled: true, SlotCapacity: 3}},
	})
	if err == nil {
		t.Fatal("expected an error for an unknown weekday")
	}

	err = service.UpdateAvailability(context.Background(), inspectorID, domain.UpdateAvailabilityRequest{
		Days: []domain.DayAvailability{{Weekday: "Monday", Enabled: true, SlotCapacity: 99}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.upserted) != 1 {
		t.Fatalf("expected 1 upsert, got %d", len(repo.upserted))
	}
	day := repo.upserted[0]
	if day.Weekday != "monday" {
		t.Fatalf("expected normalized weekday, got %q", day.Weekday)
	}
	if day.SlotCapacity != domain.MaxDailySlotCapacity {
		t.Fatalf("expected capacity clamped to %d, got %d", domain.MaxDailySlotCapacity, day.SlotCapacity)
	}
	if day.InspectorID != inspectorID {
		t.Fatal("expected inspector id to be set from the actor")
	}
}

type updateAvailabilityRepoStub struct {
	store.Repository

	upserted []domain.DayAvailability
	periods  []domain.UnavailabilityPeriod
}

func (s *updateAvailabilityRepoStub) UpsertDayAvailability(ctx context.Context, day domain.DayAvailability) error {
	s.upserted = append(s.upserted, day)
	return nil
}

func (s *updateAvailabilityRepoStub) ReplaceUnavailabilityPeriods(ctx context.Context, inspectorID uuid.UUID, periods []domain.UnavailabilityPeriod) error {
	s.periods = periods
	return nil
}
