package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/inspecto/booking-service/internal/domain"
	"github.com/inspecto/booking-service/internal/store"
)

type bookingRepoStub struct {
	store.Repository

	ownerID      uuid.UUID
	ownerErr     error
	inspType     *domain.InspectionType
	wallet       *domain.Wallet
	bookedSlots  []int
	createErr    error
	createErrSeq []error // consumed per call when set

	created []*domain.Inspection
}

func (s *bookingRepoStub) FindVehicleOwner(ctx context.Context, vehicleID uuid.UUID) (uuid.UUID, error) {
	if s.ownerErr != nil {
		return uuid.Nil, s.ownerErr
	}
	return s.ownerID, nil
}

func (s *bookingRepoStub) FindInspectionTypeByID(ctx context.Context, id uuid.UUID) (*domain.InspectionType, error) {
	if s.inspType == nil {
		return nil, store.ErrInspectionTypeNotFound
	}
	return s.inspType, nil
}

func (s *bookingRepoStub) FindDayAvailability(ctx context.Context, inspectorID uuid.UUID, weekday string) (*domain.DayAvailability, error) {
	return &domain.DayAvailability{Weekday: weekday, Enabled: true, SlotCapacity: 5}, nil
}

func (s *bookingRepoStub) IsDateUnavailable(ctx context.Context, inspectorID uuid.UUID, date time.Time) (bool, error) {
	return false, nil
}

func (s *bookingRepoStub) FindBookedSlotNumbers(ctx context.Context, inspectorID uuid.UUID, date time.Time) ([]int, error) {
	return s.bookedSlots, nil
}

func (s *bookingRepoStub) GetOrCreateWallet(ctx context.Context, ownerID uuid.UUID, ownerRole string) (*domain.Wallet, error) {
	if s.wallet == nil {
		return &domain.Wallet{ID: uuid.New(), OwnerID: ownerID, OwnerRole: ownerRole}, nil
	}
	return s.wallet, nil
}

func (s *bookingRepoStub) CreateInspectionWithWalletDebit(ctx context.Context, inspection *domain.Inspection) error {
	if len(s.createErrSeq) > 0 {
		err := s.createErrSeq[0]
		s.createErrSeq = s.createErrSeq[1:]
		if err != nil {
			return err
		}
	} else if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, inspection)
	return nil
}

func futureDate(t *testing.T) string {
	t.Helper()
	return time.Now().UTC().AddDate(0, 0, 7).Format("2006-01-02")
}

func validBookingRequest(t *testing.T) domain.BookInspectionRequest {
	t.Helper()
	return domain.BookInspectionRequest{
		VehicleID:        uuid.New(),
		InspectorID:      uuid.New(),
		InspectionTypeID: uuid.New(),
		Date:             futureDate(t),
		SlotNumber:       2,
		TimeSlot:         "10:00-11:00",
		ConfirmAgreement: true,
	}
}

func TestBookInspection_WalletCoversFullAmount(t *testing.T) {
	userID := uuid.New()
	repo := &bookingRepoStub{
		ownerID:  userID,
		inspType: &domain.InspectionType{ID: uuid.New(), Name: "Comprehensive", BasePrice: 150000, Active: true},
		wallet:   &domain.Wallet{ID: uuid.New(), OwnerID: userID, Balance: 500000},
	}
	service := NewService(ServiceParams{Repo: repo, PlatformFeePaise: 50000})

	req := validBookingRequest(t)
	req.UseWalletBalance = true

	result, err := service.BookInspection(context.Background(), userID, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Amount != 200000 {
		t.Fatalf("expected amount 200000, got %d", result.Amount)
	}
	if result.WalletDeduction != 200000 {
		t.Fatalf("expected full wallet funding, got %d", result.WalletDeduction)
	}
	if result.RemainingAmount != 0 {
		t.Fatalf("expected no remaining amount, got %d", result.RemainingAmount)
	}
	if result.Booking.Status != domain.InspectionStatusConfirmed {
		t.Fatalf("expected confirmed status, got %q", result.Booking.Status)
	}
	if !strings.HasPrefix(result.Booking.BookingReference, "INS-") {
		t.Fatalf("unexpected booking reference %q", result.Booking.BookingReference)
	}
}

func TestBookInspection_PartialWalletFunding(t *testing.T) {
	userID := uuid.New()
	repo := &bookingRepoStub{
		ownerID:  userID,
		inspType: &domain.InspectionType{ID: uuid.New(), Name: "Basic", BasePrice: 100000, Active: true},
		wallet:   &domain.Wallet{ID: uuid.New(), OwnerID: userID, Balance: 30000},
	}
	service := NewService(ServiceParams{Repo: repo, PlatformFeePaise: 50000})

	req := validBookingRequest(t)
	req.UseWalletBalance = true

	result, err := service.BookInspection(context.Background(), userID, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.WalletDeduction != 30000 {
		t.Fatalf("expected wallet deduction 30000, got %d", result.WalletDeduction)
	}
	if result.RemainingAmount != 120000 {
		t.Fatalf("expected remaining 120000, got %d", result.RemainingAmount)
	}
	if result.Booking.Status != domain.InspectionStatusPaymentPending {
		t.Fatalf("expected payment_pending status, got %q", result.Booking.Status)
	}
}

func TestBookInspection_Rejections(t *testing.T) {
	userID := uuid.New()
	activeType := &domain.InspectionType{ID: uuid.New(), Name: "Basic", BasePrice: 100000, Active: true}

	tests := []struct {
		name    string
		repo    *bookingRepoStub
		mutate  func(*domain.BookInspectionRequest)
		wantErr error
	}{
		{
			name:    "agreement not confirmed",
			repo:    &bookingRepoStub{ownerID: userID, inspType: activeType},
			mutate:  func(r *domain.BookInspectionRequest) { r.ConfirmAgreement = false },
			wantErr: ErrAgreementRequired,
		},
		{
			name:    "malformed date",
			repo:    &bookingRepoStub{ownerID: userID, inspType: activeType},
			mutate:  func(r *domain.BookInspectionRequest) { r.Date = "15-01-2026" },
			wantErr: ErrInvalidDate,
		},
		{
			name:    "past date",
			repo:    &bookingRepoStub{ownerID: userID, inspType: activeType},
			mutate:  func(r *domain.BookInspectionRequest) { r.Date = "2020-01-01" },
			wantErr: ErrPastDate,
		},
		{
			name:    "vehicle owned by someone else",
			repo:    &bookingRepoStub{ownerID: uuid.New(), inspType: activeType},
			mutate:  func(r *domain.BookInspectionRequest) {},
			wantErr: ErrNotVehicleOwner,
		},
		{
			name:    "inactive inspection type",
			repo:    &bookingRepoStub{ownerID: userID, inspType: &domain.InspectionType{ID: uuid.New(), BasePrice: 1000, Active: false}},
			mutate:  func(r *domain.BookInspectionRequest) {},
			wantErr: ErrInspectionTypeInactive,
		},
		{
			name:    "slot already taken",
			repo:    &bookingRepoStub{ownerID: userID, inspType: activeType, bookedSlots: []int{2}},
			mutate:  func(r *domain.BookInspectionRequest) {},
			wantErr: ErrSlotUnavailable,
		},
		{
			name:    "slot above capacity",
			repo:    &bookingRepoStub{ownerID: userID, inspType: activeType},
			mutate:  func(r *domain.BookInspectionRequest) { r.SlotNumber = 9 },
			wantErr: ErrSlotUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := NewService(ServiceParams{Repo: tt.repo})
			req := validBookingRequest(t)
			tt.mutate(&req)

			_, err := service.BookInspection(context.Background(), userID, req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if len(tt.repo.created) != 0 {
				t.Fatal("expected no inspection to be persisted")
			}
		})
	}
}

func TestBookInspection_RetriesReferenceCollision(t *testing.T) {
	userID := uuid.New()
	repo := &bookingRepoStub{
		ownerID:      userID,
		inspType:     &domain.InspectionType{ID: uuid.New(), BasePrice: 100000, Active: true},
		createErrSeq: []error{store.ErrDuplicateBookingReference, nil},
	}
	service := NewService(ServiceParams{Repo: repo})

	result, err := service.BookInspection(context.Background(), userID, validBookingRequest(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected exactly one persisted inspection, got %d", len(repo.created))
	}
	if result.Booking.BookingReference == "" {
		t.Fatal("expected a regenerated booking reference")
	}
}

func TestBookInspection_SlotRaceSurfacesConflict(t *testing.T) {
	userID := uuid.New()
	repo := &bookingRepoStub{
		ownerID:   userID,
		inspType:  &domain.InspectionType{ID: uuid.New(), BasePrice: 100000, Active: true},
		createErr: store.ErrSlotAlreadyBooked,
	}
	service := NewService(ServiceParams{Repo: repo})

	_, err := service.BookInspection(context.Background(), userID, validBookingRequest(t))
	if !errors.Is(err, store.ErrSlotAlreadyBooked) {
		t.Fatalf("expected ErrSlotAlreadyBooked, got %v", err)
	}
}
