/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for
 * all data access operations required by the booking-service. By defining an
 * interface, we decouple the application's business logic from the specific
 * database implementation (e.g., PostgreSQL), making the code more modular and
 * easier to test.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation and handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/inspecto/booking-service/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Availability methods
	FindDayAvailability(ctx context.Context, inspectorID uuid.UUID, weekday string) (*domain.DayAvailability, error)
	UpsertDayAvailability(ctx context.Context, day domain.DayAvailability) error
	ReplaceUnavailabilityPeriods(ctx context.Context, inspectorID uuid.UUID, periods []domain.UnavailabilityPeriod) error
	IsDateUnavailable(ctx context.Context, inspectorID uuid.UUID, date time.Time) (bool, error)
	FindBookedSlotNumbers(ctx context.Context, inspectorID uuid.UUID, date time.Time) ([]int, error)

	// Vehicle and inspection-type lookups
	FindVehicleOwner(ctx context.Context, vehicleID uuid.UUID) (uuid.UUID, error)
	FindInspectionTypeByID(ctx context.Context, id uuid.UUID) (*domain.InspectionType, error)

	// Inspection methods. CreateInspectionWithWalletDebit persists the inspection
	// and, when WalletDeduction > 0, debits the user's wallet and appends the
	// ledger entry in the same transaction. The partial unique index over
	// (inspector_id, scheduled_date, slot_number) for non-cancelled rows is the
	// final race arbiter; violations surface as ErrSlotAlreadyBooked.
	CreateInspectionWithWalletDebit(ctx context.Context, inspection *domain.Inspection) error
	FindInspectionByID(ctx context.Context, id uuid.UUID) (*domain.Inspection, error)
	CancelInspectionWithRefund(ctx context.Context, inspectionID uuid.UUID, reason string) (*domain.Inspection, int64, error)
	CompleteInspectionWithEarnings(ctx context.Context, params CompleteInspectionParams) (*domain.Inspection, error)

	// Payment methods
	CreatePayment(ctx context.Context, payment *domain.Payment) error
	FindPaymentByIntentID(ctx context.Context, intentID string) (*domain.Payment, error)
	FindPendingPaymentsByInspection(ctx context.Context, inspectionID uuid.UUID) ([]domain.Payment, error)
	FindStalePendingPayments(ctx context.Context, cutoff time.Time, limit int) ([]domain.Payment, error)
	MarkPaymentFailed(ctx context.Context, paymentID uuid.UUID, reason string) error
	SettlePaymentSucceeded(ctx context.Context, intentID string) (*domain.SettlementOutcome, error)
	SettlePaymentFailed(ctx context.Context, intentID string, reason string) (*domain.SettlementOutcome, error)

	// Wallet and withdrawal methods
	GetOrCreateWallet(ctx context.Context, ownerID uuid.UUID, ownerRole string) (*domain.Wallet, error)
	FindWalletByOwnerID(ctx context.Context, ownerID uuid.UUID) (*domain.Wallet, error)
	ListWalletTransactions(ctx context.Context, walletID uuid.UUID, limit int) ([]domain.WalletTransaction, error)
	CreateWithdrawalWithLock(ctx context.Context, withdrawal *domain.Withdrawal) error
	ApproveWithdrawal(ctx context.Context, withdrawalID uuid.UUID, remarks *string) (*domain.Withdrawal, error)
	RejectWithdrawal(ctx context.Context, withdrawalID uuid.UUID, reason string) (*domain.Withdrawal, error)
}

// CompleteInspectionParams carries everything the completion transaction needs:
// the version-guarded inspection update plus both earnings credits.
type CompleteInspectionParams struct {
	InspectionID    uuid.UUID
	InspectorID     uuid.UUID
	Report          domain.Report
	ExpectedVersion int
	InspectorShare  int64
	PlatformFee     int64
	PlatformOwnerID uuid.UUID
}
