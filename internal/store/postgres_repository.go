/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface
 * for availability templates, inspections, and payments. It contains the SQL for
 * the booking hot path: the partial unique index over active bookings is the
 * final arbiter for slot races, and settlement updates span the payment and the
 * inspection in one transaction.
 *
 * @dependencies
 * - context, time, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/inspecto/booking-service/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrVehicleNotFound           = errors.New("vehicle not found")
	ErrInspectionTypeNotFound    = errors.New("inspection type not found")
	ErrAvailabilityNotFound      = errors.New("availability template not found")
	ErrInspectionNotFound        = errors.New("inspection not found")
	ErrPaymentNotFound           = errors.New("payment not found")
	ErrWalletNotFound            = errors.New("wallet not found")
	ErrWithdrawalNotFound        = errors.New("withdrawal not found")
	ErrWithdrawalNotPending      = errors.New("withdrawal is not pending")
	ErrInsufficientFunds         = errors.New("insufficient funds")
	ErrSlotAlreadyBooked         = errors.New("slot already booked")
	ErrDuplicateBookingReference = errors.New("booking reference already exists")
	ErrVersionConflict           = errors.New("version conflict")
	ErrInvalidInspectionState    = errors.New("inspection is not in a valid state for this operation")
)

// Names of the unique constraints used to translate 23505 violations into
// domain conflicts. The slot index is partial: it only covers non-cancelled rows.
const (
	slotUniqueIndexName        = "inspections_active_slot_idx"
	bookingRefUniqueConstraint = "inspections_booking_reference_key"
	intentUniqueConstraint     = "payments_gateway_intent_id_key"
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindDayAvailability retrieves an inspector's template for one weekday.
func (r *PostgresRepository) FindDayAvailability(ctx context.Context, inspectorID uuid.UUID, weekday string) (*domain.DayAvailability, error) {
	day := domain.DayAvailability{InspectorID: inspectorID, Weekday: weekday}
	var rawSlots []byte
	query := `SELECT enabled, slot_capacity, time_slots FROM inspector_availability WHERE inspector_id = $1 AND weekday = $2`
	err := r.db.QueryRow(ctx, query, inspectorID, weekday).Scan(&day.Enabled, &day.SlotCapacity, &rawSlots)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAvailabilityNotFound
		}
		return nil, err
	}
	if len(rawSlots) > 0 {
		if err := json.Unmarshal(rawSlots, &day.TimeSlots); err != nil {
			return nil, fmt.Errorf("failed to decode time slots: %w", err)
		}
	}
	return &day, nil
}

// UpsertDayAvailability writes one weekday template, replacing any prior row.
func (r *PostgresRepository) UpsertDayAvailability(ctx context.Context, day domain.DayAvailability) error {
	rawSlots, err := json.Marshal(day.TimeSlots)
	if err != nil {
		return fmt.Errorf("failed to encode time slots: %w", err)
	}
	query := `
		INSERT INTO inspector_availability (inspector_id, weekday, enabled, slot_capacity, time_slots, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (inspector_id, weekday)
		DO UPDATE SET enabled = EXCLUDED.enabled, slot_capacity = EXCLUDED.slot_capacity, time_slots = EXCLUDED.time_slots, updated_at = NOW()
	`
	_, err = r.db.Exec(ctx, query, day.InspectorID, day.Weekday, day.Enabled, day.SlotCapacity, rawSlots)
	return err
}

// ReplaceUnavailabilityPeriods swaps the full set of blocked ranges for an inspector.
func (r *PostgresRepository) ReplaceUnavailabilityPeriods(ctx context.Context, inspectorID uuid.UUID, periods []domain.UnavailabilityPeriod) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM unavailability_periods WHERE inspector_id = $1`, inspectorID); err != nil {
		return err
	}
	for _, p := range periods {
		id := p.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO unavailability_periods (id, inspector_id, start_date, end_date, reason) VALUES ($1, $2, $3, $4, $5)`,
			id, inspectorID, p.StartDate, p.EndDate, p.Reason,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// IsDateUnavailable reports whether a date falls inside any blocked range.
func (r *PostgresRepository) IsDateUnavailable(ctx context.Context, inspectorID uuid.UUID, date time.Time) (bool, error) {
	var blocked bool
	query := `SELECT EXISTS(SELECT 1 FROM unavailability_periods WHERE inspector_id = $1 AND $2::date BETWEEN start_date AND end_date)`
	err := r.db.QueryRow(ctx, query, inspectorID, date).Scan(&blocked)
	return blocked, err
}

// FindBookedSlotNumbers returns the claimed slot numbers for an inspector/date,
// excluding cancelled bookings.
func (r *PostgresRepository) FindBookedSlotNumbers(ctx context.Context, inspectorID uuid.UUID, date time.Time) ([]int, error) {
	query := `
		SELECT slot_number FROM inspections
		WHERE inspector_id = $1 AND scheduled_date = $2::date AND status <> $3
		ORDER BY slot_number
	`
	rows, err := r.db.Query(ctx, query, inspectorID, date, domain.InspectionStatusCancelled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		slots = append(slots, n)
	}
	return slots, rows.Err()
}

// FindVehicleOwner returns the owning user of a vehicle.
func (r *PostgresRepository) FindVehicleOwner(ctx context.Context, vehicleID uuid.UUID) (uuid.UUID, error) {
	var ownerID uuid.UUID
	err := r.db.QueryRow(ctx, `SELECT owner_id FROM vehicles WHERE id = $1`, vehicleID).Scan(&ownerID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return uuid.Nil, ErrVehicleNotFound
		}
		return uuid.Nil, err
	}
	return ownerID, nil
}

// FindInspectionTypeByID retrieves a bookable inspection product.
func (r *PostgresRepository) FindInspectionTypeByID(ctx context.Context, id uuid.UUID) (*domain.InspectionType, error) {
	var it domain.InspectionType
	query := `SELECT id, name, base_price, duration_minutes, active FROM inspection_types WHERE id = $1`
	err := r.db.QueryRow(ctx, query, id).Scan(&it.ID, &it.Name, &it.BasePrice, &it.DurationMinutes, &it.Active)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrInspectionTypeNotFound
		}
		return nil, err
	}
	return &it, nil
}

// CreateInspectionWithWalletDebit persists a new booking. When a wallet
// deduction is requested, the conditional debit, its ledger entry, and the
// inspection insert commit together: a failure partway leaves no money moved
// and no booking row.
func (r *PostgresRepository) CreateInspectionWithWalletDebit(ctx context.Context, inspection *domain.Inspection) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if inspection.WalletDeduction > 0 {
		var walletID uuid.UUID
		err := tx.QueryRow(ctx,
			`UPDATE wallets SET balance = balance - $1, updated_at = NOW()
			 WHERE owner_id = $2 AND balance >= $1
			 RETURNING id`,
			inspection.WalletDeduction, inspection.UserID,
		).Scan(&walletID)
		if err != nil {
			if err == pgx.ErrNoRows {
				return ErrInsufficientFunds
			}
			return err
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO wallet_transactions (id, wallet_id, amount, type, status, reference) VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.New(), walletID, -inspection.WalletDeduction, domain.WalletTxnFee, "completed", inspection.BookingReference,
		)
		if err != nil {
			return err
		}
	}

	query := `
		INSERT INTO inspections (
			id, user_id, vehicle_id, inspector_id, inspection_type_id,
			scheduled_date, slot_number, time_slot, booking_reference, status,
			amount, wallet_deduction, remaining_amount, version
		)
		VALUES ($1, $2, $3, $4, $5, $6::date, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at
	`
	err = tx.QueryRow(ctx, query,
		inspection.ID,
		inspection.UserID,
		inspection.VehicleID,
		inspection.InspectorID,
		inspection.InspectionTypeID,
		inspection.ScheduledDate,
		inspection.SlotNumber,
		inspection.TimeSlot,
		inspection.BookingReference,
		inspection.Status,
		inspection.Amount,
		inspection.WalletDeduction,
		inspection.RemainingAmount,
		inspection.Version,
	).Scan(&inspection.CreatedAt, &inspection.UpdatedAt)
	if err != nil {
		return translateInspectionInsertError(err)
	}

	return tx.Commit(ctx)
}

func translateInspectionInsertError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case slotUniqueIndexName:
			return ErrSlotAlreadyBooked
		case bookingRefUniqueConstraint:
			return ErrDuplicateBookingReference
		}
		return ErrSlotAlreadyBooked
	}
	return err
}

const inspectionColumns = `
	id, user_id, vehicle_id, inspector_id, inspection_type_id,
	scheduled_date, slot_number, time_slot, booking_reference, status,
	amount, wallet_deduction, remaining_amount, version, report,
	cancel_reason, completed_at, created_at, updated_at
`

func scanInspection(row pgx.Row) (*domain.Inspection, error) {
	var insp domain.Inspection
	var rawReport []byte
	err := row.Scan(
		&insp.ID, &insp.UserID, &insp.VehicleID, &insp.InspectorID, &insp.InspectionTypeID,
		&insp.ScheduledDate, &insp.SlotNumber, &insp.TimeSlot, &insp.BookingReference, &insp.Status,
		&insp.Amount, &insp.WalletDeduction, &insp.RemainingAmount, &insp.Version, &rawReport,
		&insp.CancelReason, &insp.CompletedAt, &insp.CreatedAt, &insp.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(rawReport) > 0 {
		var report domain.Report
		if err := json.Unmarshal(rawReport, &report); err != nil {
			return nil, fmt.Errorf("failed to decode report: %w", err)
		}
		insp.Report = &report
	}
	return &insp, nil
}

// FindInspectionByID retrieves one inspection.
func (r *PostgresRepository) FindInspectionByID(ctx context.Context, id uuid.UUID) (*domain.Inspection, error) {
	insp, err := scanInspection(r.db.QueryRow(ctx, `SELECT `+inspectionColumns+` FROM inspections WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrInspectionNotFound
		}
		return nil, err
	}
	return insp, nil
}

// cancelInspectionTx transitions an inspection to cancelled inside an existing
// transaction and refunds any wallet deduction to the user. Returns the updated
// inspection and the refunded amount; (nil, 0) when the inspection was already
// in a terminal state.
func cancelInspectionTx(ctx context.Context, tx pgx.Tx, inspectionID uuid.UUID, reason string) (*domain.Inspection, int64, error) {
	query := `
		UPDATE inspections
		SET status = $2, cancel_reason = $3, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND status IN ($4, $5)
		RETURNING ` + inspectionColumns
	insp, err := scanInspection(tx.QueryRow(ctx, query,
		inspectionID, domain.InspectionStatusCancelled, reason,
		domain.InspectionStatusPending, domain.InspectionStatusPaymentPending,
	))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, 0, nil
		}
		return nil, 0, err
	}

	if insp.WalletDeduction > 0 {
		var walletID uuid.UUID
		err := tx.QueryRow(ctx,
			`UPDATE wallets SET balance = balance + $1, updated_at = NOW() WHERE owner_id = $2 RETURNING id`,
			insp.WalletDeduction, insp.UserID,
		).Scan(&walletID)
		if err != nil {
			if err == pgx.ErrNoRows {
				return nil, 0, ErrWalletNotFound
			}
			return nil, 0, err
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO wallet_transactions (id, wallet_id, amount, type, status, reference) VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.New(), walletID, insp.WalletDeduction, domain.WalletTxnRefund, "completed", insp.BookingReference,
		)
		if err != nil {
			return nil, 0, err
		}
		return insp, insp.WalletDeduction, nil
	}
	return insp, 0, nil
}

// CancelInspectionWithRefund cancels a booking and returns any wallet deduction
// to the user atomically. Terminal inspections yield ErrInvalidInspectionState.
func (r *PostgresRepository) CancelInspectionWithRefund(ctx context.Context, inspectionID uuid.UUID, reason string) (*domain.Inspection, int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, 0, err
	}
	defer tx.Rollback(ctx)

	insp, refunded, err := cancelInspectionTx(ctx, tx, inspectionID, reason)
	if err != nil {
		return nil, 0, err
	}
	if insp == nil {
		// Distinguish missing from already-terminal for the caller.
		if _, err := r.FindInspectionByID(ctx, inspectionID); err != nil {
			return nil, 0, err
		}
		return nil, 0, ErrInvalidInspectionState
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, 0, err
	}
	return insp, refunded, nil
}

// CompleteInspectionWithEarnings applies the inspector's final report with an
// optimistic-lock predicate and credits both earnings wallets in the same
// transaction.
func (r *PostgresRepository) CompleteInspectionWithEarnings(ctx context.Context, params CompleteInspectionParams) (*domain.Inspection, error) {
	rawReport, err := json.Marshal(params.Report)
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE inspections
		SET status = $5, report = $4, completed_at = NOW(), version = version + 1, updated_at = NOW()
		WHERE id = $1 AND inspector_id = $2 AND version = $3 AND status = $6
		RETURNING ` + inspectionColumns
	insp, err := scanInspection(tx.QueryRow(ctx, query,
		params.InspectionID, params.InspectorID, params.ExpectedVersion, rawReport,
		domain.InspectionStatusCompleted, domain.InspectionStatusConfirmed,
	))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, r.classifyCompletionConflict(ctx, params)
		}
		return nil, err
	}

	if params.InspectorShare > 0 {
		if err := creditWalletTx(ctx, tx, params.InspectorID, domain.WalletRoleInspector, params.InspectorShare, domain.WalletTxnEarned, insp.BookingReference); err != nil {
			return nil, err
		}
	}
	if params.PlatformFee > 0 {
		if err := creditWalletTx(ctx, tx, params.PlatformOwnerID, domain.WalletRolePlatform, params.PlatformFee, domain.WalletTxnPlatformFee, insp.BookingReference); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return insp, nil
}

// classifyCompletionConflict explains why the guarded completion update matched
// nothing without leaking another inspector's booking.
func (r *PostgresRepository) classifyCompletionConflict(ctx context.Context, params CompleteInspectionParams) error {
	insp, err := r.FindInspectionByID(ctx, params.InspectionID)
	if err != nil {
		return err
	}
	if insp.InspectorID != params.InspectorID {
		return ErrInspectionNotFound
	}
	if insp.Status != domain.InspectionStatusConfirmed {
		return ErrInvalidInspectionState
	}
	return ErrVersionConflict
}

// CreatePayment inserts one payment-intent attempt record.
func (r *PostgresRepository) CreatePayment(ctx context.Context, payment *domain.Payment) error {
	rawMetadata, err := json.Marshal(payment.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode payment metadata: %w", err)
	}
	query := `
		INSERT INTO payments (id, inspection_id, user_id, amount, currency, gateway_intent_id, status, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`
	err = r.db.QueryRow(ctx, query,
		payment.ID, payment.InspectionID, payment.UserID, payment.Amount,
		payment.Currency, payment.GatewayIntentID, payment.Status, rawMetadata,
	).Scan(&payment.CreatedAt, &payment.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == intentUniqueConstraint {
			return fmt.Errorf("payment record for intent %s already exists: %w", payment.GatewayIntentID, err)
		}
		return err
	}
	return nil
}

const paymentColumns = `id, inspection_id, user_id, amount, currency, gateway_intent_id, status, failure_reason, metadata, created_at, updated_at`

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	var rawMetadata []byte
	err := row.Scan(
		&p.ID, &p.InspectionID, &p.UserID, &p.Amount, &p.Currency,
		&p.GatewayIntentID, &p.Status, &p.FailureReason, &rawMetadata, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(rawMetadata) > 0 {
		if err := json.Unmarshal(rawMetadata, &p.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode payment metadata: %w", err)
		}
	}
	return &p, nil
}

// FindPaymentByIntentID retrieves a payment by its gateway intent id.
func (r *PostgresRepository) FindPaymentByIntentID(ctx context.Context, intentID string) (*domain.Payment, error) {
	p, err := scanPayment(r.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE gateway_intent_id = $1`, intentID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return p, nil
}

// FindPendingPaymentsByInspection lists non-terminal payment records for one
// inspection, oldest first. The intent lifecycle manager prunes these.
func (r *PostgresRepository) FindPendingPaymentsByInspection(ctx context.Context, inspectionID uuid.UUID) ([]domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE inspection_id = $1 AND status = $2 ORDER BY created_at`
	rows, err := r.db.Query(ctx, query, inspectionID, domain.PaymentStatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPayments(rows)
}

// FindStalePendingPayments lists pending payments created before the cutoff,
// oldest first, for the reaper to resolve.
func (r *PostgresRepository) FindStalePendingPayments(ctx context.Context, cutoff time.Time, limit int) ([]domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE status = $1 AND created_at < $2 ORDER BY created_at LIMIT $3`
	rows, err := r.db.Query(ctx, query, domain.PaymentStatusPending, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPayments(rows)
}

func collectPayments(rows pgx.Rows) ([]domain.Payment, error) {
	var payments []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

// MarkPaymentFailed flips a pending payment to failed. Already-terminal records
// are left untouched so replays stay idempotent.
func (r *PostgresRepository) MarkPaymentFailed(ctx context.Context, paymentID uuid.UUID, reason string) error {
	query := `
		UPDATE payments SET status = $2, failure_reason = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4
	`
	_, err := r.db.Exec(ctx, query, paymentID, domain.PaymentStatusFailed, reason, domain.PaymentStatusPending)
	return err
}

// SettlePaymentSucceeded applies a successful gateway outcome: payment to
// succeeded and inspection to confirmed, in one transaction. Replays against an
// already-terminal payment return Applied=false and change nothing.
func (r *PostgresRepository) SettlePaymentSucceeded(ctx context.Context, intentID string) (*domain.SettlementOutcome, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	payment, err := lockPaymentByIntentTx(ctx, tx, intentID)
	if err != nil {
		return nil, err
	}

	if payment.Status != domain.PaymentStatusPending {
		insp, err := r.FindInspectionByID(ctx, payment.InspectionID)
		if err != nil {
			return nil, err
		}
		return &domain.SettlementOutcome{Payment: payment, Inspection: insp, Applied: false}, tx.Commit(ctx)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE payments SET status = $2, updated_at = NOW() WHERE id = $1`,
		payment.ID, domain.PaymentStatusSucceeded,
	); err != nil {
		return nil, err
	}
	payment.Status = domain.PaymentStatusSucceeded

	query := `
		UPDATE inspections
		SET status = $2, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND status IN ($3, $4)
		RETURNING ` + inspectionColumns
	insp, err := scanInspection(tx.QueryRow(ctx, query,
		payment.InspectionID, domain.InspectionStatusConfirmed,
		domain.InspectionStatusPending, domain.InspectionStatusPaymentPending,
	))
	if err != nil {
		if err == pgx.ErrNoRows {
			// The inspection already left its pending state; keep the payment
			// update and report what we found.
			insp, err = scanInspection(tx.QueryRow(ctx, `SELECT `+inspectionColumns+` FROM inspections WHERE id = $1`, payment.InspectionID))
			if err != nil {
				return nil, err
			}
		} else {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &domain.SettlementOutcome{Payment: payment, Inspection: insp, Applied: true}, nil
}

// SettlePaymentFailed applies a failed gateway outcome: payment to failed,
// inspection to cancelled, and the user's wallet deduction refunded, all in one
// transaction.
func (r *PostgresRepository) SettlePaymentFailed(ctx context.Context, intentID string, reason string) (*domain.SettlementOutcome, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	payment, err := lockPaymentByIntentTx(ctx, tx, intentID)
	if err != nil {
		return nil, err
	}

	if payment.Status != domain.PaymentStatusPending {
		insp, err := r.FindInspectionByID(ctx, payment.InspectionID)
		if err != nil {
			return nil, err
		}
		return &domain.SettlementOutcome{Payment: payment, Inspection: insp, Applied: false}, tx.Commit(ctx)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE payments SET status = $2, failure_reason = $3, updated_at = NOW() WHERE id = $1`,
		payment.ID, domain.PaymentStatusFailed, reason,
	); err != nil {
		return nil, err
	}
	payment.Status = domain.PaymentStatusFailed
	payment.FailureReason = &reason

	insp, refunded, err := cancelInspectionTx(ctx, tx, payment.InspectionID, "payment failed")
	if err != nil {
		return nil, err
	}
	if insp == nil {
		insp, err = scanInspection(tx.QueryRow(ctx, `SELECT `+inspectionColumns+` FROM inspections WHERE id = $1`, payment.InspectionID))
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &domain.SettlementOutcome{Payment: payment, Inspection: insp, Applied: true, WalletRefunded: refunded}, nil
}

func lockPaymentByIntentTx(ctx context.Context, tx pgx.Tx, intentID string) (*domain.Payment, error) {
	p, err := scanPayment(tx.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE gateway_intent_id = $1 FOR UPDATE`, intentID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return p, nil
}
