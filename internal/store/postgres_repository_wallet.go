/**
 * @description
 * This file provides the wallet and withdrawal half of the PostgreSQL
 * repository. Balances only move through single-statement conditional updates
 * or row-locked transactions, and every movement appends a ledger entry in the
 * same transaction.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/inspecto/booking-service/internal/domain"
	"github.com/jackc/pgx/v5"
)

const walletColumns = `id, owner_id, owner_role, balance, pending_balance, total_earned, total_withdrawn, created_at, updated_at`

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	var w domain.Wallet
	err := row.Scan(
		&w.ID, &w.OwnerID, &w.OwnerRole, &w.Balance, &w.PendingBalance,
		&w.TotalEarned, &w.TotalWithdrawn, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// GetOrCreateWallet returns the owner's wallet, creating a zero-balance one on
// first touch.
func (r *PostgresRepository) GetOrCreateWallet(ctx context.Context, ownerID uuid.UUID, ownerRole string) (*domain.Wallet, error) {
	_, err := r.db.Exec(ctx,
		`INSERT INTO wallets (id, owner_id, owner_role) VALUES ($1, $2, $3) ON CONFLICT (owner_id) DO NOTHING`,
		uuid.New(), ownerID, ownerRole,
	)
	if err != nil {
		return nil, err
	}
	return r.FindWalletByOwnerID(ctx, ownerID)
}

// FindWalletByOwnerID retrieves a wallet by its owner.
func (r *PostgresRepository) FindWalletByOwnerID(ctx context.Context, ownerID uuid.UUID) (*domain.Wallet, error) {
	w, err := scanWallet(r.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE owner_id = $1`, ownerID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return w, nil
}

// ListWalletTransactions returns the most recent ledger entries for a wallet.
func (r *PostgresRepository) ListWalletTransactions(ctx context.Context, walletID uuid.UUID, limit int) ([]domain.WalletTransaction, error) {
	query := `
		SELECT id, wallet_id, amount, type, status, reference, created_at
		FROM wallet_transactions
		WHERE wallet_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, walletID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []domain.WalletTransaction
	for rows.Next() {
		var t domain.WalletTransaction
		if err := rows.Scan(&t.ID, &t.WalletID, &t.Amount, &t.Type, &t.Status, &t.Reference, &t.CreatedAt); err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// creditWalletTx upserts the owner's wallet, adds the amount to its spendable
// balance, and appends the ledger entry. Earnings-type credits also bump
// total_earned.
func creditWalletTx(ctx context.Context, tx pgx.Tx, ownerID uuid.UUID, ownerRole string, amount int64, txnType, reference string) error {
	var earnedDelta int64
	switch txnType {
	case domain.WalletTxnEarned, domain.WalletTxnPlatformFee:
		earnedDelta = amount
	}

	var walletID uuid.UUID
	err := tx.QueryRow(ctx, `
		INSERT INTO wallets (id, owner_id, owner_role, balance, total_earned)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (owner_id) DO UPDATE SET
			balance = wallets.balance + EXCLUDED.balance,
			total_earned = wallets.total_earned + EXCLUDED.total_earned,
			updated_at = NOW()
		RETURNING id
	`, uuid.New(), ownerID, ownerRole, amount, earnedDelta).Scan(&walletID)
	if err != nil {
		return fmt.Errorf("failed to credit wallet for owner %s: %w", ownerID, err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO wallet_transactions (id, wallet_id, amount, type, status, reference) VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New(), walletID, amount, txnType, "completed", reference,
	)
	return err
}

// CreateWithdrawalWithLock moves the requested amount from spendable balance to
// pending balance and inserts the withdrawal row in one transaction. The
// conditional update is the race arbiter: concurrent requests against the same
// balance cannot both pass the `balance >= amount` predicate.
func (r *PostgresRepository) CreateWithdrawalWithLock(ctx context.Context, withdrawal *domain.Withdrawal) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var walletID uuid.UUID
	err = tx.QueryRow(ctx, `
		UPDATE wallets
		SET balance = balance - $1, pending_balance = pending_balance + $1, updated_at = NOW()
		WHERE owner_id = $2 AND balance >= $1
		RETURNING id
	`, withdrawal.Amount, withdrawal.InspectorID).Scan(&walletID)
	if err != nil {
		if err == pgx.ErrNoRows {
			if _, findErr := r.FindWalletByOwnerID(ctx, withdrawal.InspectorID); findErr != nil {
				return findErr
			}
			return ErrInsufficientFunds
		}
		return err
	}

	query := `
		INSERT INTO withdrawals (
			id, inspector_id, amount, status, method,
			account_number, ifsc_code, account_holder_name, upi_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING request_date
	`
	err = tx.QueryRow(ctx, query,
		withdrawal.ID, withdrawal.InspectorID, withdrawal.Amount, withdrawal.Status, withdrawal.Method,
		withdrawal.Details.AccountNumber, withdrawal.Details.IFSCCode,
		withdrawal.Details.AccountHolderName, withdrawal.Details.UPIID,
	).Scan(&withdrawal.RequestDate)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

const withdrawalColumns = `
	id, inspector_id, amount, status, method,
	account_number, ifsc_code, account_holder_name, upi_id,
	request_date, processed_date, rejection_reason, transaction_id, remarks
`

func scanWithdrawal(row pgx.Row) (*domain.Withdrawal, error) {
	var w domain.Withdrawal
	err := row.Scan(
		&w.ID, &w.InspectorID, &w.Amount, &w.Status, &w.Method,
		&w.Details.AccountNumber, &w.Details.IFSCCode, &w.Details.AccountHolderName, &w.Details.UPIID,
		&w.RequestDate, &w.ProcessedDate, &w.RejectionReason, &w.TransactionID, &w.Remarks,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// lockPendingWithdrawalTx loads a withdrawal FOR UPDATE and checks it is still
// pending, so approve and reject cannot both win.
func lockPendingWithdrawalTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Withdrawal, error) {
	w, err := scanWithdrawal(tx.QueryRow(ctx, `SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrWithdrawalNotFound
		}
		return nil, err
	}
	if w.Status != domain.WithdrawalStatusPending {
		return nil, ErrWithdrawalNotPending
	}
	return w, nil
}

// ApproveWithdrawal burns the locked amount: pending_balance drops, the payout
// counts toward total_withdrawn, and the ledger records the debit.
func (r *PostgresRepository) ApproveWithdrawal(ctx context.Context, withdrawalID uuid.UUID, remarks *string) (*domain.Withdrawal, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	w, err := lockPendingWithdrawalTx(ctx, tx, withdrawalID)
	if err != nil {
		return nil, err
	}

	var walletID uuid.UUID
	err = tx.QueryRow(ctx, `
		UPDATE wallets
		SET pending_balance = pending_balance - $1, total_withdrawn = total_withdrawn + $1, updated_at = NOW()
		WHERE owner_id = $2 AND pending_balance >= $1
		RETURNING id
	`, w.Amount, w.InspectorID).Scan(&walletID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("wallet for inspector %s has less pending balance than withdrawal %s", w.InspectorID, w.ID)
		}
		return nil, err
	}

	now := time.Now()
	err = tx.QueryRow(ctx, `
		UPDATE withdrawals SET status = $2, processed_date = $3, remarks = $4 WHERE id = $1
		RETURNING `+withdrawalColumns,
		w.ID, domain.WithdrawalStatusApproved, now, remarks,
	).Scan(
		&w.ID, &w.InspectorID, &w.Amount, &w.Status, &w.Method,
		&w.Details.AccountNumber, &w.Details.IFSCCode, &w.Details.AccountHolderName, &w.Details.UPIID,
		&w.RequestDate, &w.ProcessedDate, &w.RejectionReason, &w.TransactionID, &w.Remarks,
	)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO wallet_transactions (id, wallet_id, amount, type, status, reference) VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New(), walletID, -w.Amount, domain.WalletTxnWithdrawn, "completed", w.ID.String(),
	)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

// RejectWithdrawal returns the locked amount to the spendable balance and
// records the reversal in the ledger.
func (r *PostgresRepository) RejectWithdrawal(ctx context.Context, withdrawalID uuid.UUID, reason string) (*domain.Withdrawal, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	w, err := lockPendingWithdrawalTx(ctx, tx, withdrawalID)
	if err != nil {
		return nil, err
	}

	var walletID uuid.UUID
	err = tx.QueryRow(ctx, `
		UPDATE wallets
		SET pending_balance = pending_balance - $1, balance = balance + $1, updated_at = NOW()
		WHERE owner_id = $2 AND pending_balance >= $1
		RETURNING id
	`, w.Amount, w.InspectorID).Scan(&walletID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("wallet for inspector %s has less pending balance than withdrawal %s", w.InspectorID, w.ID)
		}
		return nil, err
	}

	now := time.Now()
	err = tx.QueryRow(ctx, `
		UPDATE withdrawals SET status = $2, processed_date = $3, rejection_reason = $4 WHERE id = $1
		RETURNING `+withdrawalColumns,
		w.ID, domain.WithdrawalStatusRejected, now, reason,
	).Scan(
		&w.ID, &w.InspectorID, &w.Amount, &w.Status, &w.Method,
		&w.Details.AccountNumber, &w.Details.IFSCCode, &w.Details.AccountHolderName, &w.Details.UPIID,
		&w.RequestDate, &w.ProcessedDate, &w.RejectionReason, &w.TransactionID, &w.Remarks,
	)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO wallet_transactions (id, wallet_id, amount, type, status, reference) VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New(), walletID, w.Amount, domain.WalletTxnRefund, "completed", w.ID.String(),
	)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return w, nil
}
