/**
 * @description
 * This file implements the wallet view and withdrawal workflows. All balance
 * movement happens inside store transactions; this layer validates the
 * method-conditional payout details and publishes the notifications.
 *
 * @dependencies
 * - context, fmt, log, strings: Standard Go libraries.
 * - internal/domain, internal/store: For domain models and data access.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/inspecto/booking-service/internal/domain"
)

const walletTransactionLimit = 50

// GetWallet returns the actor's wallet with its recent ledger entries,
// creating an empty wallet on first touch.
func (s *Service) GetWallet(ctx context.Context, ownerID uuid.UUID, ownerRole string) (*domain.WalletView, error) {
	wallet, err := s.repo.GetOrCreateWallet(ctx, ownerID, ownerRole)
	if err != nil {
		return nil, err
	}
	txns, err := s.repo.ListWalletTransactions(ctx, wallet.ID, walletTransactionLimit)
	if err != nil {
		return nil, err
	}
	return &domain.WalletView{Wallet: wallet, Transactions: txns}, nil
}

// RequestWithdrawal locks the requested amount out of the inspector's spendable
// balance and records a pending withdrawal. The conditional debit in the store
// rejects overdrafts atomically.
func (s *Service) RequestWithdrawal(ctx context.Context, inspectorID uuid.UUID, req domain.RequestWithdrawalPayload) (*domain.Withdrawal, error) {
	if req.Amount < s.minWithdrawal {
		return nil, fmt.Errorf("%w: minimum is %d", ErrWithdrawalBelowMinimum, s.minWithdrawal)
	}
	if err := validateWithdrawalDetails(req.Method, req.Details); err != nil {
		return nil, err
	}

	withdrawal := &domain.Withdrawal{
		ID:          uuid.New(),
		InspectorID: inspectorID,
		Amount:      req.Amount,
		Status:      domain.WithdrawalStatusPending,
		Method:      req.Method,
		Details:     req.Details,
	}
	if err := s.repo.CreateWithdrawalWithLock(ctx, withdrawal); err != nil {
		return nil, err
	}

	log.Printf("RequestWithdrawal: inspector %s requested %d via %s (withdrawal %s)",
		inspectorID, req.Amount, req.Method, withdrawal.ID)

	s.publishNotification(ctx, s.platformOwnerID, "admin", domain.NotificationWithdrawalRequest,
		"Withdrawal requested",
		fmt.Sprintf("Inspector requested a withdrawal of %d.", req.Amount),
		map[string]string{"withdrawal_id": withdrawal.ID.String(), "inspector_id": inspectorID.String()})

	return withdrawal, nil
}

// ProcessWithdrawal approves or rejects a pending withdrawal. Approval burns
// the locked amount into total_withdrawn; rejection returns it to the
// spendable balance. Either way the inspector is notified.
func (s *Service) ProcessWithdrawal(ctx context.Context, withdrawalID uuid.UUID, req domain.ProcessWithdrawalPayload) (*domain.Withdrawal, error) {
	var (
		withdrawal *domain.Withdrawal
		err        error
	)
	switch strings.ToLower(strings.TrimSpace(req.Action)) {
	case "approve":
		var remarks *string
		if req.Remarks != "" {
			remarks = &req.Remarks
		}
		withdrawal, err = s.repo.ApproveWithdrawal(ctx, withdrawalID, remarks)
	case "reject":
		reason := req.Remarks
		if reason == "" {
			reason = "rejected by admin"
		}
		withdrawal, err = s.repo.RejectWithdrawal(ctx, withdrawalID, reason)
	default:
		return nil, fmt.Errorf("%w: action must be approve or reject", ErrInvalidWithdrawalMethod)
	}
	if err != nil {
		return nil, err
	}

	log.Printf("ProcessWithdrawal: withdrawal %s now %s", withdrawal.ID, withdrawal.Status)

	title := "Withdrawal approved"
	message := fmt.Sprintf("Your withdrawal of %d was approved.", withdrawal.Amount)
	if withdrawal.Status == domain.WithdrawalStatusRejected {
		title = "Withdrawal rejected"
		message = fmt.Sprintf("Your withdrawal of %d was rejected and the amount returned to your wallet.", withdrawal.Amount)
	}
	s.publishNotification(ctx, withdrawal.InspectorID, domain.WalletRoleInspector, domain.NotificationWithdrawalDecision,
		title, message, map[string]string{"withdrawal_id": withdrawal.ID.String(), "status": withdrawal.Status})
	s.publishEmail(ctx, withdrawal.InspectorID, title, message)

	return withdrawal, nil
}

// validateWithdrawalDetails enforces the method-conditional payout fields.
func validateWithdrawalDetails(method string, details domain.WithdrawalDetails) error {
	switch method {
	case domain.WithdrawalMethodBankTransfer:
		if details.AccountNumber == "" || details.IFSCCode == "" || details.AccountHolderName == "" {
			return fmt.Errorf("%w: bank_transfer requires account number, IFSC code and holder name", ErrInvalidWithdrawalMethod)
		}
	case domain.WithdrawalMethodUPI:
		if details.UPIID == "" {
			return fmt.Errorf("%w: upi requires a UPI id", ErrInvalidWithdrawalMethod)
		}
	case domain.WithdrawalMethodWallet:
		// No payout details needed; funds stay in the platform wallet system.
	default:
		return fmt.Errorf("%w: unknown method %q", ErrInvalidWithdrawalMethod, method)
	}
	return nil
}
