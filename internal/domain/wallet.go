package domain

import (
	"time"

	"github.com/google/uuid"
)

// Wallet owner roles.
const (
	WalletRoleUser      = "user"
	WalletRoleInspector = "inspector"
	WalletRolePlatform  = "platform"
)

// Wallet ledger entry types.
const (
	WalletTxnEarned      = "earned"
	WalletTxnWithdrawn   = "withdrawn"
	WalletTxnFee         = "fee"
	WalletTxnPlatformFee = "platform_fee"
	WalletTxnRefund      = "refund"
)

// Withdrawal statuses.
const (
	WithdrawalStatusPending    = "pending"
	WithdrawalStatusApproved   = "approved"
	WithdrawalStatusRejected   = "rejected"
	WithdrawalStatusProcessing = "processing"
	WithdrawalStatusCompleted  = "completed"
	WithdrawalStatusFailed     = "failed"
)

// Withdrawal methods.
const (
	WithdrawalMethodBankTransfer = "bank_transfer"
	WithdrawalMethodUPI          = "upi"
	WithdrawalMethodWallet       = "wallet"
)

// Wallet holds a payee's balances. `balance` is spendable, `pending_balance` is
// locked for in-flight withdrawals. The sum only changes through earnings
// accrual, withdrawal approval, or rejection.
type Wallet struct {
	ID             uuid.UUID `json:"id"`
	OwnerID        uuid.UUID `json:"owner_id"`
	OwnerRole      string    `json:"owner_role"`
	Balance        int64     `json:"balance"`
	PendingBalance int64     `json:"pending_balance"`
	TotalEarned    int64     `json:"total_earned"`
	TotalWithdrawn int64     `json:"total_withdrawn"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// WalletTransaction is one append-only ledger entry.
type WalletTransaction struct {
	ID        uuid.UUID `json:"id"`
	WalletID  uuid.UUID `json:"wallet_id"`
	Amount    int64     `json:"amount"` // signed: credits positive, debits negative
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	Reference string    `json:"reference"` // booking reference, withdrawal id, intent id
	CreatedAt time.Time `json:"created_at"`
}

// WithdrawalDetails carries method-conditional payout fields.
type WithdrawalDetails struct {
	AccountNumber     string `json:"account_number,omitempty"`
	IFSCCode          string `json:"ifsc_code,omitempty"`
	AccountHolderName string `json:"account_holder_name,omitempty"`
	UPIID             string `json:"upi_id,omitempty"`
}

// Withdrawal is one payout request. Creating it locks funds in the wallet;
// approval or rejection unlocks or burns the locked amount.
type Withdrawal struct {
	ID              uuid.UUID         `json:"id"`
	InspectorID     uuid.UUID         `json:"inspector_id"`
	Amount          int64             `json:"amount"`
	Status          string            `json:"status"`
	Method          string            `json:"method"`
	Details         WithdrawalDetails `json:"details"`
	RequestDate     time.Time         `json:"request_date"`
	ProcessedDate   *time.Time        `json:"processed_date,omitempty"`
	RejectionReason *string           `json:"rejection_reason,omitempty"`
	TransactionID   *string           `json:"transaction_id,omitempty"`
	Remarks         *string           `json:"remarks,omitempty"`
}

// RequestWithdrawalPayload is the DTO for the inspector withdrawal endpoint.
type RequestWithdrawalPayload struct {
	Amount  int64             `json:"amount"`
	Method  string            `json:"method"`
	Details WithdrawalDetails `json:"details"`
}

// ProcessWithdrawalPayload is the DTO for the admin process endpoint.
type ProcessWithdrawalPayload struct {
	Action  string `json:"action"` // approve | reject
	Remarks string `json:"remarks,omitempty"`
}

// WalletView is the wallet plus its recent ledger entries.
type WalletView struct {
	Wallet       *Wallet             `json:"wallet"`
	Transactions []WalletTransaction `json:"transactions"`
}
