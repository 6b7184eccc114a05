package app

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/inspecto/booking-service/internal/domain"
	"github.com/inspecto/booking-service/internal/store"
	"github.com/inspecto/booking-service/pkg/rabbitmq"
)

type walletRepoStub struct {
	store.Repository

	createErr error
	created   []*domain.Withdrawal
	approved  []uuid.UUID
	rejected  []uuid.UUID
	reasons   []string
}

func (s *walletRepoStub) CreateWithdrawalWithLock(ctx context.Context, withdrawal *domain.Withdrawal) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, withdrawal)
	return nil
}

func (s *walletRepoStub) ApproveWithdrawal(ctx context.Context, id uuid.UUID, remarks *string) (*domain.Withdrawal, error) {
	s.approved = append(s.approved, id)
	return &domain.Withdrawal{ID: id, InspectorID: uuid.New(), Amount: 150000, Status: domain.WithdrawalStatusApproved}, nil
}

func (s *walletRepoStub) RejectWithdrawal(ctx context.Context, id uuid.UUID, reason string) (*domain.Withdrawal, error) {
	s.rejected = append(s.rejected, id)
	s.reasons = append(s.reasons, reason)
	return &domain.Withdrawal{ID: id, InspectorID: uuid.New(), Amount: 150000, Status: domain.WithdrawalStatusRejected, RejectionReason: &reason}, nil
}

func bankDetails() domain.WithdrawalDetails {
	return domain.WithdrawalDetails{
		AccountNumber:     "123456789012",
		IFSCCode:          "HDFC0001234",
		AccountHolderName: "A Inspector",
	}
}

func TestValidateWithdrawalDetails(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		details domain.WithdrawalDetails
		wantErr bool
	}{
		{"bank transfer with full details", domain.WithdrawalMethodBankTransfer, bankDetails(), false},
		{"bank transfer missing IFSC", domain.WithdrawalMethodBankTransfer, domain.WithdrawalDetails{AccountNumber: "123", AccountHolderName: "A"}, true},
		{"upi with id", domain.WithdrawalMethodUPI, domain.WithdrawalDetails{UPIID: "inspector@upi"}, false},
		{"upi without id", domain.WithdrawalMethodUPI, domain.WithdrawalDetails{}, true},
		{"wallet needs nothing", domain.WithdrawalMethodWallet, domain.WithdrawalDetails{}, false},
		{"unknown method", "cheque", bankDetails(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateWithdrawalDetails(tt.method, tt.details)
			if tt.wantErr && !errors.Is(err, ErrInvalidWithdrawalMethod) {
				t.Fatalf("expected ErrInvalidWithdrawalMethod, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestRequestWithdrawal_BelowMinimum(t *testing.T) {
	repo := &walletRepoStub{}
	service := NewService(ServiceParams{Repo: repo, MinWithdrawal: 100000})

	_, err := service.RequestWithdrawal(context.Background(), uuid.New(), domain.RequestWithdrawalPayload{
		Amount:  99999,
		Method:  domain.WithdrawalMethodBankTransfer,
		Details: bankDetails(),
	})
	if !errors.Is(err, ErrWithdrawalBelowMinimum) {
		t.Fatalf("expected ErrWithdrawalBelowMinimum, got %v", err)
	}
	if len(repo.created) != 0 {
		t.Fatal("expected no withdrawal to be created")
	}
}

func TestRequestWithdrawal_InsufficientBalanceSurfaces(t *testing.T) {
	repo := &walletRepoStub{createErr: store.ErrInsufficientFunds}
	service := NewService(ServiceParams{Repo: repo, MinWithdrawal: 100000})

	_, err := service.RequestWithdrawal(context.Background(), uuid.New(), domain.RequestWithdrawalPayload{
		Amount:  150000,
		Method:  domain.WithdrawalMethodUPI,
		Details: domain.WithdrawalDetails{UPIID: "inspector@upi"},
	})
	if !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestRequestWithdrawal_LocksPendingAmount(t *testing.T) {
	repo := &walletRepoStub{}
	service := NewService(ServiceParams{Repo: repo, MinWithdrawal: 100000})
	inspectorID := uuid.New()

	withdrawal, err := service.RequestWithdrawal(context.Background(), inspectorID, domain.RequestWithdrawalPayload{
		Amount:  150000,
		Method:  domain.WithdrawalMethodBankTransfer,
		Details: bankDetails(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if withdrawal.Status != domain.WithdrawalStatusPending {
		t.Fatalf("expected pending status, got %q", withdrawal.Status)
	}
	if len(repo.created) != 1 || repo.created[0].InspectorID != inspectorID {
		t.Fatal("expected the withdrawal to be persisted for the requesting inspector")
	}
}

func TestProcessWithdrawal(t *testing.T) {
	withdrawalID := uuid.New()

	t.Run("approve", func(t *testing.T) {
		repo := &walletRepoStub{}
		service := NewService(ServiceParams{Repo: repo})

		withdrawal, err := service.ProcessWithdrawal(context.Background(), withdrawalID, domain.ProcessWithdrawalPayload{Action: "approve"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if withdrawal.Status != domain.WithdrawalStatusApproved {
			t.Fatalf("expected approved, got %q", withdrawal.Status)
		}
		if len(repo.approved) != 1 || repo.approved[0] != withdrawalID {
			t.Fatalf("expected approval of %s, got %v", withdrawalID, repo.approved)
		}
	})

	t.Run("reject with default reason", func(t *testing.T) {
		repo := &walletRepoStub{}
		service := NewService(ServiceParams{Repo: repo})

		withdrawal, err := service.ProcessWithdrawal(context.Background(), withdrawalID, domain.ProcessWithdrawalPayload{Action: "reject"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if withdrawal.Status != domain.WithdrawalStatusRejected {
			t.Fatalf("expected rejected, got %q", withdrawal.Status)
		}
		if len(repo.reasons) != 1 || repo.reasons[0] != "rejected by admin" {
			t.Fatalf("expected the default rejection reason, got %v", repo.reasons)
		}
	})

	t.Run("decision is emailed to the inspector", func(t *testing.T) {
		repo := &walletRepoStub{}
		producer := &publisherStub{}
		service := NewService(ServiceParams{Repo: repo, EventProducer: producer})

		withdrawal, err := service.ProcessWithdrawal(context.Background(), withdrawalID, domain.ProcessWithdrawalPayload{Action: "approve"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var email *domain.EmailEvent
		for _, p := range producer.published {
			if p.routingKey == rabbitmq.RouteEmail {
				e := p.body.(domain.EmailEvent)
				email = &e
			}
		}
		if email == nil {
			t.Fatal("expected an email event for the decision")
		}
		if email.RecipientID != withdrawal.InspectorID {
			t.Fatalf("expected the email to target the inspector, got %s", email.RecipientID)
		}
	})

	t.Run("unknown action", func(t *testing.T) {
		repo := &walletRepoStub{}
		service := NewService(ServiceParams{Repo: repo})

		_, err := service.ProcessWithdrawal(context.Background(), withdrawalID, domain.ProcessWithdrawalPayload{Action: "defer"})
		if err == nil {
			t.Fatal("expected an error for an unknown action")
		}
		if len(repo.approved) != 0 || len(repo.rejected) != 0 {
			t.Fatal("expected no repository calls for an unknown action")
		}
	})
}
