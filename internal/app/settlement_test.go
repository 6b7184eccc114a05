package app

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/inspecto/booking-service/internal/domain"
	"github.com/inspecto/booking-service/internal/store"
	"github.com/inspecto/booking-service/pkg/rabbitmq"
	"github.com/inspecto/booking-service/pkg/stripeclient"
)

type settlementRepoStub struct {
	store.Repository

	successOutcome *domain.SettlementOutcome
	failureOutcome *domain.SettlementOutcome
	successErr     error
	failureErr     error

	successCalls []string
	failureCalls []string
}

func (s *settlementRepoStub) SettlePaymentSucceeded(ctx context.Context, intentID string) (*domain.SettlementOutcome, error) {
	s.successCalls = append(s.successCalls, intentID)
	if s.successErr != nil {
		return nil, s.successErr
	}
	return s.successOutcome, nil
}

func (s *settlementRepoStub) SettlePaymentFailed(ctx context.Context, intentID string, reason string) (*domain.SettlementOutcome, error) {
	s.failureCalls = append(s.failureCalls, intentID)
	if s.failureErr != nil {
		return nil, s.failureErr
	}
	return s.failureOutcome, nil
}

type publishedEvent struct {
	routingKey string
	body       interface{}
}

type publisherStub struct {
	published []publishedEvent
}

func (p *publisherStub) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	p.published = append(p.published, publishedEvent{routingKey: routingKey, body: body})
	return nil
}

func (p *publisherStub) Close() {}

type eventGuardStub struct {
	claimResult bool
	claims      []string
	releases    []string
}

func (g *eventGuardStub) ClaimEvent(ctx context.Context, eventID string) (bool, error) {
	g.claims = append(g.claims, eventID)
	return g.claimResult, nil
}

func (g *eventGuardStub) ReleaseEvent(ctx context.Context, eventID string) {
	g.releases = append(g.releases, eventID)
}

func settlementEvent(eventType, eventID, intentID string) *stripeclient.Event {
	event := &stripeclient.Event{ID: eventID, Type: eventType}
	event.Data.Object = stripeclient.PaymentIntent{ID: intentID}
	return event
}

func appliedOutcome() *domain.SettlementOutcome {
	return &domain.SettlementOutcome{
		Payment: &domain.Payment{ID: uuid.New(), Status: domain.PaymentStatusSucceeded},
		Inspection: &domain.Inspection{
			ID:               uuid.New(),
			UserID:           uuid.New(),
			InspectorID:      uuid.New(),
			BookingReference: "INS-20260901-AB12CD",
			Status:           domain.InspectionStatusConfirmed,
		},
		Applied: true,
	}
}

func TestHandleGatewayEvent_AppliesSuccess(t *testing.T) {
	repo := &settlementRepoStub{successOutcome: appliedOutcome()}
	service := NewService(ServiceParams{Repo: repo})

	err := service.HandleGatewayEvent(context.Background(), settlementEvent(stripeclient.EventPaymentIntentSucceeded, "evt_1", "pi_123"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.successCalls) != 1 || repo.successCalls[0] != "pi_123" {
		t.Fatalf("expected one success settlement for pi_123, got %v", repo.successCalls)
	}
	if len(repo.failureCalls) != 0 {
		t.Fatal("expected no failure settlement")
	}
}

func TestHandleGatewayEvent_ReplayIsNoOp(t *testing.T) {
	outcome := appliedOutcome()
	outcome.Applied = false
	repo := &settlementRepoStub{successOutcome: outcome}
	service := NewService(ServiceParams{Repo: repo})

	err := service.HandleGatewayEvent(context.Background(), settlementEvent(stripeclient.EventPaymentIntentSucceeded, "evt_replay", "pi_123"))
	if err != nil {
		t.Fatalf("expected replays to be acknowledged, got %v", err)
	}
}

func TestHandleGatewayEvent_FailureRefundsAndCancels(t *testing.T) {
	outcome := appliedOutcome()
	outcome.Payment.Status = domain.PaymentStatusFailed
	outcome.Inspection.Status = domain.InspectionStatusCancelled
	outcome.WalletRefunded = 25000
	repo := &settlementRepoStub{failureOutcome: outcome}
	service := NewService(ServiceParams{Repo: repo})

	err := service.HandleGatewayEvent(context.Background(), settlementEvent(stripeclient.EventPaymentIntentFailed, "evt_2", "pi_456"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.failureCalls) != 1 || repo.failureCalls[0] != "pi_456" {
		t.Fatalf("expected one failure settlement for pi_456, got %v", repo.failureCalls)
	}
	if len(repo.successCalls) != 0 {
		t.Fatal("expected no success settlement")
	}
}

func TestHandleGatewayEvent_IgnoresUnknownTypes(t *testing.T) {
	repo := &settlementRepoStub{}
	service := NewService(ServiceParams{Repo: repo})

	err := service.HandleGatewayEvent(context.Background(), settlementEvent("charge.refunded", "evt_3", "pi_789"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.successCalls) != 0 || len(repo.failureCalls) != 0 {
		t.Fatal("expected no settlement work for an unknown event type")
	}
}

func TestHandleGatewayEvent_DuplicateSkipsSettlement(t *testing.T) {
	repo := &settlementRepoStub{successOutcome: appliedOutcome()}
	guard := &eventGuardStub{claimResult: false}
	service := NewService(ServiceParams{Repo: repo, EventGuard: guard})

	err := service.HandleGatewayEvent(context.Background(), settlementEvent(stripeclient.EventPaymentIntentSucceeded, "evt_dup", "pi_123"))
	if err != nil {
		t.Fatalf("expected duplicates to be acknowledged, got %v", err)
	}
	if len(repo.successCalls) != 0 {
		t.Fatal("expected no settlement work for an already-claimed event")
	}
	if len(guard.releases) != 0 {
		t.Fatal("expected no claim release for a skipped duplicate")
	}
}

func TestHandleGatewayEvent_ReleasesClaimOnSettlementError(t *testing.T) {
	repo := &settlementRepoStub{successErr: errors.New("database unavailable")}
	guard := &eventGuardStub{claimResult: true}
	service := NewService(ServiceParams{Repo: repo, EventGuard: guard})

	event := settlementEvent(stripeclient.EventPaymentIntentSucceeded, "evt_retry", "pi_123")
	if err := service.HandleGatewayEvent(context.Background(), event); err == nil {
		t.Fatal("expected the settlement error to surface so the gateway redelivers")
	}
	if len(guard.releases) != 1 || guard.releases[0] != "evt_retry" {
		t.Fatalf("expected the claim to be released for redelivery, got %v", guard.releases)
	}

	// The redelivery claims the id again and settles.
	repo.successErr = nil
	repo.successOutcome = appliedOutcome()
	if err := service.HandleGatewayEvent(context.Background(), event); err != nil {
		t.Fatalf("expected the redelivery to settle, got %v", err)
	}
	if len(repo.successCalls) != 2 {
		t.Fatalf("expected both deliveries to reach settlement, got %d", len(repo.successCalls))
	}
}

func TestHandleGatewayEvent_EmailsUserOnSuccess(t *testing.T) {
	repo := &settlementRepoStub{successOutcome: appliedOutcome()}
	producer := &publisherStub{}
	service := NewService(ServiceParams{Repo: repo, EventProducer: producer})

	err := service.HandleGatewayEvent(context.Background(), settlementEvent(stripeclient.EventPaymentIntentSucceeded, "evt_mail", "pi_123"))
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
		t.Fatal("expected an email event alongside the push notifications")
	}
	if email.RecipientID != repo.successOutcome.Inspection.UserID {
		t.Fatalf("expected the email to target the booking user, got %s", email.RecipientID)
	}
}

func TestHandleGatewayEvent_OrphanIntentIsAcknowledged(t *testing.T) {
	repo := &settlementRepoStub{successErr: store.ErrPaymentNotFound}
	service := NewService(ServiceParams{Repo: repo})

	err := service.HandleGatewayEvent(context.Background(), settlementEvent(stripeclient.EventPaymentIntentSucceeded, "evt_4", "pi_unknown"))
	if err != nil {
		t.Fatalf("expected orphan events to be dropped without error, got %v", err)
	}
}
