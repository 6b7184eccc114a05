/**
 * @description
 * This file implements webhook-driven settlement. The HTTP layer verifies the
 * gateway signature before anything reaches HandleGatewayEvent; here we
 * deduplicate by event id and apply the terminal outcome through a single
 * store transaction. Settlement is idempotent end to end: a replayed event is
 * dropped by the Redis guard, and even if it slips through, the status-guarded
 * store update turns it into a no-op.
 *
 * @dependencies
 * - context, fmt, log: Standard Go libraries.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/stripeclient: For the verified event type.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/inspecto/booking-service/internal/domain"
	"github.com/inspecto/booking-service/internal/metrics"
	"github.com/inspecto/booking-service/internal/store"
	"github.com/inspecto/booking-service/pkg/stripeclient"
)

// HandleGatewayEvent applies one verified webhook event. Unknown event types
// are acknowledged and ignored. Events referencing unknown intents are logged
// and dropped: the gateway may deliver events for intents created by other
// environments.
func (s *Service) HandleGatewayEvent(ctx context.Context, event *stripeclient.Event) error {
	switch event.Type {
	case stripeclient.EventPaymentIntentSucceeded, stripeclient.EventPaymentIntentFailed:
	default:
		log.Printf("HandleGatewayEvent: ignoring event type %s (%s)", event.Type, event.ID)
		return nil
	}

	claimed := true
	if s.eventGuard != nil {
		var err error
		claimed, err = s.eventGuard.ClaimEvent(ctx, event.ID)
		if err != nil {
			log.Printf("WARN: HandleGatewayEvent: dedupe guard unavailable for %s, proceeding: %v", event.ID, err)
		}
	}
	if !claimed {
		log.Printf("HandleGatewayEvent: duplicate event %s, skipping", event.ID)
		metrics.SettlementEvents.WithLabelValues(event.Type, "duplicate").Inc()
		return nil
	}

	intentID := event.Data.Object.ID

	var settleErr error
	switch event.Type {
	case stripeclient.EventPaymentIntentSucceeded:
		settleErr = s.settleSuccess(ctx, event.ID, intentID)
	case stripeclient.EventPaymentIntentFailed:
		settleErr = s.settleFailure(ctx, event.ID, intentID, "payment failed at gateway")
	}
	if settleErr != nil && s.eventGuard != nil {
		// The handler will answer 5xx and the gateway will redeliver; the claim
		// must not make that redelivery look like a duplicate.
		s.eventGuard.ReleaseEvent(ctx, event.ID)
	}
	return settleErr
}

func (s *Service) settleSuccess(ctx context.Context, eventID, intentID string) error {
	outcome, err := s.repo.SettlePaymentSucceeded(ctx, intentID)
	if err != nil {
		if errors.Is(err, store.ErrPaymentNotFound) {
			log.Printf("WARN: settleSuccess: no payment for intent %s (event %s), dropping", intentID, eventID)
			metrics.SettlementEvents.WithLabelValues(stripeclient.EventPaymentIntentSucceeded, "orphan").Inc()
			return nil
		}
		return fmt.Errorf("failed to settle success for intent %s: %w", intentID, err)
	}
	if !outcome.Applied {
		log.Printf("settleSuccess: intent %s already terminal, no-op (event %s)", intentID, eventID)
		metrics.SettlementEvents.WithLabelValues(stripeclient.EventPaymentIntentSucceeded, "replay").Inc()
		return nil
	}

	metrics.SettlementEvents.WithLabelValues(stripeclient.EventPaymentIntentSucceeded, "applied").Inc()
	log.Printf("settleSuccess: intent %s settled, inspection %s now %s", intentID, outcome.Inspection.ID, outcome.Inspection.Status)

	s.publishNotification(ctx, outcome.Inspection.UserID, domain.WalletRoleUser, domain.NotificationBookingConfirmed,
		"Payment received",
		fmt.Sprintf("Your booking %s is confirmed.", outcome.Inspection.BookingReference),
		map[string]string{"inspection_id": outcome.Inspection.ID.String()})
	s.publishNotification(ctx, outcome.Inspection.InspectorID, domain.WalletRoleInspector, domain.NotificationBookingConfirmed,
		"New booking confirmed",
		fmt.Sprintf("Booking %s is confirmed for %s.", outcome.Inspection.BookingReference, outcome.Inspection.ScheduledDate.Format("2006-01-02")),
		map[string]string{"inspection_id": outcome.Inspection.ID.String()})
	s.publishEmail(ctx, outcome.Inspection.UserID, "Payment received",
		fmt.Sprintf("We received your payment of %d for booking %s. Your inspection on %s is confirmed.",
			outcome.Payment.Amount, outcome.Inspection.BookingReference, outcome.Inspection.ScheduledDate.Format("2006-01-02")))
	return nil
}

func (s *Service) settleFailure(ctx context.Context, eventID, intentID, reason string) error {
	outcome, err := s.repo.SettlePaymentFailed(ctx, intentID, reason)
	if err != nil {
		if errors.Is(err, store.ErrPaymentNotFound) {
			log.Printf("WARN: settleFailure: no payment for intent %s (event %s), dropping", intentID, eventID)
			metrics.SettlementEvents.WithLabelValues(stripeclient.EventPaymentIntentFailed, "orphan").Inc()
			return nil
		}
		return fmt.Errorf("failed to settle failure for intent %s: %w", intentID, err)
	}
	if !outcome.Applied {
		log.Printf("settleFailure: intent %s already terminal, no-op (event %s)", intentID, eventID)
		metrics.SettlementEvents.WithLabelValues(stripeclient.EventPaymentIntentFailed, "replay").Inc()
		return nil
	}

	metrics.SettlementEvents.WithLabelValues(stripeclient.EventPaymentIntentFailed, "applied").Inc()
	log.Printf("settleFailure: intent %s failed, inspection %s cancelled, wallet refund %d",
		intentID, outcome.Inspection.ID, outcome.WalletRefunded)

	s.publishNotification(ctx, outcome.Inspection.UserID, domain.WalletRoleUser, domain.NotificationPaymentFailed,
		"Payment failed",
		fmt.Sprintf("Payment for booking %s failed and the booking was cancelled.", outcome.Inspection.BookingReference),
		map[string]string{"inspection_id": outcome.Inspection.ID.String(), "reason": reason})
	s.publishNotification(ctx, outcome.Inspection.InspectorID, domain.WalletRoleInspector, domain.NotificationBookingCancelled,
		"Booking cancelled",
		fmt.Sprintf("Booking %s was cancelled after a failed payment.", outcome.Inspection.BookingReference),
		map[string]string{"inspection_id": outcome.Inspection.ID.String()})
	return nil
}
