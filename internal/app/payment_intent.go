/**
 * @description
 * This file implements the payment-intent lifecycle manager. Every call prunes
 * the inspection's pending intents down to at most one live reusable intent:
 * stale intents are cancelled at the gateway best-effort and their local
 * records marked failed before a new intent is created.
 *
 * @dependencies
 * - context, errors, fmt, log: Standard Go libraries.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/stripeclient: For gateway intent calls.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/inspecto/booking-service/internal/domain"
	"github.com/inspecto/booking-service/internal/store"
	"github.com/inspecto/booking-service/pkg/stripeclient"
)

// CreateOrReusePaymentIntent returns a client-confirmable intent for the
// remaining amount of an inspection. Existing reusable intents are handed back
// instead of creating duplicates; anything unusable is pruned on the way.
func (s *Service) CreateOrReusePaymentIntent(ctx context.Context, userID uuid.UUID, req domain.CreatePaymentIntentRequest) (*domain.PaymentIntentHandle, error) {
	inspection, err := s.repo.FindInspectionByID(ctx, req.InspectionID)
	if err != nil {
		return nil, err
	}
	if inspection.UserID != userID {
		return nil, ErrForbidden
	}
	if inspection.Status != domain.InspectionStatusPending && inspection.Status != domain.InspectionStatusPaymentPending {
		return nil, store.ErrInvalidInspectionState
	}
	if inspection.RemainingAmount <= 0 {
		return nil, store.ErrInvalidInspectionState
	}

	// Scan pending records: reuse the first confirmable intent, prune the rest.
	// This runs even for explicit retries so every call leaves at most one live
	// intent behind and a retry of a dead intent can still pick up a live one.
	pending, err := s.repo.FindPendingPaymentsByInspection(ctx, inspection.ID)
	if err != nil {
		return nil, err
	}
	for _, payment := range pending {
		remote, err := s.gateway.RetrievePaymentIntent(ctx, payment.GatewayIntentID)
		if err != nil {
			var gatewayErr *stripeclient.ErrorResponse
			if errors.As(err, &gatewayErr) && gatewayErr.IsNotFound() {
				if markErr := s.repo.MarkPaymentFailed(ctx, payment.ID, "intent missing at gateway"); markErr != nil {
					log.Printf("WARN: CreateOrReusePaymentIntent: failed to mark orphan payment %s: %v", payment.ID, markErr)
				}
				continue
			}
			log.Printf("WARN: CreateOrReusePaymentIntent: probe failed for intent %s, skipping: %v", payment.GatewayIntentID, err)
			continue
		}

		if stripeclient.IsReusableStatus(remote.Status) && payment.Amount == inspection.RemainingAmount {
			log.Printf("CreateOrReusePaymentIntent: reusing intent %s for inspection %s", remote.ID, inspection.ID)
			return &domain.PaymentIntentHandle{
				PaymentID:    payment.ID,
				IntentID:     remote.ID,
				ClientSecret: remote.ClientSecret,
				Status:       remote.Status,
				Amount:       payment.Amount,
				Currency:     payment.Currency,
				Reused:       true,
			}, nil
		}

		s.pruneIntent(ctx, payment, remote.Status)
	}

	// Explicit retry of a known intent the scan did not surface: probe it and
	// report whether it can still be confirmed.
	if req.IsRetry && req.ExistingIntentID != "" {
		payment, err := s.repo.FindPaymentByIntentID(ctx, req.ExistingIntentID)
		if err != nil {
			return nil, err
		}
		if payment.InspectionID != inspection.ID || payment.UserID != userID {
			return nil, ErrForbidden
		}
		remote, err := s.gateway.RetrievePaymentIntent(ctx, req.ExistingIntentID)
		if err != nil {
			return nil, fmt.Errorf("failed to probe intent %s: %w", req.ExistingIntentID, err)
		}
		if !stripeclient.IsReusableStatus(remote.Status) {
			return nil, ErrIntentNotRetryable
		}
		return &domain.PaymentIntentHandle{
			PaymentID:    payment.ID,
			IntentID:     remote.ID,
			ClientSecret: remote.ClientSecret,
			Status:       remote.Status,
			Amount:       payment.Amount,
			Currency:     payment.Currency,
			Reused:       true,
		}, nil
	}

	// Nothing reusable: open a fresh intent.
	metadata := map[string]string{
		"inspection_id": inspection.ID.String(),
		"user_id":       userID.String(),
	}
	remote, err := s.gateway.CreatePaymentIntent(ctx, inspection.RemainingAmount, s.currency, metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	payment := &domain.Payment{
		ID:              uuid.New(),
		InspectionID:    inspection.ID,
		UserID:          userID,
		Amount:          inspection.RemainingAmount,
		Currency:        s.currency,
		GatewayIntentID: remote.ID,
		Status:          domain.PaymentStatusPending,
		Metadata:        metadata,
	}
	if err := s.repo.CreatePayment(ctx, payment); err != nil {
		// The gateway intent is orphaned; cancel it so it cannot settle later.
		if _, cancelErr := s.gateway.CancelPaymentIntent(ctx, remote.ID); cancelErr != nil {
			log.Printf("CRITICAL: failed to cancel orphaned intent %s after persist failure: %v", remote.ID, cancelErr)
		}
		return nil, fmt.Errorf("failed to persist payment record: %w", err)
	}

	log.Printf("CreateOrReusePaymentIntent: created intent %s for inspection %s amount %d", remote.ID, inspection.ID, payment.Amount)
	return &domain.PaymentIntentHandle{
		PaymentID:    payment.ID,
		IntentID:     remote.ID,
		ClientSecret: remote.ClientSecret,
		Status:       remote.Status,
		Amount:       payment.Amount,
		Currency:     payment.Currency,
	}, nil
}

// pruneIntent retires one unusable pending payment: cancel remotely when the
// gateway still holds it open, then mark the local record failed.
func (s *Service) pruneIntent(ctx context.Context, payment domain.Payment, remoteStatus string) {
	if stripeclient.IsOpenStatus(remoteStatus) {
		if _, err := s.gateway.CancelPaymentIntent(ctx, payment.GatewayIntentID); err != nil {
			log.Printf("WARN: pruneIntent: gateway cancel failed for %s: %v", payment.GatewayIntentID, err)
		}
	}
	if err := s.repo.MarkPaymentFailed(ctx, payment.ID, "superseded by new intent"); err != nil {
		log.Printf("WARN: pruneIntent: failed to mark payment %s failed: %v", payment.ID, err)
	}
}

// CancelPaymentIntent cancels an intent at the gateway and marks the local
// record failed. A gateway failure aborts: the caller must not believe the
// intent is dead while the gateway can still settle it.
func (s *Service) CancelPaymentIntent(ctx context.Context, userID uuid.UUID, intentID string) error {
	payment, err := s.repo.FindPaymentByIntentID(ctx, intentID)
	if err != nil {
		return err
	}
	if payment.UserID != userID {
		return ErrForbidden
	}
	if payment.Status != domain.PaymentStatusPending {
		return nil
	}

	if _, err := s.gateway.CancelPaymentIntent(ctx, intentID); err != nil {
		var gatewayErr *stripeclient.ErrorResponse
		if !errors.As(err, &gatewayErr) || !gatewayErr.IsNotFound() {
			return fmt.Errorf("failed to cancel intent at gateway: %w", err)
		}
	}
	return s.repo.MarkPaymentFailed(ctx, payment.ID, "cancelled by user")
}

// VerifyPayment returns the local payment record alongside the live gateway
// status for a user's intent.
func (s *Service) VerifyPayment(ctx context.Context, userID uuid.UUID, intentID string) (*domain.Payment, string, error) {
	payment, err := s.repo.FindPaymentByIntentID(ctx, intentID)
	if err != nil {
		return nil, "", err
	}
	if payment.UserID != userID {
		return nil, "", ErrForbidden
	}

	remote, err := s.gateway.RetrievePaymentIntent(ctx, intentID)
	if err != nil {
		var gatewayErr *stripeclient.ErrorResponse
		if errors.As(err, &gatewayErr) && gatewayErr.IsNotFound() {
			return payment, "", nil
		}
		return nil, "", fmt.Errorf("failed to verify intent at gateway: %w", err)
	}
	return payment, remote.Status, nil
}

// cancelOpenIntents best-effort retires every pending intent of an inspection.
// Used by explicit cancellation; failures are logged, the caller proceeds.
func (s *Service) cancelOpenIntents(ctx context.Context, inspectionID uuid.UUID, reason string) {
	pending, err := s.repo.FindPendingPaymentsByInspection(ctx, inspectionID)
	if err != nil {
		log.Printf("WARN: cancelOpenIntents: failed to list pending payments for %s: %v", inspectionID, err)
		return
	}
	for _, payment := range pending {
		if _, err := s.gateway.CancelPaymentIntent(ctx, payment.GatewayIntentID); err != nil {
			var gatewayErr *stripeclient.ErrorResponse
			if !errors.As(err, &gatewayErr) || !gatewayErr.IsNotFound() {
				log.Printf("WARN: cancelOpenIntents: gateway cancel failed for %s: %v", payment.GatewayIntentID, err)
			}
		}
		if err := s.repo.MarkPaymentFailed(ctx, payment.ID, reason); err != nil {
			log.Printf("WARN: cancelOpenIntents: failed to mark payment %s failed: %v", payment.ID, err)
		}
	}
}
