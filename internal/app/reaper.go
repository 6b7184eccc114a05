/**
 * @description
 * This file implements the stale-payment reaper: a periodic sweep over pending
 * payment records older than the stale timeout. Each record is resolved against
 * the gateway's live state, so a payment that actually succeeded while the
 * webhook went missing is settled as a success rather than reaped.
 *
 * @dependencies
 * - context, errors, log, time: Standard Go libraries.
 * - internal/store: For data access and sentinel errors.
 * - pkg/stripeclient: For gateway probes and cancels.
 */

package app

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/inspecto/booking-service/internal/domain"
	"github.com/inspecto/booking-service/internal/metrics"
	"github.com/inspecto/booking-service/pkg/stripeclient"
)

const reaperBatchSize = 100

// Reaper periodically resolves payments stuck in pending.
type Reaper struct {
	service      *Service
	interval     time.Duration
	staleTimeout time.Duration
}

// NewReaper builds a reaper sweeping every interval for payments older than
// staleTimeout.
func NewReaper(service *Service, interval, staleTimeout time.Duration) *Reaper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if staleTimeout <= 0 {
		staleTimeout = 15 * time.Minute
	}
	return &Reaper{service: service, interval: interval, staleTimeout: staleTimeout}
}

// Run blocks until the context is cancelled, sweeping on every tick.
func (r *Reaper) Run(ctx context.Context) {
	log.Printf("level=info component=reaper msg=\"starting\" interval=%s stale_timeout=%s", r.interval, r.staleTimeout)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("level=info component=reaper msg=\"stopping\"")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep resolves one batch of stale pending payments. Errors on individual
// records are logged and skipped so one bad record cannot stall the sweep.
func (r *Reaper) Sweep(ctx context.Context) {
	cutoff := time.Now().Add(-r.staleTimeout)
	stale, err := r.service.repo.FindStalePendingPayments(ctx, cutoff, reaperBatchSize)
	if err != nil {
		log.Printf("level=error component=reaper msg=\"failed to list stale payments\" err=%v", err)
		return
	}
	if len(stale) == 0 {
		return
	}
	log.Printf("level=info component=reaper msg=\"sweeping\" count=%d cutoff=%s", len(stale), cutoff.Format(time.RFC3339))

	for _, payment := range stale {
		if err := r.resolveOne(ctx, payment); err != nil {
			log.Printf("level=warn component=reaper msg=\"failed to resolve payment, skipping\" payment_id=%s intent_id=%s err=%v",
				payment.ID, payment.GatewayIntentID, err)
			metrics.ReaperOutcomes.WithLabelValues("error").Inc()
		}
	}
}

// resolveOne settles a single stale payment against the gateway's live state.
func (r *Reaper) resolveOne(ctx context.Context, payment domain.Payment) error {
	remote, err := r.service.gateway.RetrievePaymentIntent(ctx, payment.GatewayIntentID)
	if err != nil {
		var gatewayErr *stripeclient.ErrorResponse
		if errors.As(err, &gatewayErr) && gatewayErr.IsNotFound() {
			// The gateway never heard of it or purged it; fail it locally.
			return r.reap(ctx, payment, "intent missing at gateway")
		}
		return err
	}

	switch {
	case remote.Status == stripeclient.IntentStatusSucceeded:
		// The webhook was lost; apply the success path instead of reaping.
		log.Printf("level=info component=reaper msg=\"stale payment actually succeeded, settling\" intent_id=%s", payment.GatewayIntentID)
		outcome, err := r.service.repo.SettlePaymentSucceeded(ctx, payment.GatewayIntentID)
		if err != nil {
			return err
		}
		if outcome.Applied {
			metrics.ReaperOutcomes.WithLabelValues("settled_success").Inc()
		}
		return nil

	case stripeclient.IsOpenStatus(remote.Status):
		if _, err := r.service.gateway.CancelPaymentIntent(ctx, payment.GatewayIntentID); err != nil {
			var gatewayErr *stripeclient.ErrorResponse
			if !errors.As(err, &gatewayErr) || !gatewayErr.IsNotFound() {
				return err
			}
		}
		return r.reap(ctx, payment, "abandoned by user")

	default:
		// canceled or otherwise terminal at the gateway
		return r.reap(ctx, payment, "intent terminal at gateway: "+remote.Status)
	}
}

// reap applies the failure settlement: payment failed, inspection cancelled,
// wallet deduction refunded, participants notified.
func (r *Reaper) reap(ctx context.Context, payment domain.Payment, reason string) error {
	if err := r.service.settleFailure(ctx, "reaper", payment.GatewayIntentID, reason); err != nil {
		return err
	}
	metrics.ReaperOutcomes.WithLabelValues("reaped").Inc()
	return nil
}
