/**
 * @description
 * This file contains the core business logic for the booking-service. The `Service`
 * struct orchestrates the booking workflow, coordinating between the database
 * repository, the payment gateway client, Redis guards, and the message broker.
 *
 * Key features:
 * - Implements the booking use case: slot validation, pricing, wallet funding.
 * - The partial unique index in the store is the final arbiter for slot races;
 *   availability checks here are advisory.
 * - Publishes notification events to RabbitMQ for asynchronous delivery.
 *
 * @dependencies
 * - context, errors, fmt, log, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/stripeclient, pkg/rabbitmq: For external service communication.
 */

package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/inspecto/booking-service/internal/domain"
	"github.com/inspecto/booking-service/internal/metrics"
	"github.com/inspecto/booking-service/internal/store"
	"github.com/inspecto/booking-service/pkg/rabbitmq"
	"github.com/inspecto/booking-service/pkg/stripeclient"
)

const bookingReferenceAttempts = 3

var (
	ErrAgreementRequired       = errors.New("booking agreement must be confirmed")
	ErrInvalidDate             = errors.New("date must be in YYYY-MM-DD format")
	ErrPastDate                = errors.New("date must not be in the past")
	ErrNotVehicleOwner         = errors.New("vehicle does not belong to the requesting user")
	ErrInspectionTypeInactive  = errors.New("inspection type is not active")
	ErrSlotUnavailable         = errors.New("requested slot is not available")
	ErrForbidden               = errors.New("actor is not allowed to perform this operation")
	ErrIntentNotRetryable      = errors.New("payment intent can no longer be retried")
	ErrWithdrawalBelowMinimum  = errors.New("withdrawal amount is below the minimum")
	ErrInvalidWithdrawalMethod = errors.New("invalid withdrawal method or missing payout details")
)

// EventGuard deduplicates webhook deliveries by event id. A claim taken for an
// event that then fails to settle must be released so the gateway's redelivery
// is processed instead of being skipped as a duplicate.
type EventGuard interface {
	ClaimEvent(ctx context.Context, eventID string) (bool, error)
	ReleaseEvent(ctx context.Context, eventID string)
}

// RateLimitedError is returned when the booking rate limiter rejects a caller.
type RateLimitedError struct {
	RetryAfterSeconds int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %ds", e.RetryAfterSeconds)
}

// Service provides the core business logic for bookings, payments, and wallets.
type Service struct {
	repo          store.Repository
	gateway       *stripeclient.Client
	eventProducer rabbitmq.Publisher
	eventGuard    EventGuard
	rateLimiter   *RedisBookingRateLimiter

	currency        string
	platformFee     int64 // in paise, added on top of the base price
	platformOwnerID uuid.UUID
	minWithdrawal   int64 // in paise

	bookingRateLimit  int
	bookingRateWindow time.Duration
}

// ServiceParams carries the dependencies and tunables for NewService.
type ServiceParams struct {
	Repo          store.Repository
	Gateway       *stripeclient.Client
	EventProducer rabbitmq.Publisher
	EventGuard    EventGuard
	RateLimiter   *RedisBookingRateLimiter

	Currency          string
	PlatformFeePaise  int64
	PlatformOwnerID   uuid.UUID
	MinWithdrawal     int64
	BookingRateLimit  int
	BookingRateWindow time.Duration
}

// NewService creates a new booking service instance.
func NewService(p ServiceParams) *Service {
	currency := p.Currency
	if currency == "" {
		currency = "inr"
	}
	return &Service{
		repo:              p.Repo,
		gateway:           p.Gateway,
		eventProducer:     p.EventProducer,
		eventGuard:        p.EventGuard,
		rateLimiter:       p.RateLimiter,
		currency:          currency,
		platformFee:       p.PlatformFeePaise,
		platformOwnerID:   p.PlatformOwnerID,
		minWithdrawal:     p.MinWithdrawal,
		bookingRateLimit:  p.BookingRateLimit,
		bookingRateWindow: p.BookingRateWindow,
	}
}

// BookInspection handles the full booking workflow: slot validation, pricing,
// optional wallet funding, and persistence. The returned result tells the
// caller whether a gateway payment is still owed.
func (s *Service) BookInspection(ctx context.Context, userID uuid.UUID, req domain.BookInspectionRequest) (*domain.BookingResult, error) {
	log.Printf("BookInspection: user %s requesting inspector %s slot %d on %s", userID, req.InspectorID, req.SlotNumber, req.Date)

	if !req.ConfirmAgreement {
		return nil, ErrAgreementRequired
	}

	if s.rateLimiter != nil && s.bookingRateLimit > 0 {
		count, retryAfter, err := s.rateLimiter.ConsumeRateLimit(ctx, "booking", userID.String(), s.bookingRateLimit, s.bookingRateWindow)
		if err != nil {
			log.Printf("WARN: BookInspection: rate limiter unavailable, allowing request: %v", err)
		} else if count > s.bookingRateLimit {
			return nil, &RateLimitedError{RetryAfterSeconds: retryAfter}
		}
	}

	date, err := parseBookingDate(req.Date)
	if err != nil {
		return nil, err
	}

	// 1. Ownership and product checks.
	ownerID, err := s.repo.FindVehicleOwner(ctx, req.VehicleID)
	if err != nil {
		return nil, err
	}
	if ownerID != userID {
		return nil, ErrNotVehicleOwner
	}

	inspType, err := s.repo.FindInspectionTypeByID(ctx, req.InspectionTypeID)
	if err != nil {
		return nil, err
	}
	if !inspType.Active {
		return nil, ErrInspectionTypeInactive
	}

	// 2. Advisory slot check. The insert below is the real arbiter.
	available, err := s.GetAvailableSlots(ctx, req.InspectorID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to compute availability: %w", err)
	}
	if !containsSlot(available, req.SlotNumber) {
		return nil, ErrSlotUnavailable
	}

	// 3. Pricing and wallet funding.
	amount := inspType.BasePrice + s.platformFee
	var walletDeduction int64
	if req.UseWalletBalance {
		wallet, err := s.repo.GetOrCreateWallet(ctx, userID, domain.WalletRoleUser)
		if err != nil {
			return nil, fmt.Errorf("failed to load user wallet: %w", err)
		}
		walletDeduction = wallet.Balance
		if walletDeduction > amount {
			walletDeduction = amount
		}
	}
	remaining := amount - walletDeduction

	status := domain.InspectionStatusPaymentPending
	if remaining == 0 {
		status = domain.InspectionStatusConfirmed
	}

	inspection := &domain.Inspection{
		ID:               uuid.New(),
		UserID:           userID,
		VehicleID:        req.VehicleID,
		InspectorID:      req.InspectorID,
		InspectionTypeID: req.InspectionTypeID,
		ScheduledDate:    date,
		SlotNumber:       req.SlotNumber,
		TimeSlot:         req.TimeSlot,
		Status:           status,
		Amount:           amount,
		WalletDeduction:  walletDeduction,
		RemainingAmount:  remaining,
		Version:          1,
	}

	// 4. Persist with a bounded retry on booking-reference collisions only.
	for attempt := 0; ; attempt++ {
		inspection.BookingReference = generateBookingReference(date)
		err = s.repo.CreateInspectionWithWalletDebit(ctx, inspection)
		if err == nil {
			break
		}
		if errors.Is(err, store.ErrDuplicateBookingReference) && attempt < bookingReferenceAttempts-1 {
			log.Printf("WARN: BookInspection: booking reference collision, regenerating (attempt %d)", attempt+1)
			continue
		}
		return nil, err
	}

	metrics.BookingsCreated.WithLabelValues(status).Inc()
	log.Printf("BookInspection: created %s ref=%s status=%s amount=%d wallet=%d remaining=%d",
		inspection.ID, inspection.BookingReference, status, amount, walletDeduction, remaining)

	if status == domain.InspectionStatusConfirmed {
		s.publishNotification(ctx, req.InspectorID, domain.WalletRoleInspector, domain.NotificationBookingConfirmed,
			"New booking confirmed",
			fmt.Sprintf("Booking %s is confirmed for %s.", inspection.BookingReference, req.Date),
			map[string]string{"inspection_id": inspection.ID.String()})
		s.publishEmail(ctx, userID, "Booking confirmed",
			fmt.Sprintf("Your booking %s for %s is confirmed and fully paid from your wallet.", inspection.BookingReference, req.Date))
	}

	return &domain.BookingResult{
		Booking:         inspection,
		Amount:          amount,
		WalletDeduction: walletDeduction,
		RemainingAmount: remaining,
	}, nil
}

// CancelInspection cancels a pending or payment-pending booking on behalf of
// its owner or an admin. Live payment intents are cancelled at the gateway
// best-effort before the local transition; the wallet deduction is refunded by
// the store transaction.
func (s *Service) CancelInspection(ctx context.Context, inspectionID, actorID uuid.UUID, actorRole, reason string) (*domain.Inspection, error) {
	inspection, err := s.repo.FindInspectionByID(ctx, inspectionID)
	if err != nil {
		return nil, err
	}
	if actorRole != "admin" && inspection.UserID != actorID {
		return nil, ErrForbidden
	}
	if reason == "" {
		reason = "cancelled by " + actorRole
	}

	s.cancelOpenIntents(ctx, inspectionID, "booking cancelled")

	cancelled, refunded, err := s.repo.CancelInspectionWithRefund(ctx, inspectionID, reason)
	if err != nil {
		return nil, err
	}

	log.Printf("CancelInspection: %s cancelled by %s (%s), wallet refund %d", inspectionID, actorID, actorRole, refunded)

	s.publishNotification(ctx, cancelled.InspectorID, domain.WalletRoleInspector, domain.NotificationBookingCancelled,
		"Booking cancelled",
		fmt.Sprintf("Booking %s was cancelled.", cancelled.BookingReference),
		map[string]string{"inspection_id": cancelled.ID.String(), "reason": reason})

	return cancelled, nil
}

// CompleteInspection applies the inspector's final report and accrues earnings:
// the inspector is credited the amount net of the platform fee, the platform
// wallet takes the fee, both in the same transaction as the status change.
func (s *Service) CompleteInspection(ctx context.Context, inspectionID, inspectorID uuid.UUID, req domain.SubmitReportRequest) (*domain.Inspection, error) {
	inspection, err := s.repo.FindInspectionByID(ctx, inspectionID)
	if err != nil {
		return nil, err
	}

	platformFee := s.platformFee
	if platformFee > inspection.Amount {
		platformFee = inspection.Amount
	}

	report := domain.Report{
		OverallCondition: req.OverallCondition,
		EngineCondition:  req.EngineCondition,
		BodyCondition:    req.BodyCondition,
		TyreCondition:    req.TyreCondition,
		Mileage:          req.Mileage,
		Remarks:          req.Remarks,
		Status:           domain.ReportStatusCompleted,
		Version:          1,
	}

	completed, err := s.repo.CompleteInspectionWithEarnings(ctx, store.CompleteInspectionParams{
		InspectionID:    inspectionID,
		InspectorID:     inspectorID,
		Report:          report,
		ExpectedVersion: req.ExpectedVersion,
		InspectorShare:  inspection.Amount - platformFee,
		PlatformFee:     platformFee,
		PlatformOwnerID: s.platformOwnerID,
	})
	if err != nil {
		return nil, err
	}

	log.Printf("CompleteInspection: %s completed by inspector %s, inspector share %d, platform fee %d",
		inspectionID, inspectorID, inspection.Amount-platformFee, platformFee)

	s.publishNotification(ctx, completed.UserID, domain.WalletRoleUser, domain.NotificationInspectionComplete,
		"Inspection completed",
		fmt.Sprintf("The report for booking %s is ready.", completed.BookingReference),
		map[string]string{"inspection_id": completed.ID.String()})

	return completed, nil
}

// GetInspection returns one inspection, restricted to its participants.
func (s *Service) GetInspection(ctx context.Context, inspectionID, actorID uuid.UUID, actorRole string) (*domain.Inspection, error) {
	inspection, err := s.repo.FindInspectionByID(ctx, inspectionID)
	if err != nil {
		return nil, err
	}
	if actorRole != "admin" && inspection.UserID != actorID && inspection.InspectorID != actorID {
		return nil, ErrForbidden
	}
	return inspection, nil
}

// publishNotification sends a push notification event. Failures are logged and
// swallowed.
func (s *Service) publishNotification(ctx context.Context, recipientID uuid.UUID, role, ntype, title, message string, data map[string]string) {
	if s.eventProducer == nil {
		return
	}
	event := domain.NotificationEvent{
		RecipientID:   recipientID,
		RecipientRole: role,
		Type:          ntype,
		Title:         title,
		Message:       message,
		Data:          data,
	}
	if err := s.eventProducer.Publish(ctx, rabbitmq.NotificationExchange, rabbitmq.RouteNotification, event); err != nil {
		log.Printf("WARN: failed to publish %s notification for %s: %v", ntype, recipientID, err)
	}
}

// publishEmail sends an email event. Failures are logged and swallowed.
func (s *Service) publishEmail(ctx context.Context, recipientID uuid.UUID, subject, body string) {
	if s.eventProducer == nil || recipientID == uuid.Nil {
		return
	}
	event := domain.EmailEvent{RecipientID: recipientID, Subject: subject, Body: body}
	if err := s.eventProducer.Publish(ctx, rabbitmq.NotificationExchange, rabbitmq.RouteEmail, event); err != nil {
		log.Printf("WARN: failed to publish email event for %s: %v", recipientID, err)
	}
}

func parseBookingDate(raw string) (time.Time, error) {
	date, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	if date.Before(today) {
		return time.Time{}, ErrPastDate
	}
	return date, nil
}

func containsSlot(slots []int, n int) bool {
	for _, s := range slots {
		if s == n {
			return true
		}
	}
	return false
}

// generateBookingReference builds a human-readable reference like
// "INS-20260115-4F2A9C". Uniqueness is enforced by the database; collisions
// trigger a regeneration.
func generateBookingReference(date time.Time) string {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		// Fall back to a time-derived suffix; the unique constraint still guards us.
		return fmt.Sprintf("INS-%s-%06X", date.Format("20060102"), time.Now().UnixNano()&0xFFFFFF)
	}
	value := uint64(buf[0])<<16 | uint64(buf[1])<<8 | uint64(buf[2])
	return fmt.Sprintf("INS-%s-%06X", date.Format("20060102"), value)
}
