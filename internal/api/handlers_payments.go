/**
 * @description
 * This file contains the HTTP handlers for payment endpoints: intent creation
 * and reuse, payment verification, and the gateway webhook. The webhook handler
 * reads the raw body and verifies the signature before any settlement work.
 *
 * @dependencies
 * - encoding/json, io, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 * - pkg/stripeclient: For webhook signature verification.
 */

package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/inspecto/booking-service/internal/app"
	"github.com/inspecto/booking-service/internal/domain"
	"github.com/inspecto/booking-service/internal/store"
	"github.com/inspecto/booking-service/pkg/stripeclient"
)

const maxWebhookBodyBytes = 1 << 16 // 64 KiB

// CreatePaymentIntentHandler hands the client a confirmable intent for the
// remaining amount of an inspection.
func (h *BookingHandlers) CreatePaymentIntentHandler(w http.ResponseWriter, r *http.Request) {
	actorID, _, ok := GetActor(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get actor from context")
		return
	}

	var req domain.CreatePaymentIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	handle, err := h.service.CreateOrReusePaymentIntent(r.Context(), actorID, req)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrInspectionNotFound), errors.Is(err, store.ErrPaymentNotFound):
			h.writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, app.ErrForbidden):
			h.writeError(w, http.StatusForbidden, "Forbidden")
		case errors.Is(err, store.ErrInvalidInspectionState):
			h.writeError(w, http.StatusConflict, "Inspection has no outstanding payment")
		case errors.Is(err, app.ErrIntentNotRetryable):
			h.writeError(w, http.StatusConflict, "Payment intent can no longer be retried")
		default:
			log.Printf("level=error component=api endpoint=create_payment_intent outcome=failed user_id=%s err=%v", actorID, err)
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	status := http.StatusCreated
	if handle.Reused {
		status = http.StatusOK
	}
	h.writeJSON(w, status, handle)
}

// VerifyPaymentHandler returns the local payment record and the live gateway
// status for one of the user's intents.
func (h *BookingHandlers) VerifyPaymentHandler(w http.ResponseWriter, r *http.Request) {
	actorID, _, ok := GetActor(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get actor from context")
		return
	}

	intentID := chi.URLParam(r, "paymentIntentId")
	if intentID == "" {
		h.writeError(w, http.StatusBadRequest, "Payment intent ID is required")
		return
	}

	payment, gatewayStatus, err := h.service.VerifyPayment(r.Context(), actorID, intentID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrPaymentNotFound):
			h.writeError(w, http.StatusNotFound, "Payment not found")
		case errors.Is(err, app.ErrForbidden):
			h.writeError(w, http.StatusForbidden, "Forbidden")
		default:
			log.Printf("level=error component=api endpoint=verify_payment outcome=failed intent_id=%s err=%v", intentID, err)
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"payment":        payment,
		"gateway_status": gatewayStatus,
	})
}

// WebhookHandler receives signed gateway events. The raw body is read before
// any parsing because the signature covers the exact bytes on the wire.
// Verification failures get a 400; settlement failures get a 500 so the
// gateway redelivers.
func (h *BookingHandlers) WebhookHandler(webhookSecret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Could not read request body")
			return
		}

		event, err := stripeclient.ConstructEvent(payload, r.Header.Get("Gateway-Signature"), webhookSecret, stripeclient.DefaultWebhookTolerance)
		if err != nil {
			log.Printf("level=warn component=api endpoint=webhook outcome=reject reason=signature err=%v", err)
			h.writeError(w, http.StatusBadRequest, "Invalid signature")
			return
		}

		if err := h.service.HandleGatewayEvent(r.Context(), event); err != nil {
			log.Printf("level=error component=api endpoint=webhook outcome=failed event_id=%s err=%v", event.ID, err)
			h.writeError(w, http.StatusInternalServerError, "Settlement failed")
			return
		}

		h.writeJSON(w, http.StatusOK, map[string]string{"received": "true"})
	}
}
