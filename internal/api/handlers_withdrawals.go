/**
 * @description
 * This file contains the HTTP handlers for the wallet view and withdrawal
 * endpoints: the actor's wallet with recent ledger entries, the inspector
 * withdrawal request, and the admin approve/reject decision.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/inspecto/booking-service/internal/app"
	"github.com/inspecto/booking-service/internal/domain"
	"github.com/inspecto/booking-service/internal/store"
)

// GetWalletHandler returns the actor's wallet with recent ledger entries.
func (h *BookingHandlers) GetWalletHandler(w http.ResponseWriter, r *http.Request) {
	actorID, role, ok := GetActor(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get actor from context")
		return
	}

	view, err := h.service.GetWallet(r.Context(), actorID, role)
	if err != nil {
		log.Printf("level=error component=api endpoint=get_wallet outcome=failed owner_id=%s err=%v", actorID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

// RequestWithdrawalHandler locks funds and records a pending withdrawal for an
// inspector.
func (h *BookingHandlers) RequestWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	actorID, _, ok := GetActor(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get actor from context")
		return
	}

	var req domain.RequestWithdrawalPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	withdrawal, err := h.service.RequestWithdrawal(r.Context(), actorID, req)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrWithdrawalBelowMinimum), errors.Is(err, app.ErrInvalidWithdrawalMethod):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrInsufficientFunds):
			h.writeError(w, http.StatusPaymentRequired, err.Error())
		case errors.Is(err, store.ErrWalletNotFound):
			h.writeError(w, http.StatusNotFound, "Wallet not found")
		default:
			log.Printf("level=error component=api endpoint=request_withdrawal outcome=failed inspector_id=%s err=%v", actorID, err)
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}
	h.writeJSON(w, http.StatusCreated, withdrawal)
}

// ProcessWithdrawalHandler applies an admin approve/reject decision.
func (h *BookingHandlers) ProcessWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	withdrawalID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid withdrawal ID")
		return
	}

	var req domain.ProcessWithdrawalPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	withdrawal, err := h.service.ProcessWithdrawal(r.Context(), withdrawalID, req)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrWithdrawalNotFound):
			h.writeError(w, http.StatusNotFound, "Withdrawal not found")
		case errors.Is(err, store.ErrWithdrawalNotPending):
			h.writeError(w, http.StatusConflict, "Withdrawal has already been processed")
		case errors.Is(err, app.ErrInvalidWithdrawalMethod):
			h.writeError(w, http.StatusBadRequest, err.Error())
		default:
			log.Printf("level=error component=api endpoint=process_withdrawal outcome=failed withdrawal_id=%s err=%v", withdrawalID, err)
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}
	h.writeJSON(w, http.StatusOK, withdrawal)
}
