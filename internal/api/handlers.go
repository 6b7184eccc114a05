/**
 * @description
 * This file contains the HTTP handlers for the booking endpoints: availability
 * queries, booking, cancellation, completion, and the inspector availability
 * template. Handlers parse requests, call the application service, and map
 * sentinel errors onto HTTP statuses.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/inspecto/booking-service/internal/app"
	"github.com/inspecto/booking-service/internal/domain"
	"github.com/inspecto/booking-service/internal/store"
)

// BookingHandlers holds the application service that handlers will use.
type BookingHandlers struct {
	service *app.Service
}

// NewBookingHandlers creates a new instance of BookingHandlers.
func NewBookingHandlers(service *app.Service) *BookingHandlers {
	return &BookingHandlers{service: service}
}

// AvailabilityHandler returns the open slot numbers for an inspector on a date.
func (h *BookingHandlers) AvailabilityHandler(w http.ResponseWriter, r *http.Request) {
	inspectorID, err := uuid.Parse(r.URL.Query().Get("inspector_id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid inspector_id")
		return
	}
	date, err := time.ParseInLocation("2006-01-02", r.URL.Query().Get("date"), time.UTC)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
		return
	}

	slots, err := h.service.GetAvailableSlots(r.Context(), inspectorID, date)
	if err != nil {
		log.Printf("level=error component=api endpoint=availability outcome=failed inspector_id=%s err=%v", inspectorID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"inspector_id":    inspectorID,
		"date":            date.Format("2006-01-02"),
		"available_slots": slots,
	})
}

// BookInspectionHandler handles booking requests from vehicle owners.
func (h *BookingHandlers) BookInspectionHandler(w http.ResponseWriter, r *http.Request) {
	actorID, _, ok := GetActor(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get actor from context")
		return
	}

	var req domain.BookInspectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=book outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.service.BookInspection(r.Context(), actorID, req)
	if err != nil {
		var rateLimited *app.RateLimitedError
		switch {
		case errors.As(err, &rateLimited):
			w.Header().Set("Retry-After", strconv.Itoa(rateLimited.RetryAfterSeconds))
			h.writeError(w, http.StatusTooManyRequests, "Too many booking attempts, slow down")
		case errors.Is(err, app.ErrAgreementRequired),
			errors.Is(err, app.ErrInvalidDate),
			errors.Is(err, app.ErrPastDate):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, app.ErrNotVehicleOwner):
			h.writeError(w, http.StatusForbidden, err.Error())
		case errors.Is(err, store.ErrVehicleNotFound), errors.Is(err, store.ErrInspectionTypeNotFound):
			h.writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, app.ErrInspectionTypeInactive):
			h.writeError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, app.ErrSlotUnavailable), errors.Is(err, store.ErrSlotAlreadyBooked):
			h.writeError(w, http.StatusConflict, "Requested slot is no longer available")
		case errors.Is(err, store.ErrInsufficientFunds):
			h.writeError(w, http.StatusPaymentRequired, err.Error())
		default:
			log.Printf("level=error component=api endpoint=book outcome=failed user_id=%s err=%v", actorID, err)
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, result)
}

// GetInspectionHandler returns one inspection to its participants.
func (h *BookingHandlers) GetInspectionHandler(w http.ResponseWriter, r *http.Request) {
	actorID, role, ok := GetActor(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get actor from context")
		return
	}
	inspectionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid inspection ID")
		return
	}

	inspection, err := h.service.GetInspection(r.Context(), inspectionID, actorID, role)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrInspectionNotFound):
			h.writeError(w, http.StatusNotFound, "Inspection not found")
		case errors.Is(err, app.ErrForbidden):
			h.writeError(w, http.StatusForbidden, "Forbidden")
		default:
			log.Printf("level=error component=api endpoint=get_inspection outcome=failed inspection_id=%s err=%v", inspectionID, err)
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}
	h.writeJSON(w, http.StatusOK, inspection)
}

// CancelInspectionHandler cancels a booking on behalf of its owner or an admin.
func (h *BookingHandlers) CancelInspectionHandler(w http.ResponseWriter, r *http.Request) {
	actorID, role, ok := GetActor(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get actor from context")
		return
	}
	inspectionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid inspection ID")
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if r.Body != nil {
		// A missing or empty body is fine; the reason is optional.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	inspection, err := h.service.CancelInspection(r.Context(), inspectionID, actorID, role, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrInspectionNotFound):
			h.writeError(w, http.StatusNotFound, "Inspection not found")
		case errors.Is(err, app.ErrForbidden):
			h.writeError(w, http.StatusForbidden, "Forbidden")
		case errors.Is(err, store.ErrInvalidInspectionState):
			h.writeError(w, http.StatusConflict, "Inspection can no longer be cancelled")
		default:
			log.Printf("level=error component=api endpoint=cancel outcome=failed inspection_id=%s err=%v", inspectionID, err)
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}
	h.writeJSON(w, http.StatusOK, inspection)
}

// CompleteInspectionHandler applies the inspector's final report.
func (h *BookingHandlers) CompleteInspectionHandler(w http.ResponseWriter, r *http.Request) {
	actorID, _, ok := GetActor(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get actor from context")
		return
	}
	inspectionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid inspection ID")
		return
	}

	var req domain.SubmitReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	inspection, err := h.service.CompleteInspection(r.Context(), inspectionID, actorID, req)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrInspectionNotFound):
			h.writeError(w, http.StatusNotFound, "Inspection not found")
		case errors.Is(err, store.ErrVersionConflict):
			h.writeError(w, http.StatusConflict, "Inspection was modified concurrently, reload and retry")
		case errors.Is(err, store.ErrInvalidInspectionState):
			h.writeError(w, http.StatusConflict, "Inspection is not in a completable state")
		default:
			log.Printf("level=error component=api endpoint=complete outcome=failed inspection_id=%s err=%v", inspectionID, err)
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}
	h.writeJSON(w, http.StatusOK, inspection)
}

// UpdateAvailabilityHandler replaces the inspector's weekly template.
func (h *BookingHandlers) UpdateAvailabilityHandler(w http.ResponseWriter, r *http.Request) {
	actorID, _, ok := GetActor(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get actor from context")
		return
	}

	var req domain.UpdateAvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.UpdateAvailability(r.Context(), actorID, req); err != nil {
		if errors.Is(err, app.ErrInvalidAvailability) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("level=error component=api endpoint=update_availability outcome=failed inspector_id=%s err=%v", actorID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Availability updated successfully"})
}

// writeJSON is a helper for writing JSON responses.
func (h *BookingHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *BookingHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
