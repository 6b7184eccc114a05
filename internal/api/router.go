/**
 * @description
 * This file sets up the HTTP router for the booking-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/prometheus/client_golang/prometheus/promhttp: Metrics endpoint.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// BookingRoutes creates and returns a new router for the booking service.
func BookingRoutes(h *BookingHandlers, jwksURL, webhookSecret string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// The gateway webhook authenticates by signature, not by JWT, so it stays
	// outside the auth group.
	r.Post("/payments/webhook", h.WebhookHandler(webhookSecret))

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwksURL))

		r.Get("/inspections/availability", h.AvailabilityHandler)
		r.Get("/inspections/{id}", h.GetInspectionHandler)
		r.Post("/inspections/{id}/cancel", h.CancelInspectionHandler)

		r.Group(func(r chi.Router) {
			r.Use(RequireRole(RoleUser))
			r.Post("/inspections/book", h.BookInspectionHandler)
			r.Post("/payments/create-payment-intent", h.CreatePaymentIntentHandler)
			r.Get("/payments/verify/{paymentIntentId}", h.VerifyPaymentHandler)
		})

		r.Group(func(r chi.Router) {
			r.Use(RequireRole(RoleInspector))
			r.Post("/inspections/{id}/complete", h.CompleteInspectionHandler)
			r.Put("/inspectors/availability", h.UpdateAvailabilityHandler)
			r.Post("/withdrawals/inspector/request", h.RequestWithdrawalHandler)
		})

		r.Get("/wallets/me", h.GetWalletHandler)

		r.Group(func(r chi.Router) {
			r.Use(RequireRole(RoleAdmin))
			r.Post("/withdrawals/admin/{id}/process", h.ProcessWithdrawalHandler)
		})
	})

	return r
}
