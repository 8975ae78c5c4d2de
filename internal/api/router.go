/**
 * @description
 * This file sets up the HTTP router for the issuer service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// IssuerRoutes creates and returns a new router for the issuer service.
func IssuerRoutes(h *IssuerHandlers, jwtSecret string) http.Handler {
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

	// Supply is readable by anyone.
	r.Get("/supply", h.TotalSupplyHandler)

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		r.Use(BearerAuthMiddleware(jwtSecret))

		// Account and user-facing endpoints. Privileged calls are gated by the
		// badges the caller's account holds, not by the route group.
		r.Post("/accounts", h.CreateAccountHandler)
		r.Get("/balance", h.BalanceHandler)
		r.Get("/me", h.MeHandler)
		r.Post("/exchange/stable-to-wrapped", h.ExchangeStableForWrappedHandler)
		r.Post("/exchange/wrapped-to-stable", h.ExchangeWrappedForStableHandler)

		// Admin endpoints.
		r.Route("/admin", func(r chi.Router) {
			r.Post("/supply/increase", h.IncreaseSupplyHandler)
			r.Post("/supply/decrease", h.DecreaseSupplyHandler)
			r.Post("/withdraw", h.WithdrawHandler)
			r.Post("/deposit", h.DepositHandler)
			r.Post("/pause", h.PauseHandler)
			r.Post("/unpause", h.UnpauseHandler)

			r.Post("/admins", h.CreateAdminHandler)
			r.Post("/users", h.CreateUserHandler)
			r.Get("/users/{id}", h.GetUserHandler)
			r.Put("/users/{id}/exchange-limit", h.SetExchangeLimitHandler)
			r.Put("/users/{id}/wrapped-exchange-limit", h.SetWrappedExchangeLimitHandler)
			r.Post("/users/{id}/blacklist", h.BlacklistUserHandler)
			r.Delete("/users/{id}/blacklist", h.RemoveFromBlacklistHandler)
			r.Post("/users/{id}/recall", h.RecallTokensHandler)

			r.Post("/utxos/freeze", h.FreezeUtxosHandler)
			r.Post("/utxos/unfreeze", h.UnfreezeUtxosHandler)
			r.Post("/utxos/burn", h.BurnUtxosHandler)
			r.Put("/config/transfer-fee", h.SetTransferFeeHandler)

			r.Get("/events", h.ListEventsHandler)
			r.Get("/events/{id}", h.GetEventHandler)
		})
	})

	return r
}
