// Package server exposes the wager engine over HTTP: a JSON API for players
// and operators, the live notification socket, and the operational endpoints.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/deevxcoder/queen-001-replit-sub000/internal/metrics"
	"github.com/deevxcoder/queen-001-replit-sub000/internal/notify"
	"github.com/deevxcoder/queen-001-replit-sub000/internal/service"
)

// HealthFunc reports whether a dependency is reachable.
type HealthFunc func(ctx context.Context) error

// Services groups the engine services the API calls into.
type Services struct {
	Ledger     *service.Ledger
	Wagers     *service.WagerService
	Settlement *service.SettlementService
	Approvals  *service.ApprovalService
	Catalog    *service.CatalogService
	Accounts   *service.AccountService
}

// Server holds the HTTP handlers.
type Server struct {
	svc      Services
	hub      *notify.Hub
	health   HealthFunc
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
}

// New creates a Server. hub may be nil when live notifications are disabled.
func New(svc Services, hub *notify.Hub, health HealthFunc, m *metrics.Metrics, gatherer prometheus.Gatherer) *Server {
	return &Server{
		svc:      svc,
		hub:      hub,
		health:   health,
		metrics:  m,
		gatherer: gatherer,
	}
}

// Router returns the HTTP handler with every route mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/healthz", s.healthz)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authenticate)

		r.Get("/ws", s.serveWS)

		r.Route("/users", func(r chi.Router) {
			r.Post("/", s.createUser)
			r.Route("/{userID}", func(r chi.Router) {
				r.Get("/", s.getUser)
				r.Put("/status", s.setUserStatus)
				r.Get("/players", s.listPlayers)
				r.Get("/wallet", s.getWallet)
				r.Get("/ledger", s.getHistory)
				r.Get("/wagers", s.listWagers)
				r.Post("/adjustments", s.adjustBalance)
				r.Post("/verify", s.verifyLedger)
				r.Post("/reconcile", s.reconcileLedger)
			})
		})

		r.Route("/markets", func(r chi.Router) {
			r.Get("/", s.listMarkets)
			r.Post("/", s.createMarket)
			r.Route("/{marketID}", func(r chi.Router) {
				r.Get("/", s.getMarket)
				r.Put("/game-types", s.configureGameType)
				r.Post("/open", s.openMarket)
				r.Post("/close", s.closeMarket)
				r.Post("/result", s.declareMarketResult)
				r.Post("/settle", s.settleMarket)
				r.Post("/wagers", s.placeMarketWager)
			})
		})

		r.Route("/option-games", func(r chi.Router) {
			r.Get("/", s.listOptionGames)
			r.Post("/", s.createOptionGame)
			r.Route("/{gameID}", func(r chi.Router) {
				r.Get("/", s.getOptionGame)
				r.Put("/odds", s.setOptionOdds)
				r.Post("/open", s.openOptionGame)
				r.Post("/close", s.closeOptionGame)
				r.Post("/result", s.declareOptionGameResult)
				r.Post("/settle", s.settleOptionGame)
				r.Post("/wagers", s.placeOptionWager)
			})
		})

		r.Get("/wagers/{wagerID}", s.getWager)

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/pending", s.listPending)
			r.Post("/deposits", s.requestDeposit)
			r.Post("/withdrawals", s.requestWithdrawal)
			r.Post("/{txID}/approve", s.approveTransaction)
			r.Post("/{txID}/reject", s.rejectTransaction)
		})
	})

	return r
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
	defer cancel()

	if err := s.health(ctx); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(fmt.Sprintf("unhealthy: %v", err)))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "live notifications are disabled", Status: "unavailable"})
		return
	}
	s.hub.ServeWS(w, r, actorFrom(r.Context()).ID)
}
