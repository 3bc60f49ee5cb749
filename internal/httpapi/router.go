// Package httpapi wires the HTTP surface of the foreign-currency sub-ledger.
// It keeps handlers thin, delegating business rules to the service layer.
package httpapi

import (
	"context"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"log/slog"

	"github.com/google/uuid"
	"github.com/tinoosan/fxledger/internal/fx"
	"github.com/tinoosan/fxledger/internal/quote"
	"github.com/tinoosan/fxledger/internal/service/debt"
	"github.com/tinoosan/fxledger/internal/service/holding"
	"github.com/tinoosan/fxledger/internal/service/movement"
	"github.com/tinoosan/fxledger/internal/service/recon"
	"github.com/tinoosan/fxledger/internal/service/valuation"
)

// Store is the union of read and write operations the API needs from a
// storage backend. Both the memory and postgres stores satisfy it.
type Store interface {
	Movement(ctx context.Context, id uuid.UUID) (fx.Movement, error)
	Movements(ctx context.Context) ([]fx.Movement, error)
	MovementsByHolding(ctx context.Context, holdingID uuid.UUID) ([]fx.Movement, error)
	Holding(ctx context.Context, id uuid.UUID) (fx.Holding, error)
	Holdings(ctx context.Context) ([]fx.Holding, error)
	Posting(ctx context.Context, id uuid.UUID) (fx.Posting, error)
	Postings(ctx context.Context) ([]fx.Posting, error)
	PostingsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]fx.Posting, error)
	Debt(ctx context.Context, id uuid.UUID) (fx.Debt, error)
	Debts(ctx context.Context) ([]fx.Debt, error)
	DebtByHolding(ctx context.Context, holdingID uuid.UUID) (fx.Debt, error)
	Accounts(ctx context.Context) ([]fx.Account, error)
	RoleMapping(ctx context.Context) (map[fx.Role]uuid.UUID, error)
	Apply(ctx context.Context, ws fx.WriteSet) error
}

// Server wires handlers and middleware using Chi.
// It composes all services over a single storage backend.
type Server struct {
	movements movement.Service
	holdings  holding.Service
	debts     debt.Service
	recon     recon.Service
	valuation valuation.Service
	store     Store
	log       *slog.Logger
	rt        *chi.Mux
}

// New constructs the HTTP server with routes and middleware.
// The logger is used by basic request/response logging and panic recovery.
func New(store Store, quotes quote.Source, localCurrency string, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requestLogger(logger))
	r.Use(recoverer(logger))
	r.Use(metricsMiddleware)

	s := &Server{
		movements: movement.New(store, store, localCurrency),
		holdings:  holding.New(store, store),
		debts:     debt.New(store, store),
		recon:     recon.New(store, store),
		valuation: valuation.New(store, quotes),
		store:     store,
		log:       logger,
		rt:        r,
	}
	s.routes()
	return s
}

// Handler exposes the configured http.Handler.
func (s *Server) Handler() http.Handler { return s.rt }

// routes declares the public HTTP API endpoints and attaches any per-route middleware.
func (s *Server) routes() {
	// Movements
	s.rt.With(s.validateMovement(ctxKeyPostMovement)).Post("/v1/movements", s.postMovement)
	s.rt.With(s.validateMovement(ctxKeyPostMovement)).Post("/v1/movements/preview", s.previewMovement)
	s.rt.Get("/v1/movements", s.listMovements)
	s.rt.Get("/v1/movements/{id}", s.getMovement)
	s.rt.With(s.validateMovement(ctxKeyPatchMovement)).Patch("/v1/movements/{id}", s.patchMovement)
	s.rt.Delete("/v1/movements/{id}", s.deleteMovement)
	s.rt.Post("/v1/movements/{id}/regenerate", s.regenerateMovement)
	s.rt.Post("/v1/movements/{id}/link", s.linkMovement)
	s.rt.Post("/v1/movements/{id}/non-accounting", s.markNonAccounting)
	// Holdings
	s.rt.Post("/v1/holdings", s.postHolding)
	s.rt.Get("/v1/holdings", s.listHoldings)
	s.rt.Get("/v1/holdings/{id}", s.getHolding)
	s.rt.Delete("/v1/holdings/{id}", s.deleteHolding)
	s.rt.Get("/v1/holdings/{id}/balance", s.getHoldingBalance)
	s.rt.Get("/v1/holdings/{id}/valuation", s.getHoldingValuation)
	s.rt.Get("/v1/holdings/{id}/movements", s.listHoldingMovements)
	// Debts
	s.rt.Post("/v1/debts", s.postDebt)
	s.rt.Get("/v1/debts", s.listDebts)
	s.rt.Get("/v1/debts/{id}", s.getDebt)
	s.rt.Get("/v1/debts/{id}/schedule", s.getDebtSchedule)
	// Reconciliation
	s.rt.Post("/v1/recon/sweep", s.reconSweep)
	s.rt.Get("/v1/recon/items", s.reconItems)
	// Health (unversioned)
	s.rt.Get("/healthz", s.healthz)
	s.rt.Get("/readyz", s.readyz)
	s.rt.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metricsHandler().ServeHTTP(w, r)
	})
}
