// Package holding manages foreign-currency positions. Holdings are small
// records; the only business rule here is that a holding with movements can
// never be deleted.
package holding

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tinoosan/fxledger/internal/errs"
	"github.com/tinoosan/fxledger/internal/fx"
)

// Repo defines read operations needed by the service.
type Repo interface {
	Holding(ctx context.Context, id uuid.UUID) (fx.Holding, error)
	Holdings(ctx context.Context) ([]fx.Holding, error)
	MovementsByHolding(ctx context.Context, holdingID uuid.UUID) ([]fx.Movement, error)
}

// Writer applies a unit of work atomically.
type Writer interface {
	Apply(ctx context.Context, ws fx.WriteSet) error
}

// Service exposes holding CRUD.
type Service interface {
	Create(ctx context.Context, h fx.Holding) (fx.Holding, error)
	Get(ctx context.Context, id uuid.UUID) (fx.Holding, error)
	List(ctx context.Context) ([]fx.Holding, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo   Repo
	writer Writer
}

// New constructs the holding service.
func New(repo Repo, writer Writer) Service { return &service{repo: repo, writer: writer} }

func (s *service) Create(ctx context.Context, h fx.Holding) (fx.Holding, error) {
	if h.Name == "" || h.Currency == "" {
		return fx.Holding{}, fmt.Errorf("%w: name and currency are required", errs.ErrInvalid)
	}
	if h.Type != fx.HoldingAsset && h.Type != fx.HoldingLiability {
		return fx.Holding{}, fmt.Errorf("%w: type must be asset or liability", errs.ErrInvalid)
	}
	if h.OpeningQuantity.IsNegative() || h.OpeningRate.IsNegative() {
		return fx.Holding{}, fmt.Errorf("%w: opening quantity and rate must be >= 0", errs.ErrInvalid)
	}
	if h.OpeningQuantity.IsPositive() && h.OpeningDate.IsZero() {
		return fx.Holding{}, fmt.Errorf("%w: opening date is required with an opening balance", errs.ErrInvalid)
	}
	if h.OpeningQuantity.IsZero() {
		h.OpeningQuantity = decimal.Zero
		h.OpeningRate = decimal.Zero
	}
	h.Currency = strings.ToUpper(h.Currency)
	h.ID = uuid.New()
	if err := s.writer.Apply(ctx, fx.WriteSet{PutHoldings: []fx.Holding{h}}); err != nil {
		return fx.Holding{}, err
	}
	return h, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (fx.Holding, error) {
	if id == uuid.Nil {
		return fx.Holding{}, errs.ErrInvalid
	}
	return s.repo.Holding(ctx, id)
}

func (s *service) List(ctx context.Context) ([]fx.Holding, error) {
	return s.repo.Holdings(ctx)
}

// Delete removes a holding. A holding with any movements cannot be deleted.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.Holding(ctx, id); err != nil {
		return err
	}
	ms, err := s.repo.MovementsByHolding(ctx, id)
	if err != nil {
		return err
	}
	if len(ms) > 0 {
		return fmt.Errorf("%w: holding has movements", errs.ErrConflict)
	}
	return s.writer.Apply(ctx, fx.WriteSet{DeleteHoldingIDs: []uuid.UUID{id}})
}
