// Package valuation computes holding balances and mark-to-market values by
// replaying movements. It is read-only: the calculator never writes and its
// only failure mode beyond bad input is an unknown holding, which yields a
// zero balance.
package valuation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tinoosan/fxledger/internal/errs"
	"github.com/tinoosan/fxledger/internal/fx"
	"github.com/tinoosan/fxledger/internal/quote"
)

// Repo defines read operations needed by the calculator.
type Repo interface {
	Holding(ctx context.Context, id uuid.UUID) (fx.Holding, error)
	MovementsByHolding(ctx context.Context, holdingID uuid.UUID) ([]fx.Movement, error)
}

// Balance is the replayed state of a holding.
type Balance struct {
	HoldingID uuid.UUID       `json:"holding_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	// HistoricalRate is the weighted-average acquisition rate, or the
	// opening rate when no quantity remains.
	HistoricalRate decimal.Decimal `json:"historical_rate"`
	// LocalAmount is the accumulated signed local-currency amount.
	LocalAmount decimal.Decimal `json:"local_amount"`
}

// Valuation is a balance marked to market under a quote rule.
type Valuation struct {
	Balance
	Mode      fx.ValuationMode `json:"mode"`
	QuoteSide fx.QuoteSide     `json:"quote_side"`
	QuoteRate decimal.Decimal  `json:"quote_rate"`
	Value     decimal.Decimal  `json:"value"`
}

// Service exposes the balance and valuation queries.
type Service interface {
	Balance(ctx context.Context, holdingID uuid.UUID, asOf *time.Time) (Balance, error)
	Valuation(ctx context.Context, holdingID uuid.UUID, mode fx.ValuationMode, asOf *time.Time) (Valuation, error)
}

type service struct {
	repo   Repo
	quotes quote.Source
}

// New constructs the valuation service.
func New(repo Repo, quotes quote.Source) Service { return &service{repo: repo, quotes: quotes} }

// Balance replays the opening balance plus every movement affecting the
// holding up to asOf. An unknown holding returns a zero balance.
func (s *service) Balance(ctx context.Context, holdingID uuid.UUID, asOf *time.Time) (Balance, error) {
	h, err := s.repo.Holding(ctx, holdingID)
	if errors.Is(err, errs.ErrNotFound) {
		return Balance{HoldingID: holdingID, Quantity: decimal.Zero, HistoricalRate: decimal.Zero, LocalAmount: decimal.Zero}, nil
	}
	if err != nil {
		return Balance{}, err
	}
	movements, err := s.repo.MovementsByHolding(ctx, holdingID)
	if err != nil {
		return Balance{}, err
	}

	quantity := decimal.Zero
	local := decimal.Zero
	if h.OpeningQuantity.IsPositive() && (asOf == nil || !h.OpeningDate.After(*asOf)) {
		quantity = h.OpeningQuantity
		local = h.OpeningQuantity.Mul(h.OpeningRate).Round(2)
	}
	for _, m := range movements {
		if asOf != nil && m.Date.After(*asOf) {
			continue
		}
		q, l := signedEffect(h, m)
		quantity = quantity.Add(q)
		local = local.Add(l)
	}

	rate := h.OpeningRate
	if quantity.IsPositive() {
		rate = local.Div(quantity).Round(6)
	}
	return Balance{HoldingID: h.ID, Quantity: quantity, HistoricalRate: rate, LocalAmount: local}, nil
}

// Valuation marks the balance to market. Assets are valued at bid (what a
// sale would fetch), liabilities at ask (what settling would cost);
// management mode may read an alternate quote source.
func (s *service) Valuation(ctx context.Context, holdingID uuid.UUID, mode fx.ValuationMode, asOf *time.Time) (Valuation, error) {
	if mode == "" {
		mode = fx.ModeAccounting
	}
	h, err := s.repo.Holding(ctx, holdingID)
	if err != nil {
		return Valuation{}, err
	}
	bal, err := s.Balance(ctx, holdingID, asOf)
	if err != nil {
		return Valuation{}, err
	}
	q, err := s.quotes.Rate(h.Currency, mode)
	if err != nil {
		return Valuation{}, err
	}
	side := fx.QuoteBid
	rate := q.Bid
	if h.Type == fx.HoldingLiability {
		side = fx.QuoteAsk
		rate = q.Ask
	}
	return Valuation{
		Balance:   bal,
		Mode:      mode,
		QuoteSide: side,
		QuoteRate: rate,
		Value:     bal.Quantity.Mul(rate).Round(2),
	}, nil
}

// signedEffect returns the quantity and local-amount deltas m causes on h,
// signed per the kind's direction and the holding type.
func signedEffect(h fx.Holding, m fx.Movement) (decimal.Decimal, decimal.Decimal) {
	gross := m.GrossAmount()
	if h.Type == fx.HoldingLiability {
		switch {
		case m.HoldingID == h.ID && m.Kind == fx.KindDebtDraw:
			return m.Quantity, gross
		case m.HoldingID == h.ID && m.Kind == fx.KindDebtPayment:
			principalLocal := m.Principal.Mul(m.Rate).Round(2)
			return m.Principal.Neg(), principalLocal.Neg()
		case m.HoldingID == h.ID && m.Kind == fx.KindAdjustment:
			if m.Increase {
				return m.Quantity, gross
			}
			return m.Quantity.Neg(), gross.Neg()
		}
		return decimal.Zero, decimal.Zero
	}

	switch {
	case m.HoldingID == h.ID && m.Kind.Acquires():
		return m.Quantity, gross
	case m.HoldingID == h.ID && m.Kind.Disposes():
		return m.Quantity.Neg(), gross.Neg()
	case m.HoldingID == h.ID && m.Kind == fx.KindAdjustment:
		if m.Increase {
			return m.Quantity, gross
		}
		return m.Quantity.Neg(), gross.Neg()
	case m.TargetHoldingID == h.ID && (m.Kind == fx.KindTransfer || m.Kind == fx.KindDebtDraw):
		return m.Quantity, gross
	}
	return decimal.Zero, decimal.Zero
}
