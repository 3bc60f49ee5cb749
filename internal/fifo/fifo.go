// Package fifo rebuilds the acquisition lots of a foreign-currency holding
// and prices disposals against them oldest-first.
//
// Lot state is never persisted: every call replays the full movement history
// up to the as-of date. That keeps the computation deterministic and makes
// the replay the reference result for any future incremental optimization.
package fifo

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tinoosan/fxledger/internal/fx"
)

// Lot is a chronological slice of acquired currency carrying its own
// historical rate.
type Lot struct {
	MovementID uuid.UUID
	Date       time.Time
	Quantity   decimal.Decimal
	Remaining  decimal.Decimal
	Rate       decimal.Decimal
}

// Consumption records how much of one lot a disposal consumed and the cost
// that quantity contributed.
type Consumption struct {
	Lot      Lot
	Quantity decimal.Decimal
	Cost     decimal.Decimal
}

// DisposalCost is the priced result of consuming quantity from the lots.
type DisposalCost struct {
	Total decimal.Decimal
	Lots  []Consumption
}

// Remaining rebuilds the current lot state of a holding as of a date.
// The opening balance is treated as the earliest lot. excludeID names a
// movement to leave out of the replay, so a disposal being repriced does not
// consume lots against itself.
func Remaining(h fx.Holding, movements []fx.Movement, excludeID uuid.UUID, asOf time.Time) []Lot {
	ms := make([]fx.Movement, 0, len(movements))
	for _, m := range movements {
		if m.ID == excludeID {
			continue
		}
		if m.Date.After(asOf) {
			continue
		}
		ms = append(ms, m)
	}
	sort.SliceStable(ms, func(i, j int) bool {
		if !ms[i].Date.Equal(ms[j].Date) {
			return ms[i].Date.Before(ms[j].Date)
		}
		return ms[i].ID.String() < ms[j].ID.String()
	})

	var lots []Lot
	if h.OpeningQuantity.IsPositive() {
		lots = append(lots, Lot{
			Date:      h.OpeningDate,
			Quantity:  h.OpeningQuantity,
			Remaining: h.OpeningQuantity,
			Rate:      h.OpeningRate,
		})
	}
	for _, m := range ms {
		if q := inflowQuantity(h, m); q.IsPositive() {
			lots = append(lots, Lot{
				MovementID: m.ID,
				Date:       m.Date,
				Quantity:   q,
				Remaining:  q,
				Rate:       m.Rate,
			})
			continue
		}
		if q := disposalQuantity(h, m); q.IsPositive() {
			consume(lots, q)
		}
	}
	return lots
}

// CostOfDisposal prices a disposal of quantity from the holding's remaining
// lots as of the given date. It consumes only what is available and never
// over-consumes: validating availability is the caller's job.
func CostOfDisposal(h fx.Holding, movements []fx.Movement, excludeID uuid.UUID, quantity decimal.Decimal, asOf time.Time) DisposalCost {
	lots := Remaining(h, movements, excludeID, asOf)
	out := DisposalCost{Total: decimal.Zero}
	remaining := quantity
	for i := range lots {
		if !remaining.IsPositive() {
			break
		}
		if !lots[i].Remaining.IsPositive() {
			continue
		}
		take := decimal.Min(lots[i].Remaining, remaining)
		cost := take.Mul(lots[i].Rate).Round(2)
		out.Lots = append(out.Lots, Consumption{Lot: lots[i], Quantity: take, Cost: cost})
		out.Total = out.Total.Add(cost)
		remaining = remaining.Sub(take)
	}
	return out
}

// Available sums the remaining quantity across lots.
func Available(lots []Lot) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lots {
		total = total.Add(l.Remaining)
	}
	return total
}

// consume removes quantity from lots oldest-first, in place.
func consume(lots []Lot, quantity decimal.Decimal) {
	remaining := quantity
	for i := range lots {
		if !remaining.IsPositive() {
			return
		}
		if !lots[i].Remaining.IsPositive() {
			continue
		}
		take := decimal.Min(lots[i].Remaining, remaining)
		lots[i].Remaining = lots[i].Remaining.Sub(take)
		remaining = remaining.Sub(take)
	}
}

// inflowQuantity returns the quantity m adds to holding h, or zero.
func inflowQuantity(h fx.Holding, m fx.Movement) decimal.Decimal {
	switch {
	case m.HoldingID == h.ID && m.Kind.Acquires():
		return m.Quantity
	case m.HoldingID == h.ID && m.Kind == fx.KindAdjustment && m.Increase:
		return m.Quantity
	case m.TargetHoldingID == h.ID && (m.Kind == fx.KindTransfer || m.Kind == fx.KindDebtDraw):
		return m.Quantity
	}
	return decimal.Zero
}

// disposalQuantity returns the quantity m removes from holding h, or zero.
func disposalQuantity(h fx.Holding, m fx.Movement) decimal.Decimal {
	if m.HoldingID != h.ID {
		return decimal.Zero
	}
	switch {
	case m.Kind.Disposes():
		return m.Quantity
	case m.Kind == fx.KindAdjustment && !m.Increase:
		return m.Quantity
	}
	return decimal.Zero
}
