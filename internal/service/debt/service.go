// Package debt manages structured foreign-currency liabilities: schedule
// generation at origination and the outstanding-principal bookkeeping driven
// by payment and draw movements.
package debt

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tinoosan/fxledger/internal/amort"
	"github.com/tinoosan/fxledger/internal/errs"
	"github.com/tinoosan/fxledger/internal/fx"
)

// Repo defines read operations needed by the service.
type Repo interface {
	Debt(ctx context.Context, id uuid.UUID) (fx.Debt, error)
	Debts(ctx context.Context) ([]fx.Debt, error)
	Holding(ctx context.Context, id uuid.UUID) (fx.Holding, error)
}

// Writer applies a unit of work atomically.
type Writer interface {
	Apply(ctx context.Context, ws fx.WriteSet) error
}

// Service exposes debt origination and reads.
type Service interface {
	Create(ctx context.Context, d fx.Debt) (fx.Debt, error)
	Get(ctx context.Context, id uuid.UUID) (fx.Debt, error)
	List(ctx context.Context) ([]fx.Debt, error)
}

type service struct {
	repo   Repo
	writer Writer
}

// New constructs the debt service.
func New(repo Repo, writer Writer) Service { return &service{repo: repo, writer: writer} }

// Create validates the origination terms, generates the installment
// schedule and persists debt plus schedule atomically.
func (s *service) Create(ctx context.Context, d fx.Debt) (fx.Debt, error) {
	if !d.Principal.IsPositive() || d.Installments <= 0 || d.FirstDue.IsZero() {
		return fx.Debt{}, fmt.Errorf("%w: principal, installments and first due date are required", errs.ErrInvalid)
	}
	if !d.System.Valid() {
		return fx.Debt{}, fmt.Errorf("%w: unknown amortization system %q", errs.ErrInvalid, d.System)
	}
	if d.Frequency.Months() == 0 {
		return fx.Debt{}, fmt.Errorf("%w: unknown frequency %q", errs.ErrInvalid, d.Frequency)
	}
	if d.AnnualRate.IsNegative() {
		return fx.Debt{}, fmt.Errorf("%w: annual rate must be >= 0", errs.ErrInvalid)
	}
	h, err := s.repo.Holding(ctx, d.HoldingID)
	if err != nil {
		return fx.Debt{}, err
	}
	if h.Type != fx.HoldingLiability {
		return fx.Debt{}, fmt.Errorf("%w: debt holding %s is not a liability", errs.ErrUnprocessable, h.Name)
	}
	if d.Currency == "" {
		d.Currency = h.Currency
	}

	d.ID = uuid.New()
	d.Schedule = amort.Generate(d.Principal, d.AnnualRate, d.Installments, d.Frequency, d.System, d.FirstDue)
	if len(d.Schedule) == 0 {
		return fx.Debt{}, fmt.Errorf("%w: degenerate amortization terms", errs.ErrInvalid)
	}
	d.Outstanding = d.Principal.Round(2)

	if err := s.writer.Apply(ctx, fx.WriteSet{PutDebts: []fx.Debt{d}}); err != nil {
		return fx.Debt{}, err
	}
	return d, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (fx.Debt, error) {
	if id == uuid.Nil {
		return fx.Debt{}, errs.ErrInvalid
	}
	return s.repo.Debt(ctx, id)
}

func (s *service) List(ctx context.Context) ([]fx.Debt, error) {
	return s.repo.Debts(ctx)
}

// Settle applies a payment movement to the debt. The payment's principal
// portion must not exceed the outstanding balance day of the payment. At
// most one installment flips to paid: the earliest unpaid one whose
// principal portion the payment covers.
func Settle(d fx.Debt, m fx.Movement) (fx.Debt, error) {
	principal := m.Principal.Round(2)
	if !principal.IsPositive() {
		return fx.Debt{}, fmt.Errorf("%w: payment principal must be > 0", errs.ErrInvalid)
	}
	if principal.GreaterThan(d.Outstanding) {
		return fx.Debt{}, &errs.InsufficientBalanceError{
			HoldingID: d.HoldingID,
			Requested: principal,
			Available: d.Outstanding,
		}
	}
	out := cloneSchedule(d)
	out.Outstanding = d.Outstanding.Sub(principal)
	for i := range out.Schedule {
		ins := &out.Schedule[i]
		if ins.Paid || ins.Principal.GreaterThan(principal) {
			continue
		}
		ins.Paid = true
		ins.MovementID = m.ID
		ins.PaidRate = m.Rate
		break
	}
	return out, nil
}

// Draw increases the outstanding principal by the movement's quantity.
func Draw(d fx.Debt, m fx.Movement) fx.Debt {
	out := cloneSchedule(d)
	out.Outstanding = d.Outstanding.Add(m.Quantity.Round(2))
	return out
}

// Unsettle reverses a prior payment's effect: the installment settled by the
// movement becomes unpaid again and the outstanding balance is restored.
func Unsettle(d fx.Debt, m fx.Movement) fx.Debt {
	out := cloneSchedule(d)
	out.Outstanding = d.Outstanding.Add(m.Principal.Round(2))
	for i := range out.Schedule {
		ins := &out.Schedule[i]
		if ins.Paid && ins.MovementID == m.ID {
			ins.Paid = false
			ins.MovementID = uuid.Nil
			ins.PaidRate = decimal.Zero
		}
	}
	return out
}

// Undraw reverses a prior draw's effect on the outstanding balance.
func Undraw(d fx.Debt, m fx.Movement) fx.Debt {
	out := cloneSchedule(d)
	out.Outstanding = d.Outstanding.Sub(m.Quantity.Round(2))
	return out
}

func cloneSchedule(d fx.Debt) fx.Debt {
	out := d
	out.Schedule = make([]fx.Installment, len(d.Schedule))
	copy(out.Schedule, d.Schedule)
	return out
}
