// Package posting turns a foreign-currency movement into a balanced set of
// local-currency debit/credit lines, or a structured error naming the
// missing account configuration.
package posting

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tinoosan/fxledger/internal/errs"
	"github.com/tinoosan/fxledger/internal/fifo"
	"github.com/tinoosan/fxledger/internal/fx"
	"github.com/tinoosan/fxledger/internal/resolver"
)

// Builder emits the fixed line pattern for each movement kind. It is pure:
// accounts come pre-snapshotted in the resolver and disposal costs are
// computed by the caller, so Build has no side effects and backs the
// preview API directly.
type Builder struct {
	res      *resolver.Resolver
	currency string
}

// New constructs a builder posting in the given local currency.
func New(res *resolver.Resolver, localCurrency string) *Builder {
	return &Builder{res: res, currency: localCurrency}
}

// missing collects unresolved roles so the caller gets them all at once.
type missing struct {
	roles []errs.MissingRole
}

func (ms *missing) role(r fx.Role) {
	ms.roles = append(ms.roles, errs.MissingRole{Role: string(r), FallbackCode: resolver.FallbackCode(r)})
}

func (ms *missing) holding(label string) {
	ms.roles = append(ms.roles, errs.MissingRole{Role: label})
}

func (ms *missing) err() error {
	if len(ms.roles) == 0 {
		return nil
	}
	return &errs.MissingAccountsError{Missing: ms.roles}
}

// Build produces the posting for a movement. source is the movement's
// holding; target is required for transfers and debt draws; disposal carries
// the FIFO cost for sells. Every required role must resolve or Build
// returns a MissingAccountsError and emits no lines; after emission the
// posting must balance within fx.Epsilon or Build returns an
// ImbalanceError, which the fixed patterns should make unreachable.
func (b *Builder) Build(m fx.Movement, source fx.Holding, target *fx.Holding, disposal fifo.DisposalCost) (fx.Posting, error) {
	gross := m.GrossAmount()
	comm := m.Commission.Round(2)
	ms := &missing{}

	srcAcc, srcOK := b.res.Account(source.AccountID)
	if source.AccountID == uuid.Nil || !srcOK {
		ms.holding("holding_account:" + source.Name)
	}
	var tgtAcc fx.Account
	if m.Kind == fx.KindTransfer || m.Kind == fx.KindDebtDraw {
		if target == nil {
			ms.holding("target_holding_account")
		} else {
			var ok bool
			tgtAcc, ok = b.res.Account(target.AccountID)
			if target.AccountID == uuid.Nil || !ok {
				ms.holding("target_holding_account:" + target.Name)
			}
		}
	}

	var counterpart, commission, fxResult, interest fx.Account
	needCommission := comm.IsPositive()
	switch m.Kind {
	case fx.KindBuy:
		counterpart = b.require(fx.RoleCounterpart, m.CounterpartID, ms)
	case fx.KindSell:
		counterpart = b.require(fx.RoleCounterpart, m.CounterpartID, ms)
		fxResult = b.require(fx.RoleFXResult, uuid.Nil, ms)
	case fx.KindInflow, fx.KindOutflow, fx.KindAdjustment:
		fxResult = b.require(fx.RoleFXResult, uuid.Nil, ms)
		needCommission = false
	case fx.KindDebtPayment:
		counterpart = b.require(fx.RoleCounterpart, m.CounterpartID, ms)
		if m.Interest.IsPositive() {
			interest = b.require(fx.RoleInterest, uuid.Nil, ms)
		}
	case fx.KindTransfer, fx.KindDebtDraw:
		needCommission = false
	default:
		return fx.Posting{}, fmt.Errorf("%w: unknown movement kind %q", errs.ErrInvalid, m.Kind)
	}
	if needCommission {
		commission = b.require(fx.RoleCommission, m.CommissionID, ms)
	}
	if err := ms.err(); err != nil {
		return fx.Posting{}, err
	}

	p := fx.Posting{
		ID:         uuid.New(),
		Date:       m.Date,
		Memo:       memo(m, source),
		MovementID: m.ID,
		Generated:  true,
	}
	switch m.Kind {
	case fx.KindBuy:
		b.line(&p, srcAcc, fx.SideDebit, gross)
		if comm.IsPositive() {
			b.line(&p, commission, fx.SideDebit, comm)
		}
		b.line(&p, counterpart, fx.SideCredit, gross.Add(comm))

	case fx.KindSell:
		// Proceeds come in net of commission; the commission is expensed and
		// the exchange-difference line absorbs the remainder (gross - cost),
		// keeping the entry balanced.
		net := gross.Sub(comm)
		cost := disposal.Total
		b.line(&p, counterpart, fx.SideDebit, net)
		if comm.IsPositive() {
			b.line(&p, commission, fx.SideDebit, comm)
		}
		b.line(&p, srcAcc, fx.SideCredit, cost)
		diff := gross.Sub(cost)
		switch {
		case diff.IsPositive():
			b.line(&p, fxResult, fx.SideCredit, diff)
		case diff.IsNegative():
			b.line(&p, fxResult, fx.SideDebit, diff.Neg())
		}

	case fx.KindInflow:
		b.line(&p, srcAcc, fx.SideDebit, gross)
		b.line(&p, fxResult, fx.SideCredit, gross)

	case fx.KindOutflow:
		b.line(&p, fxResult, fx.SideDebit, gross)
		b.line(&p, srcAcc, fx.SideCredit, gross)

	case fx.KindAdjustment:
		if m.Increase {
			b.line(&p, srcAcc, fx.SideDebit, gross)
			b.line(&p, fxResult, fx.SideCredit, gross)
		} else {
			b.line(&p, fxResult, fx.SideDebit, gross)
			b.line(&p, srcAcc, fx.SideCredit, gross)
		}

	case fx.KindTransfer:
		b.line(&p, tgtAcc, fx.SideDebit, gross)
		b.line(&p, srcAcc, fx.SideCredit, gross)

	case fx.KindDebtDraw:
		b.line(&p, tgtAcc, fx.SideDebit, gross)
		b.line(&p, srcAcc, fx.SideCredit, gross)

	case fx.KindDebtPayment:
		principalLocal := m.Principal.Mul(m.Rate).Round(2)
		interestLocal := m.Interest.Mul(m.Rate).Round(2)
		total := principalLocal
		b.line(&p, srcAcc, fx.SideDebit, principalLocal)
		if interestLocal.IsPositive() {
			b.line(&p, interest, fx.SideDebit, interestLocal)
			total = total.Add(interestLocal)
		}
		if comm.IsPositive() {
			b.line(&p, commission, fx.SideDebit, comm)
			total = total.Add(comm)
		}
		b.line(&p, counterpart, fx.SideCredit, total)
	}

	if !p.Balanced() {
		d, c := p.Totals()
		return fx.Posting{}, &errs.ImbalanceError{Debits: d, Credits: c}
	}
	return p, nil
}

func (b *Builder) require(role fx.Role, explicitID uuid.UUID, ms *missing) fx.Account {
	a, ok := b.res.Resolve(role, explicitID)
	if !ok {
		ms.role(role)
	}
	return a
}

func (b *Builder) line(p *fx.Posting, acc fx.Account, side fx.Side, amount decimal.Decimal) {
	if amount.IsZero() {
		return
	}
	p.Lines = append(p.Lines, fx.PostingLine{
		ID:        uuid.New(),
		PostingID: p.ID,
		AccountID: acc.ID,
		Side:      side,
		Amount:    fx.Amount(b.currency, amount),
	})
}

func memo(m fx.Movement, source fx.Holding) string {
	if m.Memo != "" {
		return m.Memo
	}
	return string(m.Kind) + " " + m.Quantity.String() + " " + m.Currency + " (" + source.Name + ")"
}
