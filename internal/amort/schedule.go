// Package amort builds installment schedules for foreign-currency debt under
// the French, German, American and bullet amortization systems.
//
// Money values are rounded to 2 decimal places at every step, and the
// remaining balance is updated with the rounded principal portion, so the
// schedule never drifts from what will actually be posted.
package amort

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tinoosan/fxledger/internal/fx"
)

// Generate builds the installment schedule for the given terms. Degenerate
// inputs (zero installments, non-positive principal, zero first due date,
// unknown frequency or system) yield an empty schedule.
func Generate(principal, annualRate decimal.Decimal, installments int, freq fx.Frequency, system fx.AmortSystem, firstDue time.Time) []fx.Installment {
	months := freq.Months()
	if installments <= 0 || !principal.IsPositive() || firstDue.IsZero() || months == 0 || !system.Valid() {
		return nil
	}
	periodsPerYear := decimal.NewFromInt(12).Div(decimal.NewFromInt(int64(months))).Round(0)
	rate := annualRate.Div(periodsPerYear)

	var sched []fx.Installment
	switch system {
	case fx.SystemBullet:
		sched = bullet(principal, rate)
	case fx.SystemAmerican:
		sched = american(principal, rate, installments)
	case fx.SystemGerman:
		sched = german(principal, rate, installments)
	case fx.SystemFrench:
		sched = french(principal, rate, installments)
	}
	for i := range sched {
		sched[i].Number = i + 1
		sched[i].DueDate = addMonths(firstDue, months*i)
	}
	return sched
}

// bullet: a single installment repaying the full principal plus one period
// of interest.
func bullet(principal, rate decimal.Decimal) []fx.Installment {
	return []fx.Installment{{
		Principal: principal.Round(2),
		Interest:  principal.Mul(rate).Round(2),
	}}
}

// american: interest-only installments on the original principal, with the
// full principal repaid in the last one.
func american(principal, rate decimal.Decimal, n int) []fx.Installment {
	interest := principal.Mul(rate).Round(2)
	out := make([]fx.Installment, n)
	for i := range out {
		out[i] = fx.Installment{Principal: decimal.Zero, Interest: interest}
	}
	out[n-1].Principal = principal.Round(2)
	return out
}

// german: linear principal portions; interest on the balance before each
// period's principal is subtracted. The last installment absorbs the
// rounding remainder so the portions sum exactly to the principal.
func german(principal, rate decimal.Decimal, n int) []fx.Installment {
	part := principal.Div(decimal.NewFromInt(int64(n))).Round(2)
	balance := principal.Round(2)
	out := make([]fx.Installment, n)
	for i := range out {
		p := part
		if i == n-1 {
			p = balance
		}
		out[i] = fx.Installment{Principal: p, Interest: balance.Mul(rate).Round(2)}
		balance = balance.Sub(p)
	}
	return out
}

// french: level payments by the annuity formula; the principal portion is
// the level amount net of the period's interest. With a zero rate the level
// payment degrades to principal / n.
func french(principal, rate decimal.Decimal, n int) []fx.Installment {
	var level decimal.Decimal
	if rate.IsZero() {
		level = principal.Div(decimal.NewFromInt(int64(n))).Round(2)
	} else {
		// principal * rate / (1 - (1+rate)^-n) == principal * rate * g / (g - 1)
		// with g = (1+rate)^n, computed by repeated multiplication.
		growth := decimal.NewFromInt(1)
		onePlus := decimal.NewFromInt(1).Add(rate)
		for i := 0; i < n; i++ {
			growth = growth.Mul(onePlus)
		}
		level = principal.Mul(rate).Mul(growth).Div(growth.Sub(decimal.NewFromInt(1))).Round(2)
	}
	balance := principal.Round(2)
	out := make([]fx.Installment, n)
	for i := range out {
		interest := balance.Mul(rate).Round(2)
		p := level.Sub(interest).Round(2)
		if i == n-1 || p.GreaterThan(balance) {
			p = balance
		}
		out[i] = fx.Installment{Principal: p, Interest: interest}
		balance = balance.Sub(p)
	}
	return out
}

// addMonths advances t by calendar months, preserving the day of month
// where the target month has it and clamping to the month's last day where
// it does not (Jan 31 + 1 month -> Feb 28/29).
func addMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	if last := first.AddDate(0, 1, -1).Day(); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, t.Location())
}

// PrincipalTotal sums the principal portions of a schedule.
func PrincipalTotal(sched []fx.Installment) decimal.Decimal {
	total := decimal.Zero
	for _, ins := range sched {
		total = total.Add(ins.Principal)
	}
	return total
}
