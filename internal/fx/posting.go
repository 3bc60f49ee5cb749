package fx

import (
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"
	"github.com/shopspring/decimal"
)

// Epsilon is the balance tolerance for machine-built postings, in minor
// units of the local currency (0.01).
const Epsilon int64 = 1

// Posting is a balanced set of local-currency debit/credit lines recorded in
// the general ledger.
type Posting struct {
	ID   uuid.UUID
	Date time.Time
	Memo string
	// MovementID back-references the originating movement; uuid.Nil for
	// manual postings or postings stripped of their linkage.
	MovementID uuid.UUID
	// Generated marks machine-built postings.
	Generated bool
	Lines     []PostingLine
}

// PostingLine is one debit or credit against a ledger account.
type PostingLine struct {
	ID        uuid.UUID
	PostingID uuid.UUID
	AccountID uuid.UUID
	Side      Side
	Amount    money.Amount
}

// Totals returns the debit and credit sums in minor units.
func (p Posting) Totals() (debits, credits int64) {
	for _, ln := range p.Lines {
		units, _ := ln.Amount.MinorUnits()
		switch ln.Side {
		case SideDebit:
			debits += units
		case SideCredit:
			credits += units
		}
	}
	return debits, credits
}

// Balanced reports whether debits equal credits within Epsilon.
func (p Posting) Balanced() bool {
	d, c := p.Totals()
	diff := d - c
	if diff < 0 {
		diff = -diff
	}
	return diff <= Epsilon
}

// MinorUnits converts a decimal local-currency amount to minor units,
// rounding to 2 decimal places first.
func MinorUnits(d decimal.Decimal) int64 {
	return d.Round(2).Shift(2).IntPart()
}

// Amount builds a money.Amount in the given currency from a decimal value.
func Amount(currency string, d decimal.Decimal) money.Amount {
	a, _ := money.NewAmountFromMinorUnits(currency, MinorUnits(d))
	return a
}
