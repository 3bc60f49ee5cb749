package fx

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Side represents the accounting position of a posting line.
type Side string

const (
	// SideDebit records a value on the debit side of an account.
	SideDebit Side = "debit"
	// SideCredit records a value on the credit side of an account.
	SideCredit Side = "credit"
)

// MovementKind enumerates the foreign-currency business events the engine
// knows how to post. Direction is implied by the kind; movement quantities
// are always non-negative.
type MovementKind string

const (
	KindBuy         MovementKind = "buy"
	KindSell        MovementKind = "sell"
	KindInflow      MovementKind = "inflow"
	KindOutflow     MovementKind = "outflow"
	KindTransfer    MovementKind = "transfer"
	KindAdjustment  MovementKind = "adjustment"
	KindDebtPayment MovementKind = "debt_payment"
	KindDebtDraw    MovementKind = "debt_draw"
)

// Valid reports whether k is a known movement kind.
func (k MovementKind) Valid() bool {
	switch k {
	case KindBuy, KindSell, KindInflow, KindOutflow, KindTransfer, KindAdjustment, KindDebtPayment, KindDebtDraw:
		return true
	}
	return false
}

// Acquires reports whether the kind adds quantity to the source holding of
// an asset position. Adjustments depend on their Increase flag and are
// handled separately.
func (k MovementKind) Acquires() bool {
	return k == KindBuy || k == KindInflow
}

// Disposes reports whether the kind removes quantity from the source holding
// of an asset position.
func (k MovementKind) Disposes() bool {
	return k == KindSell || k == KindOutflow || k == KindTransfer
}

// QuoteSide identifies which side of a bid/ask quote priced a movement.
type QuoteSide string

const (
	QuoteBid QuoteSide = "bid"
	QuoteAsk QuoteSide = "ask"
)

// ReconStatus tracks the linkage between a movement and its ledger postings.
type ReconStatus string

const (
	// StatusNone means no posting exists and none is expected.
	StatusNone ReconStatus = "none"
	// StatusGenerated means exactly machine-built postings exist and are in sync.
	StatusGenerated ReconStatus = "generated"
	// StatusLinked means a manually chosen posting is attached.
	StatusLinked ReconStatus = "linked"
	// StatusMissing means the movement was linked but its postings disappeared.
	StatusMissing ReconStatus = "missing"
	// StatusDesync means the movement was edited after a manual posting was
	// attached, so the posting may no longer match.
	StatusDesync ReconStatus = "desync"
	// StatusError means posting generation was attempted and failed.
	StatusError ReconStatus = "error"
)

// Movement is a single dated foreign-currency business event affecting one
// or two holdings.
type Movement struct {
	ID       uuid.UUID
	Date     time.Time
	Kind     MovementKind
	Currency string
	// HoldingID is the source holding. For debt draws and payments it is the
	// liability holding.
	HoldingID uuid.UUID
	// TargetHoldingID is set for transfers and debt draws.
	TargetHoldingID uuid.UUID
	// Quantity is the foreign-currency amount, always >= 0.
	Quantity decimal.Decimal
	Rate     decimal.Decimal
	RateSide QuoteSide
	// Gross is the local-currency amount: Quantity x Rate, rounded to 2dp.
	Gross decimal.Decimal
	// Increase gives adjustments their direction; ignored for other kinds.
	Increase bool
	// CounterpartID optionally names the local-currency counterpart account.
	CounterpartID uuid.UUID
	// Commission is a local-currency charge; CommissionID optionally names
	// the expense account it posts to.
	Commission   decimal.Decimal
	CommissionID uuid.UUID
	// RealizedCost and RealizedGain are filled on disposals.
	RealizedCost decimal.Decimal
	RealizedGain decimal.Decimal
	// Principal and Interest split a debt payment's foreign-currency quantity.
	Principal decimal.Decimal
	Interest  decimal.Decimal
	Memo      string
	// PostingIDs links the movement to zero or more ledger postings.
	PostingIDs []uuid.UUID
	Status     ReconStatus
	// AutoPost records whether the movement expects machine-built postings.
	AutoPost bool
}

// GrossAmount computes the local-currency gross for the movement's quantity
// and rate, rounded to 2 decimal places.
func (m Movement) GrossAmount() decimal.Decimal {
	return m.Quantity.Mul(m.Rate).Round(2)
}

// Linked reports whether the movement references the given posting id.
func (m Movement) Linked(postingID uuid.UUID) bool {
	for _, id := range m.PostingIDs {
		if id == postingID {
			return true
		}
	}
	return false
}

// HoldingType classifies a holding as an asset position or a debt.
type HoldingType string

const (
	HoldingAsset     HoldingType = "asset"
	HoldingLiability HoldingType = "liability"
)

// Holding is a named position in one foreign currency.
type Holding struct {
	ID       uuid.UUID
	Name     string
	Currency string
	Type     HoldingType
	// AccountID is the optional link to a ledger account.
	AccountID       uuid.UUID
	OpeningQuantity decimal.Decimal
	OpeningRate     decimal.Decimal
	OpeningDate     time.Time
}

// AmortSystem is the rule governing how a loan's principal and interest are
// split across installments.
type AmortSystem string

const (
	SystemFrench   AmortSystem = "french"
	SystemGerman   AmortSystem = "german"
	SystemAmerican AmortSystem = "american"
	SystemBullet   AmortSystem = "bullet"
)

// Valid reports whether s is a known amortization system.
func (s AmortSystem) Valid() bool {
	switch s {
	case SystemFrench, SystemGerman, SystemAmerican, SystemBullet:
		return true
	}
	return false
}

// Frequency is the spacing between installments, in calendar months.
type Frequency string

const (
	FreqMonthly    Frequency = "monthly"
	FreqBimonthly  Frequency = "bimonthly"
	FreqQuarterly  Frequency = "quarterly"
	FreqSemiannual Frequency = "semiannual"
	FreqAnnual     Frequency = "annual"
)

// Months returns the number of calendar months per period, or 0 for an
// unknown frequency.
func (f Frequency) Months() int {
	switch f {
	case FreqMonthly:
		return 1
	case FreqBimonthly:
		return 2
	case FreqQuarterly:
		return 3
	case FreqSemiannual:
		return 6
	case FreqAnnual:
		return 12
	}
	return 0
}

// Debt is a structured foreign-currency liability with a persisted
// installment schedule.
type Debt struct {
	ID        uuid.UUID
	HoldingID uuid.UUID
	Currency  string
	Principal decimal.Decimal
	// AnnualRate is the nominal annual interest rate, e.g. 0.12 for 12%.
	AnnualRate   decimal.Decimal
	System       AmortSystem
	Installments int
	Frequency    Frequency
	FirstDue     time.Time
	Schedule     []Installment
	// Outstanding only decreases through payment movements and only
	// increases through draw movements.
	Outstanding decimal.Decimal
}

// Installment is one scheduled repayment of a debt.
type Installment struct {
	Number    int
	DueDate   time.Time
	Principal decimal.Decimal
	Interest  decimal.Decimal
	Paid      bool
	// MovementID and PaidRate are set when the installment is settled.
	MovementID uuid.UUID
	PaidRate   decimal.Decimal
}

// Account is the read model of a chart-of-accounts entry. The engine never
// writes accounts; they are ingested from the bookkeeping collaborator.
type Account struct {
	ID   uuid.UUID
	Code string
	Name string
	// Header accounts group other accounts and cannot be posted to.
	Header bool
}

// Role is a semantic account role resolved to a concrete ledger account.
type Role string

const (
	// RoleCounterpart is the local-currency account money moves against.
	RoleCounterpart Role = "counterpart"
	// RoleCommission is the expense account for commissions.
	RoleCommission Role = "commission"
	// RoleFXResult is the exchange-difference result account.
	RoleFXResult Role = "fx_result"
	// RoleInterest is the interest-expense account for debt payments.
	RoleInterest Role = "interest_expense"
)

// Quote is a bid/ask exchange-rate pair for one currency.
type Quote struct {
	Currency string
	Bid      decimal.Decimal
	Ask      decimal.Decimal
}

// ValuationMode selects the quote rule used when valuing a holding.
type ValuationMode string

const (
	// ModeAccounting values holdings with the primary quote source.
	ModeAccounting ValuationMode = "accounting"
	// ModeManagement may use an alternate quote source.
	ModeManagement ValuationMode = "management"
)
