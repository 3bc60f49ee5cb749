package httpapi

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tinoosan/fxledger/internal/fx"
)

// movementRequest is the wire form for creating or patching a movement.
// Quantities and rates travel as decimal strings.
type movementRequest struct {
	Date            time.Time       `json:"date"`
	Kind            fx.MovementKind `json:"kind"`
	Currency        string          `json:"currency,omitempty"`
	HoldingID       uuid.UUID       `json:"holding_id"`
	TargetHoldingID uuid.UUID       `json:"target_holding_id,omitempty"`
	Quantity        decimal.Decimal `json:"quantity"`
	Rate            decimal.Decimal `json:"rate"`
	RateSide        fx.QuoteSide    `json:"rate_side,omitempty"`
	Increase        bool            `json:"increase,omitempty"`
	CounterpartID   uuid.UUID       `json:"counterpart_id,omitempty"`
	Commission      decimal.Decimal `json:"commission,omitempty"`
	CommissionID    uuid.UUID       `json:"commission_id,omitempty"`
	Principal       decimal.Decimal `json:"principal,omitempty"`
	Interest        decimal.Decimal `json:"interest,omitempty"`
	Memo            string          `json:"memo,omitempty"`
	AutoPost        *bool           `json:"auto_post,omitempty"`
}

func (req movementRequest) toMovement() fx.Movement {
	return fx.Movement{
		Date:            req.Date,
		Kind:            req.Kind,
		Currency:        req.Currency,
		HoldingID:       req.HoldingID,
		TargetHoldingID: req.TargetHoldingID,
		Quantity:        req.Quantity,
		Rate:            req.Rate,
		RateSide:        req.RateSide,
		Increase:        req.Increase,
		CounterpartID:   req.CounterpartID,
		Commission:      req.Commission,
		CommissionID:    req.CommissionID,
		Principal:       req.Principal,
		Interest:        req.Interest,
		Memo:            req.Memo,
	}
}

func (req movementRequest) autoPost() bool {
	if req.AutoPost == nil {
		return true
	}
	return *req.AutoPost
}

type movementResponse struct {
	ID              uuid.UUID       `json:"id"`
	Date            time.Time       `json:"date"`
	Kind            fx.MovementKind `json:"kind"`
	Currency        string          `json:"currency"`
	HoldingID       uuid.UUID       `json:"holding_id"`
	TargetHoldingID *uuid.UUID      `json:"target_holding_id,omitempty"`
	Quantity        decimal.Decimal `json:"quantity"`
	Rate            decimal.Decimal `json:"rate"`
	RateSide        fx.QuoteSide    `json:"rate_side"`
	Gross           decimal.Decimal `json:"gross"`
	Increase        bool            `json:"increase,omitempty"`
	CounterpartID   *uuid.UUID      `json:"counterpart_id,omitempty"`
	Commission      decimal.Decimal `json:"commission"`
	CommissionID    *uuid.UUID      `json:"commission_id,omitempty"`
	RealizedCost    decimal.Decimal `json:"realized_cost"`
	RealizedGain    decimal.Decimal `json:"realized_gain"`
	Principal       decimal.Decimal `json:"principal"`
	Interest        decimal.Decimal `json:"interest"`
	Memo            string          `json:"memo,omitempty"`
	PostingIDs      []uuid.UUID     `json:"posting_ids"`
	Status          fx.ReconStatus  `json:"status"`
	AutoPost        bool            `json:"auto_post"`
}

func toMovementResponse(m fx.Movement) movementResponse {
	ids := m.PostingIDs
	if ids == nil {
		ids = []uuid.UUID{}
	}
	return movementResponse{
		ID:              m.ID,
		Date:            m.Date,
		Kind:            m.Kind,
		Currency:        m.Currency,
		HoldingID:       m.HoldingID,
		TargetHoldingID: optionalID(m.TargetHoldingID),
		Quantity:        m.Quantity,
		Rate:            m.Rate,
		RateSide:        m.RateSide,
		Gross:           m.Gross,
		Increase:        m.Increase,
		CounterpartID:   optionalID(m.CounterpartID),
		Commission:      m.Commission,
		CommissionID:    optionalID(m.CommissionID),
		RealizedCost:    m.RealizedCost,
		RealizedGain:    m.RealizedGain,
		Principal:       m.Principal,
		Interest:        m.Interest,
		Memo:            m.Memo,
		PostingIDs:      ids,
		Status:          m.Status,
		AutoPost:        m.AutoPost,
	}
}

func toMovementResponses(ms []fx.Movement) []movementResponse {
	out := make([]movementResponse, 0, len(ms))
	for _, m := range ms {
		out = append(out, toMovementResponse(m))
	}
	return out
}

type holdingRequest struct {
	Name            string          `json:"name"`
	Currency        string          `json:"currency"`
	Type            fx.HoldingType  `json:"type"`
	AccountID       uuid.UUID       `json:"account_id,omitempty"`
	OpeningQuantity decimal.Decimal `json:"opening_quantity,omitempty"`
	OpeningRate     decimal.Decimal `json:"opening_rate,omitempty"`
	OpeningDate     time.Time       `json:"opening_date,omitempty"`
}

func (req holdingRequest) toHolding() fx.Holding {
	return fx.Holding{
		Name:            req.Name,
		Currency:        req.Currency,
		Type:            req.Type,
		AccountID:       req.AccountID,
		OpeningQuantity: req.OpeningQuantity,
		OpeningRate:     req.OpeningRate,
		OpeningDate:     req.OpeningDate,
	}
}

type holdingResponse struct {
	ID              uuid.UUID       `json:"id"`
	Name            string          `json:"name"`
	Currency        string          `json:"currency"`
	Type            fx.HoldingType  `json:"type"`
	AccountID       *uuid.UUID      `json:"account_id,omitempty"`
	OpeningQuantity decimal.Decimal `json:"opening_quantity"`
	OpeningRate     decimal.Decimal `json:"opening_rate"`
	OpeningDate     time.Time       `json:"opening_date"`
}

func toHoldingResponse(h fx.Holding) holdingResponse {
	return holdingResponse{
		ID:              h.ID,
		Name:            h.Name,
		Currency:        h.Currency,
		Type:            h.Type,
		AccountID:       optionalID(h.AccountID),
		OpeningQuantity: h.OpeningQuantity,
		OpeningRate:     h.OpeningRate,
		OpeningDate:     h.OpeningDate,
	}
}

type debtRequest struct {
	HoldingID    uuid.UUID       `json:"holding_id"`
	Principal    decimal.Decimal `json:"principal"`
	AnnualRate   decimal.Decimal `json:"annual_rate"`
	System       fx.AmortSystem  `json:"system"`
	Installments int             `json:"installments"`
	Frequency    fx.Frequency    `json:"frequency"`
	FirstDue     time.Time       `json:"first_due"`
}

func (req debtRequest) toDebt() fx.Debt {
	return fx.Debt{
		HoldingID:    req.HoldingID,
		Principal:    req.Principal,
		AnnualRate:   req.AnnualRate,
		System:       req.System,
		Installments: req.Installments,
		Frequency:    req.Frequency,
		FirstDue:     req.FirstDue,
	}
}

type installmentResponse struct {
	Number     int             `json:"number"`
	DueDate    time.Time       `json:"due_date"`
	Principal  decimal.Decimal `json:"principal"`
	Interest   decimal.Decimal `json:"interest"`
	Paid       bool            `json:"paid"`
	MovementID *uuid.UUID      `json:"movement_id,omitempty"`
	PaidRate   decimal.Decimal `json:"paid_rate"`
}

type debtResponse struct {
	ID           uuid.UUID             `json:"id"`
	HoldingID    uuid.UUID             `json:"holding_id"`
	Currency     string                `json:"currency"`
	Principal    decimal.Decimal       `json:"principal"`
	AnnualRate   decimal.Decimal       `json:"annual_rate"`
	System       fx.AmortSystem        `json:"system"`
	Installments int                   `json:"installments"`
	Frequency    fx.Frequency          `json:"frequency"`
	FirstDue     time.Time             `json:"first_due"`
	Outstanding  decimal.Decimal       `json:"outstanding"`
	Schedule     []installmentResponse `json:"schedule"`
}

func toDebtResponse(d fx.Debt) debtResponse {
	sched := make([]installmentResponse, 0, len(d.Schedule))
	for _, ins := range d.Schedule {
		sched = append(sched, installmentResponse{
			Number:     ins.Number,
			DueDate:    ins.DueDate,
			Principal:  ins.Principal,
			Interest:   ins.Interest,
			Paid:       ins.Paid,
			MovementID: optionalID(ins.MovementID),
			PaidRate:   ins.PaidRate,
		})
	}
	return debtResponse{
		ID:           d.ID,
		HoldingID:    d.HoldingID,
		Currency:     d.Currency,
		Principal:    d.Principal,
		AnnualRate:   d.AnnualRate,
		System:       d.System,
		Installments: d.Installments,
		Frequency:    d.Frequency,
		FirstDue:     d.FirstDue,
		Outstanding:  d.Outstanding,
		Schedule:     sched,
	}
}

type postingLineResponse struct {
	ID          uuid.UUID `json:"id"`
	AccountID   uuid.UUID `json:"account_id"`
	Side        fx.Side   `json:"side"`
	Currency    string    `json:"currency"`
	AmountMinor int64     `json:"amount_minor"`
}

type postingResponse struct {
	ID         uuid.UUID             `json:"id"`
	Date       time.Time             `json:"date"`
	Memo       string                `json:"memo,omitempty"`
	MovementID *uuid.UUID            `json:"movement_id,omitempty"`
	Generated  bool                  `json:"generated"`
	Lines      []postingLineResponse `json:"lines"`
}

func toPostingResponse(p fx.Posting) postingResponse {
	lines := make([]postingLineResponse, 0, len(p.Lines))
	for _, ln := range p.Lines {
		minor, _ := ln.Amount.MinorUnits()
		lines = append(lines, postingLineResponse{
			ID:          ln.ID,
			AccountID:   ln.AccountID,
			Side:        ln.Side,
			Currency:    ln.Amount.Curr().Code(),
			AmountMinor: minor,
		})
	}
	return postingResponse{
		ID:         p.ID,
		Date:       p.Date,
		Memo:       p.Memo,
		MovementID: optionalID(p.MovementID),
		Generated:  p.Generated,
		Lines:      lines,
	}
}

func optionalID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
