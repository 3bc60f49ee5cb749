// Package movement orchestrates the lifecycle of foreign-currency movements:
// validation, FIFO availability checks, debt side effects, posting
// generation and the reconciliation transitions driven by edits, deletes and
// manual links.
package movement

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/tinoosan/fxledger/internal/errs"
	"github.com/tinoosan/fxledger/internal/fifo"
	"github.com/tinoosan/fxledger/internal/fx"
	"github.com/tinoosan/fxledger/internal/posting"
	"github.com/tinoosan/fxledger/internal/resolver"
	"github.com/tinoosan/fxledger/internal/service/debt"
)

// ManualDecision is the caller's choice when an edit touches a movement with
// manually linked postings.
type ManualDecision string

const (
	// DecisionNone means the caller made no choice; edits are rejected with a
	// ManualLinkError when manual links exist.
	DecisionNone ManualDecision = ""
	// DecisionKeep leaves postings untouched and marks the movement desync.
	DecisionKeep ManualDecision = "keep"
	// DecisionRegenerate strips manual postings of their back-reference and
	// rebuilds machine postings.
	DecisionRegenerate ManualDecision = "regenerate"
)

// Repo defines read operations needed by the service.
type Repo interface {
	Movement(ctx context.Context, id uuid.UUID) (fx.Movement, error)
	Movements(ctx context.Context) ([]fx.Movement, error)
	MovementsByHolding(ctx context.Context, holdingID uuid.UUID) ([]fx.Movement, error)
	Holding(ctx context.Context, id uuid.UUID) (fx.Holding, error)
	Posting(ctx context.Context, id uuid.UUID) (fx.Posting, error)
	PostingsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]fx.Posting, error)
	Accounts(ctx context.Context) ([]fx.Account, error)
	RoleMapping(ctx context.Context) (map[fx.Role]uuid.UUID, error)
	DebtByHolding(ctx context.Context, holdingID uuid.UUID) (fx.Debt, error)
}

// Writer applies a unit of work atomically.
type Writer interface {
	Apply(ctx context.Context, ws fx.WriteSet) error
}

// Service exposes the movement lifecycle and the posting preview.
type Service interface {
	Preview(ctx context.Context, m fx.Movement) (fx.Posting, error)
	Create(ctx context.Context, m fx.Movement, autoPost bool) (fx.Movement, error)
	Update(ctx context.Context, m fx.Movement, decision ManualDecision) (fx.Movement, error)
	Delete(ctx context.Context, id uuid.UUID, keepPostings bool) error
	Regenerate(ctx context.Context, id uuid.UUID) (fx.Movement, error)
	LinkPosting(ctx context.Context, movementID, postingID uuid.UUID) (fx.Movement, error)
	MarkNonAccounting(ctx context.Context, id uuid.UUID) (fx.Movement, error)
	Get(ctx context.Context, id uuid.UUID) (fx.Movement, error)
	List(ctx context.Context) ([]fx.Movement, error)
	ListByHolding(ctx context.Context, holdingID uuid.UUID) ([]fx.Movement, error)
}

type service struct {
	repo     Repo
	writer   Writer
	currency string
}

// New constructs the movement service posting in the given local currency.
func New(repo Repo, writer Writer, localCurrency string) Service {
	return &service{repo: repo, writer: writer, currency: localCurrency}
}

// prepared carries everything needed to emit a movement's writes.
type prepared struct {
	m        fx.Movement
	source   fx.Holding
	target   *fx.Holding
	disposal fifo.DisposalCost
	// debt is non-nil when the movement settles or draws a debt.
	debt *fx.Debt
}

// prepare validates the movement, fills computed fields and runs the
// availability checks. It performs reads only.
func (s *service) prepare(ctx context.Context, m fx.Movement) (*prepared, error) {
	if !m.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown movement kind %q", errs.ErrInvalid, m.Kind)
	}
	if m.Quantity.IsNegative() {
		return nil, fmt.Errorf("%w: quantity must be >= 0; direction is implied by the kind", errs.ErrInvalid)
	}
	if !m.Rate.IsPositive() {
		return nil, fmt.Errorf("%w: exchange rate must be > 0", errs.ErrInvalid)
	}
	if m.Date.IsZero() {
		return nil, fmt.Errorf("%w: date is required", errs.ErrInvalid)
	}
	if m.Commission.IsNegative() {
		return nil, fmt.Errorf("%w: commission must be >= 0", errs.ErrInvalid)
	}
	source, err := s.repo.Holding(ctx, m.HoldingID)
	if err != nil {
		return nil, err
	}
	if m.Currency == "" {
		m.Currency = source.Currency
	}
	if m.RateSide == "" {
		m.RateSide = fx.QuoteBid
	}
	m.Gross = m.GrossAmount()

	p := &prepared{m: m, source: source}
	if m.Kind == fx.KindTransfer || m.Kind == fx.KindDebtDraw {
		if m.TargetHoldingID == uuid.Nil {
			return nil, fmt.Errorf("%w: target holding is required for %s", errs.ErrInvalid, m.Kind)
		}
		target, err := s.repo.Holding(ctx, m.TargetHoldingID)
		if err != nil {
			return nil, err
		}
		p.target = &target
	}

	switch m.Kind {
	case fx.KindSell, fx.KindOutflow, fx.KindTransfer:
		if err := s.checkAvailability(ctx, p); err != nil {
			return nil, err
		}
	case fx.KindDebtPayment:
		d, err := s.repo.DebtByHolding(ctx, m.HoldingID)
		if err != nil {
			return nil, err
		}
		if m.Principal.Add(m.Interest).Round(2).Cmp(m.Quantity.Round(2)) != 0 {
			return nil, fmt.Errorf("%w: principal + interest must equal the payment quantity", errs.ErrUnprocessable)
		}
		d, err = s.reversePrior(ctx, p.m, d)
		if err != nil {
			return nil, err
		}
		settled, err := debt.Settle(d, p.m)
		if err != nil {
			return nil, err
		}
		p.debt = &settled
	case fx.KindDebtDraw:
		d, err := s.repo.DebtByHolding(ctx, m.HoldingID)
		if err != nil {
			return nil, err
		}
		d, err = s.reversePrior(ctx, p.m, d)
		if err != nil {
			return nil, err
		}
		drawn := debt.Draw(d, p.m)
		p.debt = &drawn
	}
	return p, nil
}

// reversePrior backs the stored version of an edited debt movement out of
// the debt, so validation runs against the balance as it stood before that
// payment or draw. The FIFO paths get the same self-exclusion via
// excludeID. A movement not yet persisted leaves the debt untouched.
func (s *service) reversePrior(ctx context.Context, m fx.Movement, d fx.Debt) (fx.Debt, error) {
	prior, err := s.repo.Movement(ctx, m.ID)
	if errors.Is(err, errs.ErrNotFound) {
		return d, nil
	}
	if err != nil {
		return fx.Debt{}, err
	}
	if prior.Kind != m.Kind || prior.HoldingID != m.HoldingID {
		return d, nil
	}
	switch prior.Kind {
	case fx.KindDebtPayment:
		return debt.Unsettle(d, prior), nil
	case fx.KindDebtDraw:
		return debt.Undraw(d, prior), nil
	}
	return d, nil
}

// checkAvailability rejects disposals of more quantity than the holding's
// remaining lots hold, before any posting is attempted.
func (s *service) checkAvailability(ctx context.Context, p *prepared) error {
	history, err := s.repo.MovementsByHolding(ctx, p.source.ID)
	if err != nil {
		return err
	}
	lots := fifo.Remaining(p.source, history, p.m.ID, p.m.Date)
	available := fifo.Available(lots)
	if p.m.Quantity.GreaterThan(available) {
		return &errs.InsufficientBalanceError{
			HoldingID: p.source.ID,
			Requested: p.m.Quantity,
			Available: available,
		}
	}
	if p.m.Kind == fx.KindSell {
		p.disposal = fifo.CostOfDisposal(p.source, history, p.m.ID, p.m.Quantity, p.m.Date)
		p.m.RealizedCost = p.disposal.Total
		net := p.m.Gross.Sub(p.m.Commission.Round(2))
		p.m.RealizedGain = net.Sub(p.disposal.Total)
	}
	return nil
}

// build runs the posting builder against a fresh chart snapshot.
func (s *service) build(ctx context.Context, p *prepared) (fx.Posting, error) {
	accounts, err := s.repo.Accounts(ctx)
	if err != nil {
		return fx.Posting{}, err
	}
	mapping, err := s.repo.RoleMapping(ctx)
	if err != nil {
		return fx.Posting{}, err
	}
	b := posting.New(resolver.New(accounts, mapping), s.currency)
	return b.Build(p.m, p.source, p.target, p.disposal)
}

// Preview returns the posting a prospective movement would produce, or the
// structured error, without side effects.
func (s *service) Preview(ctx context.Context, m fx.Movement) (fx.Posting, error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	p, err := s.prepare(ctx, m)
	if err != nil {
		return fx.Posting{}, err
	}
	return s.build(ctx, p)
}

// Create persists a movement and, when autoPost is set, its machine posting
// in one atomic write. A build failure surfaces to the caller and nothing is
// persisted.
func (s *service) Create(ctx context.Context, m fx.Movement, autoPost bool) (fx.Movement, error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	p, err := s.prepare(ctx, m)
	if err != nil {
		return fx.Movement{}, err
	}
	p.m.AutoPost = autoPost
	ws := fx.WriteSet{}
	if p.debt != nil {
		ws.PutDebts = append(ws.PutDebts, *p.debt)
	}
	if autoPost {
		built, err := s.build(ctx, p)
		if err != nil {
			return fx.Movement{}, err
		}
		p.m.PostingIDs = []uuid.UUID{built.ID}
		p.m.Status = fx.StatusGenerated
		ws.PutPostings = append(ws.PutPostings, built)
	} else {
		p.m.PostingIDs = nil
		p.m.Status = fx.StatusNone
	}
	ws.PutMovements = append(ws.PutMovements, p.m)
	if err := s.writer.Apply(ctx, ws); err != nil {
		return fx.Movement{}, err
	}
	return p.m, nil
}

// Update re-evaluates a movement's posting. Machine-only postings are
// deleted and rebuilt atomically; manual links require the caller to choose
// keep or regenerate.
func (s *service) Update(ctx context.Context, m fx.Movement, decision ManualDecision) (fx.Movement, error) {
	if m.ID == uuid.Nil {
		return fx.Movement{}, errs.ErrInvalid
	}
	existing, err := s.repo.Movement(ctx, m.ID)
	if err != nil {
		return fx.Movement{}, err
	}
	if isDebtKind(existing.Kind) && (m.Kind != existing.Kind || m.HoldingID != existing.HoldingID) {
		return fx.Movement{}, fmt.Errorf("%w: kind and holding of debt movements cannot change", errs.ErrImmutable)
	}

	p, err := s.prepare(ctx, m)
	if err != nil {
		return fx.Movement{}, err
	}
	p.m.AutoPost = existing.AutoPost

	ws := fx.WriteSet{}
	// prepare re-settled the debt with the prior version reversed out.
	if p.debt != nil {
		ws.PutDebts = append(ws.PutDebts, *p.debt)
	}

	linked, err := s.repo.PostingsByIDs(ctx, existing.PostingIDs)
	if err != nil {
		return fx.Movement{}, err
	}
	machine, manual := splitPostings(existing.PostingIDs, linked)

	switch {
	case len(manual) > 0:
		switch decision {
		case DecisionKeep:
			p.m.PostingIDs = existing.PostingIDs
			p.m.Status = fx.StatusDesync
		case DecisionRegenerate:
			ws.UnlinkPostingIDs = append(ws.UnlinkPostingIDs, manual...)
			ws.DeletePostingIDs = append(ws.DeletePostingIDs, machine...)
			built, err := s.build(ctx, p)
			if err != nil {
				return fx.Movement{}, err
			}
			p.m.PostingIDs = []uuid.UUID{built.ID}
			p.m.Status = fx.StatusGenerated
			ws.PutPostings = append(ws.PutPostings, built)
		default:
			return fx.Movement{}, &errs.ManualLinkError{MovementID: existing.ID}
		}
	case len(machine) > 0 || existing.AutoPost:
		ws.DeletePostingIDs = append(ws.DeletePostingIDs, machine...)
		built, err := s.build(ctx, p)
		if err != nil {
			return fx.Movement{}, err
		}
		p.m.PostingIDs = []uuid.UUID{built.ID}
		p.m.Status = fx.StatusGenerated
		ws.PutPostings = append(ws.PutPostings, built)
	default:
		p.m.PostingIDs = nil
		p.m.Status = fx.StatusNone
	}

	ws.PutMovements = append(ws.PutMovements, p.m)
	if err := s.writer.Apply(ctx, ws); err != nil {
		return fx.Movement{}, err
	}
	return p.m, nil
}

// Delete removes a movement. Machine postings are deleted with it; manual
// postings are stripped of their back-reference and preserved, unless the
// caller explicitly confirmed they may be kept as-is.
func (s *service) Delete(ctx context.Context, id uuid.UUID, keepPostings bool) error {
	existing, err := s.repo.Movement(ctx, id)
	if err != nil {
		return err
	}
	linked, err := s.repo.PostingsByIDs(ctx, existing.PostingIDs)
	if err != nil {
		return err
	}
	machine, manual := splitPostings(existing.PostingIDs, linked)

	ws := fx.WriteSet{DeleteMovementIDs: []uuid.UUID{id}}
	ws.DeletePostingIDs = append(ws.DeletePostingIDs, machine...)
	if !keepPostings {
		ws.UnlinkPostingIDs = append(ws.UnlinkPostingIDs, manual...)
	}
	if isDebtKind(existing.Kind) {
		d, err := s.repo.DebtByHolding(ctx, existing.HoldingID)
		if err != nil {
			return err
		}
		switch existing.Kind {
		case fx.KindDebtPayment:
			d = debt.Unsettle(d, existing)
		case fx.KindDebtDraw:
			d = debt.Undraw(d, existing)
		}
		ws.PutDebts = append(ws.PutDebts, d)
	}
	return s.writer.Apply(ctx, ws)
}

// Regenerate retries posting generation for an existing movement with no
// usable postings (status none, missing or error with auto-posting on). A
// failed build is recorded as status error; the movement stays editable and
// the attempt can be retried after fixing configuration.
func (s *service) Regenerate(ctx context.Context, id uuid.UUID) (fx.Movement, error) {
	existing, err := s.repo.Movement(ctx, id)
	if err != nil {
		return fx.Movement{}, err
	}
	linked, err := s.repo.PostingsByIDs(ctx, existing.PostingIDs)
	if err != nil {
		return fx.Movement{}, err
	}
	if _, manual := splitPostings(existing.PostingIDs, linked); len(manual) > 0 {
		return fx.Movement{}, &errs.ManualLinkError{MovementID: id}
	}
	p, err := s.prepare(ctx, existing)
	if err != nil {
		return fx.Movement{}, err
	}
	p.m.AutoPost = true
	built, buildErr := s.build(ctx, p)
	if buildErr != nil {
		var cfgErr *errs.MissingAccountsError
		if !errors.As(buildErr, &cfgErr) {
			return fx.Movement{}, buildErr
		}
		p.m.Status = fx.StatusError
		p.m.PostingIDs = nil
		if err := s.writer.Apply(ctx, fx.WriteSet{PutMovements: []fx.Movement{p.m}}); err != nil {
			return fx.Movement{}, err
		}
		return p.m, buildErr
	}
	ws := fx.WriteSet{PutPostings: []fx.Posting{built}}
	for _, pid := range existing.PostingIDs {
		if _, ok := linked[pid]; ok {
			ws.DeletePostingIDs = append(ws.DeletePostingIDs, pid)
		}
	}
	p.m.PostingIDs = []uuid.UUID{built.ID}
	p.m.Status = fx.StatusGenerated
	ws.PutMovements = append(ws.PutMovements, p.m)
	if err := s.writer.Apply(ctx, ws); err != nil {
		return fx.Movement{}, err
	}
	return p.m, nil
}

// LinkPosting attaches an existing posting to a movement with no postings.
func (s *service) LinkPosting(ctx context.Context, movementID, postingID uuid.UUID) (fx.Movement, error) {
	m, err := s.repo.Movement(ctx, movementID)
	if err != nil {
		return fx.Movement{}, err
	}
	if len(m.PostingIDs) > 0 {
		return fx.Movement{}, fmt.Errorf("%w: movement already has postings", errs.ErrConflict)
	}
	p, err := s.repo.Posting(ctx, postingID)
	if err != nil {
		return fx.Movement{}, err
	}
	if p.MovementID != uuid.Nil {
		return fx.Movement{}, fmt.Errorf("%w: posting is already linked to a movement", errs.ErrConflict)
	}
	p.MovementID = m.ID
	m.PostingIDs = []uuid.UUID{p.ID}
	m.Status = fx.StatusLinked
	ws := fx.WriteSet{
		PutMovements: []fx.Movement{m},
		PutPostings:  []fx.Posting{p},
	}
	if err := s.writer.Apply(ctx, ws); err != nil {
		return fx.Movement{}, err
	}
	return m, nil
}

// MarkNonAccounting turns auto-posting off for a movement with zero linked
// postings and settles its status to none.
func (s *service) MarkNonAccounting(ctx context.Context, id uuid.UUID) (fx.Movement, error) {
	m, err := s.repo.Movement(ctx, id)
	if err != nil {
		return fx.Movement{}, err
	}
	if len(m.PostingIDs) > 0 {
		return fx.Movement{}, fmt.Errorf("%w: movement has linked postings", errs.ErrConflict)
	}
	m.AutoPost = false
	m.Status = fx.StatusNone
	if err := s.writer.Apply(ctx, fx.WriteSet{PutMovements: []fx.Movement{m}}); err != nil {
		return fx.Movement{}, err
	}
	return m, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (fx.Movement, error) {
	if id == uuid.Nil {
		return fx.Movement{}, errs.ErrInvalid
	}
	return s.repo.Movement(ctx, id)
}

func (s *service) List(ctx context.Context) ([]fx.Movement, error) {
	return s.repo.Movements(ctx)
}

func (s *service) ListByHolding(ctx context.Context, holdingID uuid.UUID) ([]fx.Movement, error) {
	if holdingID == uuid.Nil {
		return nil, errs.ErrInvalid
	}
	return s.repo.MovementsByHolding(ctx, holdingID)
}

// splitPostings partitions linked posting ids into machine-generated and
// manual ones; ids whose posting no longer exists are dropped.
func splitPostings(ids []uuid.UUID, postings map[uuid.UUID]fx.Posting) (machine, manual []uuid.UUID) {
	for _, id := range ids {
		p, ok := postings[id]
		if !ok {
			continue
		}
		if p.Generated {
			machine = append(machine, id)
		} else {
			manual = append(manual, id)
		}
	}
	return machine, manual
}

func isDebtKind(k fx.MovementKind) bool {
	return k == fx.KindDebtPayment || k == fx.KindDebtDraw
}
