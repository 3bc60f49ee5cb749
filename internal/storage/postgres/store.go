package postgres

// Package postgres provides a pgx-backed storage implementation that
// satisfies the repository and writer interfaces used by the services.
//
// It is intentionally small and explicit. Migrations that create the
// expected schema live under db/migrations. Decimal quantities and rates are
// stored as text to round-trip exactly; posting line amounts are stored in
// minor units.

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/govalues/money"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tinoosan/fxledger/internal/errs"
	"github.com/tinoosan/fxledger/internal/fx"
)

// Store holds a pgx connection pool and implements the read/write
// interfaces used across the service layer. All methods are safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// Open establishes a pgx pool using the provided connection string.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ready pings the pool to verify connectivity.
func (s *Store) Ready(ctx context.Context) error { return s.pool.Ping(ctx) }

// Apply commits a write set in one transaction.
func (s *Store) Apply(ctx context.Context, ws fx.WriteSet) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, h := range ws.PutHoldings {
		if err := putHolding(ctx, tx, h); err != nil {
			return err
		}
	}
	for _, id := range ws.DeleteHoldingIDs {
		if _, err := tx.Exec(ctx, `delete from holdings where id = $1`, id); err != nil {
			return err
		}
	}
	for _, d := range ws.PutDebts {
		if err := putDebt(ctx, tx, d); err != nil {
			return err
		}
	}
	for _, p := range ws.PutPostings {
		if err := putPosting(ctx, tx, p); err != nil {
			return err
		}
	}
	for _, id := range ws.UnlinkPostingIDs {
		if _, err := tx.Exec(ctx, `update postings set movement_id = null where id = $1`, id); err != nil {
			return err
		}
	}
	for _, id := range ws.DeletePostingIDs {
		if _, err := tx.Exec(ctx, `delete from posting_lines where posting_id = $1`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `delete from postings where id = $1`, id); err != nil {
			return err
		}
	}
	for _, m := range ws.PutMovements {
		if err := putMovement(ctx, tx, m); err != nil {
			return err
		}
	}
	for _, id := range ws.DeleteMovementIDs {
		if _, err := tx.Exec(ctx, `delete from movement_posting_links where movement_id = $1`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `delete from movements where id = $1`, id); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// --- Holding ---

func putHolding(ctx context.Context, tx pgx.Tx, h fx.Holding) error {
	_, err := tx.Exec(ctx, `
        insert into holdings (id, name, currency, type, account_id, opening_quantity, opening_rate, opening_date)
        values ($1,$2,$3,$4,$5,$6,$7,$8)
        on conflict (id) do update set
            name=excluded.name, currency=excluded.currency, type=excluded.type,
            account_id=excluded.account_id, opening_quantity=excluded.opening_quantity,
            opening_rate=excluded.opening_rate, opening_date=excluded.opening_date
    `, h.ID, h.Name, h.Currency, h.Type, nullUUID(h.AccountID), h.OpeningQuantity.String(), h.OpeningRate.String(), h.OpeningDate)
	return err
}

func (s *Store) Holding(ctx context.Context, id uuid.UUID) (fx.Holding, error) {
	row := s.pool.QueryRow(ctx, `
        select id, name, currency, type, account_id, opening_quantity, opening_rate, opening_date
        from holdings where id = $1
    `, id)
	h, err := scanHolding(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return fx.Holding{}, errs.ErrNotFound
	}
	return h, err
}

func (s *Store) Holdings(ctx context.Context) ([]fx.Holding, error) {
	rows, err := s.pool.Query(ctx, `
        select id, name, currency, type, account_id, opening_quantity, opening_rate, opening_date
        from holdings order by name
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]fx.Holding, 0)
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func scanHolding(row pgx.Row) (fx.Holding, error) {
	var h fx.Holding
	var accountID *uuid.UUID
	var qty, rate string
	if err := row.Scan(&h.ID, &h.Name, &h.Currency, &h.Type, &accountID, &qty, &rate, &h.OpeningDate); err != nil {
		return fx.Holding{}, err
	}
	if accountID != nil {
		h.AccountID = *accountID
	}
	var err error
	if h.OpeningQuantity, err = decimal.NewFromString(qty); err != nil {
		return fx.Holding{}, fmt.Errorf("holding %s: bad opening quantity: %w", h.ID, err)
	}
	if h.OpeningRate, err = decimal.NewFromString(rate); err != nil {
		return fx.Holding{}, fmt.Errorf("holding %s: bad opening rate: %w", h.ID, err)
	}
	return h, nil
}

// --- Debt ---

func putDebt(ctx context.Context, tx pgx.Tx, d fx.Debt) error {
	if _, err := tx.Exec(ctx, `
        insert into debts (id, holding_id, currency, principal, annual_rate, system, installments, frequency, first_due, outstanding)
        values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        on conflict (id) do update set
            holding_id=excluded.holding_id, currency=excluded.currency, principal=excluded.principal,
            annual_rate=excluded.annual_rate, system=excluded.system, installments=excluded.installments,
            frequency=excluded.frequency, first_due=excluded.first_due, outstanding=excluded.outstanding
    `, d.ID, d.HoldingID, d.Currency, d.Principal.String(), d.AnnualRate.String(), d.System, d.Installments, d.Frequency, d.FirstDue, d.Outstanding.String()); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `delete from debt_installments where debt_id = $1`, d.ID); err != nil {
		return err
	}
	for _, ins := range d.Schedule {
		if _, err := tx.Exec(ctx, `
            insert into debt_installments (debt_id, number, due_date, principal, interest, paid, movement_id, paid_rate)
            values ($1,$2,$3,$4,$5,$6,$7,$8)
        `, d.ID, ins.Number, ins.DueDate, ins.Principal.String(), ins.Interest.String(), ins.Paid, nullUUID(ins.MovementID), ins.PaidRate.String()); err != nil {
			return fmt.Errorf("insert installment: %w", err)
		}
	}
	return nil
}

func (s *Store) Debt(ctx context.Context, id uuid.UUID) (fx.Debt, error) {
	row := s.pool.QueryRow(ctx, `
        select id, holding_id, currency, principal, annual_rate, system, installments, frequency, first_due, outstanding
        from debts where id = $1
    `, id)
	d, err := scanDebt(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return fx.Debt{}, errs.ErrNotFound
	}
	if err != nil {
		return fx.Debt{}, err
	}
	if d.Schedule, err = s.schedule(ctx, d.ID); err != nil {
		return fx.Debt{}, err
	}
	return d, nil
}

func (s *Store) Debts(ctx context.Context) ([]fx.Debt, error) {
	rows, err := s.pool.Query(ctx, `
        select id, holding_id, currency, principal, annual_rate, system, installments, frequency, first_due, outstanding
        from debts order by first_due, id
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]fx.Debt, 0)
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Schedule, err = s.schedule(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) DebtByHolding(ctx context.Context, holdingID uuid.UUID) (fx.Debt, error) {
	row := s.pool.QueryRow(ctx, `
        select id, holding_id, currency, principal, annual_rate, system, installments, frequency, first_due, outstanding
        from debts where holding_id = $1
    `, holdingID)
	d, err := scanDebt(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return fx.Debt{}, errs.ErrNotFound
	}
	if err != nil {
		return fx.Debt{}, err
	}
	if d.Schedule, err = s.schedule(ctx, d.ID); err != nil {
		return fx.Debt{}, err
	}
	return d, nil
}

func scanDebt(row pgx.Row) (fx.Debt, error) {
	var d fx.Debt
	var principal, rate, outstanding string
	if err := row.Scan(&d.ID, &d.HoldingID, &d.Currency, &principal, &rate, &d.System, &d.Installments, &d.Frequency, &d.FirstDue, &outstanding); err != nil {
		return fx.Debt{}, err
	}
	var err error
	if d.Principal, err = decimal.NewFromString(principal); err != nil {
		return fx.Debt{}, err
	}
	if d.AnnualRate, err = decimal.NewFromString(rate); err != nil {
		return fx.Debt{}, err
	}
	if d.Outstanding, err = decimal.NewFromString(outstanding); err != nil {
		return fx.Debt{}, err
	}
	return d, nil
}

func (s *Store) schedule(ctx context.Context, debtID uuid.UUID) ([]fx.Installment, error) {
	rows, err := s.pool.Query(ctx, `
        select number, due_date, principal, interest, paid, movement_id, paid_rate
        from debt_installments where debt_id = $1 order by number
    `, debtID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]fx.Installment, 0)
	for rows.Next() {
		var ins fx.Installment
		var principal, interest, paidRate string
		var movementID *uuid.UUID
		if err := rows.Scan(&ins.Number, &ins.DueDate, &principal, &interest, &ins.Paid, &movementID, &paidRate); err != nil {
			return nil, err
		}
		if movementID != nil {
			ins.MovementID = *movementID
		}
		if ins.Principal, err = decimal.NewFromString(principal); err != nil {
			return nil, err
		}
		if ins.Interest, err = decimal.NewFromString(interest); err != nil {
			return nil, err
		}
		if ins.PaidRate, err = decimal.NewFromString(paidRate); err != nil {
			return nil, err
		}
		out = append(out, ins)
	}
	return out, rows.Err()
}

// --- Movement ---

func putMovement(ctx context.Context, tx pgx.Tx, m fx.Movement) error {
	if _, err := tx.Exec(ctx, `
        insert into movements (id, date, kind, currency, holding_id, target_holding_id, quantity, rate, rate_side,
                               gross, increase, counterpart_id, commission, commission_id, realized_cost, realized_gain,
                               principal, interest, memo, status, auto_post)
        values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
        on conflict (id) do update set
            date=excluded.date, kind=excluded.kind, currency=excluded.currency, holding_id=excluded.holding_id,
            target_holding_id=excluded.target_holding_id, quantity=excluded.quantity, rate=excluded.rate,
            rate_side=excluded.rate_side, gross=excluded.gross, increase=excluded.increase,
            counterpart_id=excluded.counterpart_id, commission=excluded.commission, commission_id=excluded.commission_id,
            realized_cost=excluded.realized_cost, realized_gain=excluded.realized_gain,
            principal=excluded.principal, interest=excluded.interest, memo=excluded.memo,
            status=excluded.status, auto_post=excluded.auto_post
    `, m.ID, m.Date, m.Kind, m.Currency, m.HoldingID, nullUUID(m.TargetHoldingID),
		m.Quantity.String(), m.Rate.String(), m.RateSide, m.Gross.String(), m.Increase,
		nullUUID(m.CounterpartID), m.Commission.String(), nullUUID(m.CommissionID),
		m.RealizedCost.String(), m.RealizedGain.String(), m.Principal.String(), m.Interest.String(),
		m.Memo, m.Status, m.AutoPost); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `delete from movement_posting_links where movement_id = $1`, m.ID); err != nil {
		return err
	}
	for _, pid := range m.PostingIDs {
		if _, err := tx.Exec(ctx, `
            insert into movement_posting_links (movement_id, posting_id) values ($1,$2)
        `, m.ID, pid); err != nil {
			return fmt.Errorf("insert posting link: %w", err)
		}
	}
	return nil
}

const movementCols = `id, date, kind, currency, holding_id, target_holding_id, quantity, rate, rate_side,
       gross, increase, counterpart_id, commission, commission_id, realized_cost, realized_gain,
       principal, interest, memo, status, auto_post`

func (s *Store) Movement(ctx context.Context, id uuid.UUID) (fx.Movement, error) {
	row := s.pool.QueryRow(ctx, `select `+movementCols+` from movements where id = $1`, id)
	m, err := scanMovement(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return fx.Movement{}, errs.ErrNotFound
	}
	if err != nil {
		return fx.Movement{}, err
	}
	if m.PostingIDs, err = s.postingLinks(ctx, m.ID); err != nil {
		return fx.Movement{}, err
	}
	return m, nil
}

func (s *Store) Movements(ctx context.Context) ([]fx.Movement, error) {
	return s.queryMovements(ctx, `select `+movementCols+` from movements order by date asc, id asc`)
}

func (s *Store) MovementsByHolding(ctx context.Context, holdingID uuid.UUID) ([]fx.Movement, error) {
	return s.queryMovements(ctx, `
        select `+movementCols+` from movements
        where holding_id = $1 or target_holding_id = $1
        order by date asc, id asc
    `, holdingID)
}

func (s *Store) queryMovements(ctx context.Context, sql string, args ...any) ([]fx.Movement, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]fx.Movement, 0)
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].PostingIDs, err = s.postingLinks(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func scanMovement(row pgx.Row) (fx.Movement, error) {
	var m fx.Movement
	var target, counterpart, commission *uuid.UUID
	var qty, rate, gross, comm, rcost, rgain, principal, interest string
	if err := row.Scan(&m.ID, &m.Date, &m.Kind, &m.Currency, &m.HoldingID, &target, &qty, &rate, &m.RateSide,
		&gross, &m.Increase, &counterpart, &comm, &commission, &rcost, &rgain,
		&principal, &interest, &m.Memo, &m.Status, &m.AutoPost); err != nil {
		return fx.Movement{}, err
	}
	if target != nil {
		m.TargetHoldingID = *target
	}
	if counterpart != nil {
		m.CounterpartID = *counterpart
	}
	if commission != nil {
		m.CommissionID = *commission
	}
	fields := []struct {
		dst *decimal.Decimal
		src string
	}{
		{&m.Quantity, qty}, {&m.Rate, rate}, {&m.Gross, gross}, {&m.Commission, comm},
		{&m.RealizedCost, rcost}, {&m.RealizedGain, rgain}, {&m.Principal, principal}, {&m.Interest, interest},
	}
	for _, f := range fields {
		d, err := decimal.NewFromString(f.src)
		if err != nil {
			return fx.Movement{}, fmt.Errorf("movement %s: bad decimal %q: %w", m.ID, f.src, err)
		}
		*f.dst = d
	}
	return m, nil
}

func (s *Store) postingLinks(ctx context.Context, movementID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `
        select posting_id from movement_posting_links where movement_id = $1 order by posting_id
    `, movementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// --- Posting ---

func putPosting(ctx context.Context, tx pgx.Tx, p fx.Posting) error {
	if _, err := tx.Exec(ctx, `
        insert into postings (id, date, memo, movement_id, generated)
        values ($1,$2,$3,$4,$5)
        on conflict (id) do update set
            date=excluded.date, memo=excluded.memo, movement_id=excluded.movement_id, generated=excluded.generated
    `, p.ID, p.Date, p.Memo, nullUUID(p.MovementID), p.Generated); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `delete from posting_lines where posting_id = $1`, p.ID); err != nil {
		return err
	}
	for _, ln := range p.Lines {
		minor, _ := ln.Amount.MinorUnits()
		if _, err := tx.Exec(ctx, `
            insert into posting_lines (id, posting_id, account_id, side, currency, amount_minor)
            values ($1,$2,$3,$4,$5,$6)
        `, ln.ID, p.ID, ln.AccountID, ln.Side, ln.Amount.Curr().Code(), minor); err != nil {
			return fmt.Errorf("insert line: %w", err)
		}
	}
	return nil
}

func (s *Store) Posting(ctx context.Context, id uuid.UUID) (fx.Posting, error) {
	var p fx.Posting
	var movementID *uuid.UUID
	err := s.pool.QueryRow(ctx, `
        select id, date, memo, movement_id, generated from postings where id = $1
    `, id).Scan(&p.ID, &p.Date, &p.Memo, &movementID, &p.Generated)
	if errors.Is(err, pgx.ErrNoRows) {
		return fx.Posting{}, errs.ErrNotFound
	}
	if err != nil {
		return fx.Posting{}, err
	}
	if movementID != nil {
		p.MovementID = *movementID
	}
	if p.Lines, err = s.lines(ctx, p.ID); err != nil {
		return fx.Posting{}, err
	}
	return p, nil
}

func (s *Store) Postings(ctx context.Context) ([]fx.Posting, error) {
	rows, err := s.pool.Query(ctx, `
        select id, date, memo, movement_id, generated from postings order by date asc, id asc
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]fx.Posting, 0)
	for rows.Next() {
		var p fx.Posting
		var movementID *uuid.UUID
		if err := rows.Scan(&p.ID, &p.Date, &p.Memo, &movementID, &p.Generated); err != nil {
			return nil, err
		}
		if movementID != nil {
			p.MovementID = *movementID
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Lines, err = s.lines(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) PostingsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]fx.Posting, error) {
	out := make(map[uuid.UUID]fx.Posting, len(ids))
	for _, id := range ids {
		p, err := s.Posting(ctx, id)
		if errors.Is(err, errs.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[id] = p
	}
	return out, nil
}

func (s *Store) lines(ctx context.Context, postingID uuid.UUID) ([]fx.PostingLine, error) {
	rows, err := s.pool.Query(ctx, `
        select id, posting_id, account_id, side, currency, amount_minor
        from posting_lines where posting_id = $1 order by id
    `, postingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]fx.PostingLine, 0)
	for rows.Next() {
		var ln fx.PostingLine
		var currency string
		var minor int64
		if err := rows.Scan(&ln.ID, &ln.PostingID, &ln.AccountID, &ln.Side, &currency, &minor); err != nil {
			return nil, err
		}
		amt, err := money.NewAmountFromMinorUnits(currency, minor)
		if err != nil {
			return nil, err
		}
		ln.Amount = amt
		out = append(out, ln)
	}
	return out, rows.Err()
}

// --- Chart of accounts / role mapping ---

// IngestAccount upserts a chart-of-accounts row received from the
// bookkeeping collaborator.
func (s *Store) IngestAccount(ctx context.Context, a fx.Account) error {
	_, err := s.pool.Exec(ctx, `
        insert into accounts (id, code, name, header)
        values ($1,$2,$3,$4)
        on conflict (id) do update set code=excluded.code, name=excluded.name, header=excluded.header
    `, a.ID, a.Code, a.Name, a.Header)
	return err
}

func (s *Store) Accounts(ctx context.Context) ([]fx.Account, error) {
	rows, err := s.pool.Query(ctx, `select id, code, name, header from accounts order by code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]fx.Account, 0)
	for rows.Next() {
		var a fx.Account
		if err := rows.Scan(&a.ID, &a.Code, &a.Name, &a.Header); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SetRoleMapping replaces the user-configured role mapping.
func (s *Store) SetRoleMapping(ctx context.Context, m map[fx.Role]uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if _, err := tx.Exec(ctx, `delete from role_mappings`); err != nil {
		return err
	}
	for role, id := range m {
		if _, err := tx.Exec(ctx, `insert into role_mappings (role, account_id) values ($1,$2)`, role, id); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) RoleMapping(ctx context.Context) (map[fx.Role]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `select role, account_id from role_mappings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[fx.Role]uuid.UUID)
	for rows.Next() {
		var role fx.Role
		var id uuid.UUID
		if err := rows.Scan(&role, &id); err != nil {
			return nil, err
		}
		out[role] = id
	}
	return out, rows.Err()
}

func nullUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
