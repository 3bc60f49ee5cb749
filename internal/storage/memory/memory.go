package memory

// Package memory provides a simple in-memory implementation used for
// development and tests. It keeps code paths easy to follow while allowing
// us to plug in a real DB later.

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/tinoosan/fxledger/internal/errs"
	"github.com/tinoosan/fxledger/internal/fx"
)

// Store is an in-memory implementation of the repositories and the
// unit-of-work writer used across the services. It is guarded by an RWMutex
// for concurrent reads/writes; Apply commits a whole write set under one
// lock so readers never observe a partial operation.
type Store struct {
	mu          sync.RWMutex
	movements   map[uuid.UUID]fx.Movement
	holdings    map[uuid.UUID]fx.Holding
	debts       map[uuid.UUID]fx.Debt
	postings    map[uuid.UUID]fx.Posting
	accounts    map[uuid.UUID]fx.Account
	roleMapping map[fx.Role]uuid.UUID
}

// New constructs an empty in-memory store.
func New() *Store {
	return &Store{
		movements:   make(map[uuid.UUID]fx.Movement),
		holdings:    make(map[uuid.UUID]fx.Holding),
		debts:       make(map[uuid.UUID]fx.Debt),
		postings:    make(map[uuid.UUID]fx.Posting),
		accounts:    make(map[uuid.UUID]fx.Account),
		roleMapping: make(map[fx.Role]uuid.UUID),
	}
}

// Seed helpers for local dev/tests.
func (s *Store) SeedAccount(a fx.Account) { s.mu.Lock(); s.accounts[a.ID] = a; s.mu.Unlock() }
func (s *Store) SeedHolding(h fx.Holding) { s.mu.Lock(); s.holdings[h.ID] = h; s.mu.Unlock() }
func (s *Store) SeedPosting(p fx.Posting) { s.mu.Lock(); s.postings[p.ID] = p; s.mu.Unlock() }

// SetRoleMapping replaces the user-configured role mapping.
func (s *Store) SetRoleMapping(m map[fx.Role]uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roleMapping = make(map[fx.Role]uuid.UUID, len(m))
	for k, v := range m {
		s.roleMapping[k] = v
	}
}

// Reset drops all data; used between tests.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.movements = map[uuid.UUID]fx.Movement{}
	s.holdings = map[uuid.UUID]fx.Holding{}
	s.debts = map[uuid.UUID]fx.Debt{}
	s.postings = map[uuid.UUID]fx.Posting{}
	s.accounts = map[uuid.UUID]fx.Account{}
	s.roleMapping = map[fx.Role]uuid.UUID{}
}

// Apply commits a write set atomically under the store lock.
func (s *Store) Apply(_ context.Context, ws fx.WriteSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range ws.PutHoldings {
		s.holdings[h.ID] = h
	}
	for _, id := range ws.DeleteHoldingIDs {
		delete(s.holdings, id)
	}
	for _, d := range ws.PutDebts {
		s.debts[d.ID] = d
	}
	for _, p := range ws.PutPostings {
		s.postings[p.ID] = p
	}
	for _, id := range ws.UnlinkPostingIDs {
		if p, ok := s.postings[id]; ok {
			p.MovementID = uuid.Nil
			s.postings[id] = p
		}
	}
	for _, id := range ws.DeletePostingIDs {
		delete(s.postings, id)
	}
	for _, m := range ws.PutMovements {
		s.movements[m.ID] = m
	}
	for _, id := range ws.DeleteMovementIDs {
		delete(s.movements, id)
	}
	return nil
}

// --- Movement reads ---

func (s *Store) Movement(_ context.Context, id uuid.UUID) (fx.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.movements[id]
	if !ok {
		return fx.Movement{}, errs.ErrNotFound
	}
	return m, nil
}

// Movements returns all movements sorted ascending by (date, id).
func (s *Store) Movements(_ context.Context) ([]fx.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]fx.Movement, 0, len(s.movements))
	for _, m := range s.movements {
		out = append(out, m)
	}
	sortMovements(out)
	return out, nil
}

// MovementsByHolding returns movements touching the holding as source or as
// transfer/draw target, sorted ascending by (date, id).
func (s *Store) MovementsByHolding(_ context.Context, holdingID uuid.UUID) ([]fx.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]fx.Movement, 0)
	for _, m := range s.movements {
		if m.HoldingID == holdingID || m.TargetHoldingID == holdingID {
			out = append(out, m)
		}
	}
	sortMovements(out)
	return out, nil
}

// --- Holding reads ---

func (s *Store) Holding(_ context.Context, id uuid.UUID) (fx.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.holdings[id]
	if !ok {
		return fx.Holding{}, errs.ErrNotFound
	}
	return h, nil
}

func (s *Store) Holdings(_ context.Context) ([]fx.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]fx.Holding, 0, len(s.holdings))
	for _, h := range s.holdings {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// --- Debt reads ---

func (s *Store) Debt(_ context.Context, id uuid.UUID) (fx.Debt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.debts[id]
	if !ok {
		return fx.Debt{}, errs.ErrNotFound
	}
	return d, nil
}

func (s *Store) Debts(_ context.Context) ([]fx.Debt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]fx.Debt, 0, len(s.debts))
	for _, d := range s.debts {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (s *Store) DebtByHolding(_ context.Context, holdingID uuid.UUID) (fx.Debt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.debts {
		if d.HoldingID == holdingID {
			return d, nil
		}
	}
	return fx.Debt{}, errs.ErrNotFound
}

// --- Posting reads ---

func (s *Store) Posting(_ context.Context, id uuid.UUID) (fx.Posting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.postings[id]
	if !ok {
		return fx.Posting{}, errs.ErrNotFound
	}
	return p, nil
}

func (s *Store) Postings(_ context.Context) ([]fx.Posting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]fx.Posting, 0, len(s.postings))
	for _, p := range s.postings {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

// PostingsByIDs returns the postings that still exist among ids; missing ids
// are simply absent from the result, which is how the reconciliation sweep
// detects dangling links.
func (s *Store) PostingsByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]fx.Posting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uuid.UUID]fx.Posting, len(ids))
	for _, id := range ids {
		if p, ok := s.postings[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

// --- Chart of accounts / role mapping reads ---

func (s *Store) Accounts(_ context.Context) ([]fx.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]fx.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *Store) RoleMapping(_ context.Context) (map[fx.Role]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[fx.Role]uuid.UUID, len(s.roleMapping))
	for k, v := range s.roleMapping {
		out[k] = v
	}
	return out, nil
}

func sortMovements(ms []fx.Movement) {
	sort.Slice(ms, func(i, j int) bool {
		if !ms[i].Date.Equal(ms[j].Date) {
			return ms[i].Date.Before(ms[j].Date)
		}
		return ms[i].ID.String() < ms[j].ID.String()
	})
}
