// Package recon implements the reconciliation sweep and the outstanding-item
// queries. The sweep is the only self-healing path in the engine: it
// downgrades movement statuses when linked postings disappear, but never
// deletes or fabricates data, and running it twice without intervening
// writes changes nothing.
package recon

import (
	"context"

	"github.com/google/uuid"

	"github.com/tinoosan/fxledger/internal/fx"
)

// Repo defines read operations needed by the sweep and queries.
type Repo interface {
	Movements(ctx context.Context) ([]fx.Movement, error)
	Holdings(ctx context.Context) ([]fx.Holding, error)
	PostingsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]fx.Posting, error)
	Postings(ctx context.Context) ([]fx.Posting, error)
}

// Writer applies a unit of work atomically.
type Writer interface {
	Apply(ctx context.Context, ws fx.WriteSet) error
}

// SweepResult reports what one sweep pass changed.
type SweepResult struct {
	Checked int `json:"checked"`
	Updated int `json:"updated"`
	// WentMissing counts movements whose every linked posting disappeared.
	WentMissing int `json:"went_missing"`
}

// Items lists the records that need user attention: movements that expect a
// posting but have none, and postings touching a holding's linked account
// that no movement claims.
type Items struct {
	Movements        []fx.Movement `json:"movements"`
	UnlinkedPostings []fx.Posting  `json:"unlinked_postings"`
}

// Service exposes the reconciliation sweep and item queries.
type Service interface {
	Sweep(ctx context.Context) (SweepResult, error)
	Items(ctx context.Context) (Items, error)
}

type service struct {
	repo   Repo
	writer Writer
}

// New constructs the reconciliation service.
func New(repo Repo, writer Writer) Service { return &service{repo: repo, writer: writer} }

// Sweep walks every movement with linked posting ids, drops ids whose
// posting no longer exists, and recomputes the status: missing when none
// remain, linked when any survivor lacks the machine-generated marker,
// generated otherwise.
func (s *service) Sweep(ctx context.Context) (SweepResult, error) {
	movements, err := s.repo.Movements(ctx)
	if err != nil {
		return SweepResult{}, err
	}
	var res SweepResult
	ws := fx.WriteSet{}
	for _, m := range movements {
		if len(m.PostingIDs) == 0 {
			continue
		}
		res.Checked++
		linked, err := s.repo.PostingsByIDs(ctx, m.PostingIDs)
		if err != nil {
			return SweepResult{}, err
		}
		kept := make([]uuid.UUID, 0, len(m.PostingIDs))
		anyManual := false
		for _, id := range m.PostingIDs {
			p, ok := linked[id]
			if !ok {
				continue
			}
			kept = append(kept, id)
			if !p.Generated {
				anyManual = true
			}
		}
		status := m.Status
		switch {
		case len(kept) == 0:
			status = fx.StatusMissing
		case anyManual:
			// Manual edits flagged desync stay desync until resolved.
			if m.Status != fx.StatusDesync {
				status = fx.StatusLinked
			}
		default:
			status = fx.StatusGenerated
		}
		if status == m.Status && len(kept) == len(m.PostingIDs) {
			continue
		}
		if len(kept) == 0 {
			res.WentMissing++
		}
		m.PostingIDs = kept
		m.Status = status
		ws.PutMovements = append(ws.PutMovements, m)
		res.Updated++
	}
	if ws.Empty() {
		return res, nil
	}
	if err := s.writer.Apply(ctx, ws); err != nil {
		return SweepResult{}, err
	}
	return res, nil
}

// Items returns the outstanding reconciliation work.
func (s *service) Items(ctx context.Context) (Items, error) {
	movements, err := s.repo.Movements(ctx)
	if err != nil {
		return Items{}, err
	}
	out := Items{Movements: []fx.Movement{}, UnlinkedPostings: []fx.Posting{}}
	for _, m := range movements {
		switch {
		case m.Status == fx.StatusMissing || m.Status == fx.StatusError:
			out.Movements = append(out.Movements, m)
		case m.AutoPost && len(m.PostingIDs) == 0:
			out.Movements = append(out.Movements, m)
		}
	}

	holdings, err := s.repo.Holdings(ctx)
	if err != nil {
		return Items{}, err
	}
	holdingAccounts := make(map[uuid.UUID]struct{}, len(holdings))
	for _, h := range holdings {
		if h.AccountID != uuid.Nil {
			holdingAccounts[h.AccountID] = struct{}{}
		}
	}
	postings, err := s.repo.Postings(ctx)
	if err != nil {
		return Items{}, err
	}
	for _, p := range postings {
		if p.MovementID != uuid.Nil {
			continue
		}
		for _, ln := range p.Lines {
			if _, ok := holdingAccounts[ln.AccountID]; ok {
				out.UnlinkedPostings = append(out.UnlinkedPostings, p)
				break
			}
		}
	}
	return out, nil
}
