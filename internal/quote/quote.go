// Package quote exposes bid/ask exchange rates to the valuation layer. The
// engine only consumes rate values; fetching and caching live quotes belongs
// to an external collaborator, so the in-process implementation is a
// seedable table.
package quote

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tinoosan/fxledger/internal/errs"
	"github.com/tinoosan/fxledger/internal/fx"
)

// Source returns the quote for a currency under a valuation mode.
// Management mode may be backed by an alternate source.
type Source interface {
	Rate(currency string, mode fx.ValuationMode) (fx.Quote, error)
}

// Static is a thread-safe in-memory quote table, seeded from config or set
// at runtime.
type Static struct {
	mu     sync.RWMutex
	quotes map[fx.ValuationMode]map[string]fx.Quote
}

// NewStatic returns an empty quote table.
func NewStatic() *Static {
	return &Static{quotes: map[fx.ValuationMode]map[string]fx.Quote{
		fx.ModeAccounting: {},
		fx.ModeManagement: {},
	}}
}

// Set stores a quote for a currency under a mode.
func (s *Static) Set(mode fx.ValuationMode, q fx.Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quotes[mode] == nil {
		s.quotes[mode] = map[string]fx.Quote{}
	}
	s.quotes[mode][strings.ToUpper(q.Currency)] = q
}

// Rate implements Source. Management mode falls back to the accounting
// table when no alternate quote is loaded.
func (s *Static) Rate(currency string, mode fx.ValuationMode) (fx.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur := strings.ToUpper(currency)
	if q, ok := s.quotes[mode][cur]; ok {
		return q, nil
	}
	if mode == fx.ModeManagement {
		if q, ok := s.quotes[fx.ModeAccounting][cur]; ok {
			return q, nil
		}
	}
	return fx.Quote{}, fmt.Errorf("%w: no quote for %s", errs.ErrNotFound, cur)
}
