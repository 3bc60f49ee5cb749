// Package resolver maps semantic account roles to concrete ledger accounts.
//
// Resolution walks an explicit-choice -> configured-mapping -> fallback-code
// -> name-heuristic chain and reports misses as a typed not-found result so
// callers can aggregate every missing role into one configuration error.
package resolver

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/tinoosan/fxledger/internal/fx"
)

// fallbackCodes are the hard-coded ledger codes tried when no explicit
// account and no configured mapping exist for a role.
var fallbackCodes = map[fx.Role]string{
	fx.RoleCounterpart: "1.1.01",
	fx.RoleCommission:  "5.1.31",
	fx.RoleFXResult:    "5.3.01",
	fx.RoleInterest:    "5.1.21",
}

// roleNames lists plausible account names per role, matched as a
// case/diacritic-insensitive substring as the last resort.
var roleNames = map[fx.Role][]string{
	fx.RoleCounterpart: {"caja", "cash", "banco", "bank"},
	fx.RoleCommission:  {"comision", "commission", "gastos bancarios", "bank charges", "fees"},
	fx.RoleFXResult:    {"diferencia de cambio", "exchange difference", "fx result", "resultado por tenencia"},
	fx.RoleInterest:    {"intereses", "interest"},
}

// FallbackCode returns the hard-coded ledger code for a role, used both by
// the chain and by error reporting.
func FallbackCode(role fx.Role) string {
	return fallbackCodes[role]
}

// Resolver resolves roles against a chart-of-accounts snapshot and the
// user-configured role mapping.
type Resolver struct {
	byID    map[uuid.UUID]fx.Account
	byCode  map[string]fx.Account
	folded  []foldedAccount
	mapping map[fx.Role]uuid.UUID
}

type foldedAccount struct {
	name string
	acc  fx.Account
}

// New builds a resolver over the given accounts. mapping may be nil.
func New(accounts []fx.Account, mapping map[fx.Role]uuid.UUID) *Resolver {
	r := &Resolver{
		byID:    make(map[uuid.UUID]fx.Account, len(accounts)),
		byCode:  make(map[string]fx.Account, len(accounts)),
		mapping: mapping,
	}
	for _, a := range accounts {
		r.byID[a.ID] = a
		if a.Code != "" {
			r.byCode[a.Code] = a
		}
		if !a.Header {
			r.folded = append(r.folded, foldedAccount{name: Fold(a.Name), acc: a})
		}
	}
	return r
}

// Account looks up an account by id, requiring it to exist and be postable.
func (r *Resolver) Account(id uuid.UUID) (fx.Account, bool) {
	a, ok := r.byID[id]
	if !ok || a.Header {
		return fx.Account{}, false
	}
	return a, true
}

// Resolve returns the account for a role, trying in order: the explicit id,
// the configured mapping, the fallback ledger code, and finally a folded
// substring match against plausible account names. The boolean result is
// false when all four steps miss; callers collect those misses instead of
// treating them as exceptions.
func (r *Resolver) Resolve(role fx.Role, explicitID uuid.UUID) (fx.Account, bool) {
	if explicitID != uuid.Nil {
		if a, ok := r.Account(explicitID); ok {
			return a, true
		}
	}
	if id, ok := r.mapping[role]; ok {
		if a, ok := r.Account(id); ok {
			return a, true
		}
	}
	if code := fallbackCodes[role]; code != "" {
		if a, ok := r.byCode[code]; ok && !a.Header {
			return a, true
		}
	}
	for _, want := range roleNames[role] {
		folded := Fold(want)
		for _, fa := range r.folded {
			if strings.Contains(fa.name, folded) {
				return fa.acc, true
			}
		}
	}
	return fx.Account{}, false
}

var foldChain = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold lowercases s and strips diacritics so "Comisión" matches "comision".
func Fold(s string) string {
	out, _, err := transform.String(foldChain, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}
