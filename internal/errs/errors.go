package errs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Common sentinel errors for cross-layer signaling.
var (
	ErrNotFound = errors.New("not_found")
	ErrConflict = errors.New("conflict")
	ErrInvalid  = errors.New("invalid")
	// ErrUnprocessable is used for semantic validation failures (HTTP 422)
	ErrUnprocessable = errors.New("unprocessable")
	// ErrImmutable indicates an attempt to change immutable movement fields
	ErrImmutable = errors.New("immutable")
)

// MissingRole names one unresolved account role together with the ledger
// code the resolver would have fallen back to, so the user can fix the
// mapping without inspecting internals.
type MissingRole struct {
	Role         string `json:"role"`
	FallbackCode string `json:"fallback_code,omitempty"`
}

// MissingAccountsError aggregates every account role that could not be
// resolved for a posting. The operation is aborted with no partial write.
type MissingAccountsError struct {
	Missing []MissingRole
}

func (e *MissingAccountsError) Error() string {
	roles := make([]string, 0, len(e.Missing))
	for _, m := range e.Missing {
		roles = append(roles, m.Role)
	}
	return "accounts not configured for roles: " + strings.Join(roles, ", ")
}

// InsufficientBalanceError is returned when a disposal or debt payment
// requests more quantity than is currently available.
type InsufficientBalanceError struct {
	HoldingID uuid.UUID
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance on holding %s: requested %s, available %s",
		e.HoldingID, e.Requested, e.Available)
}

// Shortfall returns the amount by which the request exceeds availability.
func (e *InsufficientBalanceError) Shortfall() decimal.Decimal {
	return e.Requested.Sub(e.Available)
}

// ImbalanceError means a built posting's debits did not equal its credits.
// It is unreachable from the fixed line patterns and indicates an internal
// defect; the posting is never persisted.
type ImbalanceError struct {
	Debits  int64
	Credits int64
}

func (e *ImbalanceError) Error() string {
	return fmt.Sprintf("posting does not balance: debits %d, credits %d (minor units)", e.Debits, e.Credits)
}

// ManualLinkError means an edit or delete targeted a movement with a
// manually linked posting and the caller did not say how to proceed.
type ManualLinkError struct {
	MovementID uuid.UUID
}

func (e *ManualLinkError) Error() string {
	return fmt.Sprintf("movement %s has manually linked postings: choose keep or regenerate", e.MovementID)
}
