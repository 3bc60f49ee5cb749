package httpapi

import (
	"errors"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tinoosan/fxledger/internal/errs"
)

// errorResponse is the standard error payload for the API. Structured
// errors carry extra fields so clients can act without parsing messages.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	// Roles is set on missing_accounts errors: one entry per unresolved role.
	Roles []errs.MissingRole `json:"roles,omitempty"`
	// Shortfall is set on insufficient_balance errors.
	Shortfall string `json:"shortfall,omitempty"`
	// MovementID is set on manual_link_conflict errors.
	MovementID string `json:"movement_id,omitempty"`
}

func writeErr(w http.ResponseWriter, status int, msg, code string) {
	toJSON(w, status, errorResponse{Error: msg, Code: code})
}

func badRequest(w http.ResponseWriter, msg string) { writeErr(w, http.StatusBadRequest, msg, "") }
func notFound(w http.ResponseWriter)               { writeErr(w, http.StatusNotFound, "not_found", "not_found") }

// serviceError maps domain errors onto HTTP statuses and payloads.
// Unrecognized errors become 500 without leaking internals.
func (s *Server) serviceError(w http.ResponseWriter, err error) {
	var missing *errs.MissingAccountsError
	if errors.As(err, &missing) {
		toJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error: missing.Error(),
			Code:  "missing_accounts",
			Roles: missing.Missing,
		})
		return
	}
	var insufficient *errs.InsufficientBalanceError
	if errors.As(err, &insufficient) {
		toJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:     insufficient.Error(),
			Code:      "insufficient_balance",
			Shortfall: insufficient.Shortfall().String(),
		})
		return
	}
	var manual *errs.ManualLinkError
	if errors.As(err, &manual) {
		toJSON(w, http.StatusConflict, errorResponse{
			Error:      manual.Error(),
			Code:       "manual_link_conflict",
			MovementID: manual.MovementID.String(),
		})
		return
	}
	var imbalance *errs.ImbalanceError
	if errors.As(err, &imbalance) {
		s.log.Error("posting imbalance", "err", err)
		writeErr(w, http.StatusInternalServerError, imbalance.Error(), "imbalance")
		return
	}
	switch {
	case errors.Is(err, errs.ErrNotFound):
		notFound(w)
	case errors.Is(err, errs.ErrInvalid):
		writeErr(w, http.StatusBadRequest, err.Error(), "invalid")
	case errors.Is(err, errs.ErrConflict):
		writeErr(w, http.StatusConflict, err.Error(), "conflict")
	case errors.Is(err, errs.ErrImmutable):
		writeErr(w, http.StatusConflict, err.Error(), "immutable")
	case errors.Is(err, errs.ErrUnprocessable):
		writeErr(w, http.StatusUnprocessableEntity, err.Error(), "unprocessable")
	default:
		s.log.Error("internal error", "err", err)
		writeErr(w, http.StatusInternalServerError, "internal error", "")
	}
}

// pathID parses the {id} route parameter.
func pathID(r *http.Request, param string) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, param))
}
