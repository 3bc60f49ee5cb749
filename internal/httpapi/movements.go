package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/tinoosan/fxledger/internal/service/movement"
)

type ctxKey string

const (
	ctxKeyPostMovement  ctxKey = "validatedPostMovement"
	ctxKeyPatchMovement ctxKey = "validatedPatchMovement"
)

// validateMovement decodes and shape-checks a movement payload and stores it
// in the request context under the given key. Domain validation happens in
// the service; this middleware only rejects malformed requests early.
func (s *Server) validateMovement(key ctxKey) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !requireJSON(w, r) {
				return
			}
			var req movementRequest
			dec := json.NewDecoder(r.Body)
			dec.DisallowUnknownFields()
			if err := dec.Decode(&req); err != nil {
				badRequest(w, "invalid JSON: "+err.Error())
				return
			}
			if !req.Kind.Valid() {
				badRequest(w, "kind must be one of buy, sell, inflow, outflow, transfer, adjustment, debt_payment, debt_draw")
				return
			}
			if req.HoldingID == uuid.Nil {
				badRequest(w, "holding_id is required")
				return
			}
			ctx := context.WithValue(r.Context(), key, req)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (s *Server) postMovement(w http.ResponseWriter, r *http.Request) {
	req := r.Context().Value(ctxKeyPostMovement).(movementRequest)
	saved, err := s.movements.Create(r.Context(), req.toMovement(), req.autoPost())
	if err != nil {
		s.serviceError(w, err)
		return
	}
	if len(saved.PostingIDs) > 0 {
		postingsBuilt.WithLabelValues(string(saved.Kind)).Inc()
	}
	toJSON(w, http.StatusCreated, toMovementResponse(saved))
}

// previewMovement builds the posting a movement would generate without
// persisting anything.
func (s *Server) previewMovement(w http.ResponseWriter, r *http.Request) {
	req := r.Context().Value(ctxKeyPostMovement).(movementRequest)
	p, err := s.movements.Preview(r.Context(), req.toMovement())
	if err != nil {
		s.serviceError(w, err)
		return
	}
	toJSON(w, http.StatusOK, toPostingResponse(p))
}

func (s *Server) listMovements(w http.ResponseWriter, r *http.Request) {
	ms, err := s.movements.List(r.Context())
	if err != nil {
		s.serviceError(w, err)
		return
	}
	toJSON(w, http.StatusOK, toMovementResponses(ms))
}

func (s *Server) getMovement(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, "invalid movement id")
		return
	}
	m, err := s.movements.Get(r.Context(), id)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	toJSON(w, http.StatusOK, toMovementResponse(m))
}

func (s *Server) patchMovement(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, "invalid movement id")
		return
	}
	decision := movement.ManualDecision(r.URL.Query().Get("decision"))
	switch decision {
	case movement.DecisionNone, movement.DecisionKeep, movement.DecisionRegenerate:
	default:
		badRequest(w, "decision must be keep or regenerate")
		return
	}
	req := r.Context().Value(ctxKeyPatchMovement).(movementRequest)
	m := req.toMovement()
	m.ID = id
	saved, err := s.movements.Update(r.Context(), m, decision)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	toJSON(w, http.StatusOK, toMovementResponse(saved))
}

func (s *Server) deleteMovement(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, "invalid movement id")
		return
	}
	keep := r.URL.Query().Get("keep_postings") == "true"
	if err := s.movements.Delete(r.Context(), id, keep); err != nil {
		s.serviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// regenerateMovement rebuilds a movement's machine postings, for example
// after a missing account role has been configured.
func (s *Server) regenerateMovement(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, "invalid movement id")
		return
	}
	m, err := s.movements.Regenerate(r.Context(), id)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	toJSON(w, http.StatusOK, toMovementResponse(m))
}

type linkRequest struct {
	PostingID uuid.UUID `json:"posting_id"`
}

// linkMovement attaches an existing unclaimed posting to a movement.
func (s *Server) linkMovement(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, "invalid movement id")
		return
	}
	if !requireJSON(w, r) {
		return
	}
	var req linkRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return
	}
	if req.PostingID == uuid.Nil {
		badRequest(w, "posting_id is required")
		return
	}
	m, err := s.movements.LinkPosting(r.Context(), id, req.PostingID)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	toJSON(w, http.StatusOK, toMovementResponse(m))
}

// markNonAccounting opts a movement out of posting generation.
func (s *Server) markNonAccounting(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, "invalid movement id")
		return
	}
	m, err := s.movements.MarkNonAccounting(r.Context(), id)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	toJSON(w, http.StatusOK, toMovementResponse(m))
}
