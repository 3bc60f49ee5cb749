package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/tinoosan/fxledger/internal/fx"
)

func (s *Server) postHolding(w http.ResponseWriter, r *http.Request) {
	if !requireJSON(w, r) {
		return
	}
	var req holdingRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return
	}
	saved, err := s.holdings.Create(r.Context(), req.toHolding())
	if err != nil {
		s.serviceError(w, err)
		return
	}
	toJSON(w, http.StatusCreated, toHoldingResponse(saved))
}

func (s *Server) listHoldings(w http.ResponseWriter, r *http.Request) {
	hs, err := s.holdings.List(r.Context())
	if err != nil {
		s.serviceError(w, err)
		return
	}
	out := make([]holdingResponse, 0, len(hs))
	for _, h := range hs {
		out = append(out, toHoldingResponse(h))
	}
	toJSON(w, http.StatusOK, out)
}

func (s *Server) getHolding(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, "invalid holding id")
		return
	}
	h, err := s.holdings.Get(r.Context(), id)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	toJSON(w, http.StatusOK, toHoldingResponse(h))
}

func (s *Server) deleteHolding(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, "invalid holding id")
		return
	}
	if err := s.holdings.Delete(r.Context(), id); err != nil {
		s.serviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// asOfParam parses the optional as_of query parameter (RFC 3339).
func asOfParam(r *http.Request) (*time.Time, error) {
	raw := r.URL.Query().Get("as_of")
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Server) getHoldingBalance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, "invalid holding id")
		return
	}
	asOf, err := asOfParam(r)
	if err != nil {
		badRequest(w, "as_of must be RFC 3339")
		return
	}
	b, err := s.valuation.Balance(r.Context(), id, asOf)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	toJSON(w, http.StatusOK, b)
}

func (s *Server) getHoldingValuation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, "invalid holding id")
		return
	}
	mode := fx.ValuationMode(r.URL.Query().Get("mode"))
	if mode == "" {
		mode = fx.ModeAccounting
	}
	if mode != fx.ModeAccounting && mode != fx.ModeManagement {
		badRequest(w, "mode must be accounting or management")
		return
	}
	asOf, err := asOfParam(r)
	if err != nil {
		badRequest(w, "as_of must be RFC 3339")
		return
	}
	v, err := s.valuation.Valuation(r.Context(), id, mode, asOf)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	toJSON(w, http.StatusOK, v)
}

func (s *Server) listHoldingMovements(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, "invalid holding id")
		return
	}
	ms, err := s.movements.ListByHolding(r.Context(), id)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	toJSON(w, http.StatusOK, toMovementResponses(ms))
}
