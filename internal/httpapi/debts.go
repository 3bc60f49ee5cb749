package httpapi

import (
	"encoding/json"
	"net/http"
)

func (s *Server) postDebt(w http.ResponseWriter, r *http.Request) {
	if !requireJSON(w, r) {
		return
	}
	var req debtRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return
	}
	saved, err := s.debts.Create(r.Context(), req.toDebt())
	if err != nil {
		s.serviceError(w, err)
		return
	}
	toJSON(w, http.StatusCreated, toDebtResponse(saved))
}

func (s *Server) listDebts(w http.ResponseWriter, r *http.Request) {
	ds, err := s.debts.List(r.Context())
	if err != nil {
		s.serviceError(w, err)
		return
	}
	out := make([]debtResponse, 0, len(ds))
	for _, d := range ds {
		out = append(out, toDebtResponse(d))
	}
	toJSON(w, http.StatusOK, out)
}

func (s *Server) getDebt(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, "invalid debt id")
		return
	}
	d, err := s.debts.Get(r.Context(), id)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	toJSON(w, http.StatusOK, toDebtResponse(d))
}

func (s *Server) getDebtSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, "invalid debt id")
		return
	}
	d, err := s.debts.Get(r.Context(), id)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	toJSON(w, http.StatusOK, toDebtResponse(d).Schedule)
}
