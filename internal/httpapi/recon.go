package httpapi

import (
	"net/http"
)

func (s *Server) reconSweep(w http.ResponseWriter, r *http.Request) {
	res, err := s.recon.Sweep(r.Context())
	if err != nil {
		s.serviceError(w, err)
		return
	}
	toJSON(w, http.StatusOK, res)
}

type reconItemsResponse struct {
	Movements        []movementResponse `json:"movements"`
	UnlinkedPostings []postingResponse  `json:"unlinked_postings"`
}

func (s *Server) reconItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.recon.Items(r.Context())
	if err != nil {
		s.serviceError(w, err)
		return
	}
	resp := reconItemsResponse{
		Movements:        toMovementResponses(items.Movements),
		UnlinkedPostings: make([]postingResponse, 0, len(items.UnlinkedPostings)),
	}
	for _, p := range items.UnlinkedPostings {
		resp.UnlinkedPostings = append(resp.UnlinkedPostings, toPostingResponse(p))
	}
	toJSON(w, http.StatusOK, resp)
}
