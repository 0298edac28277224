package api

import (
	"net/http"

	"github.com/vaidashi/dispatch-engine/internal/matching"
)

// quoteHandler prices a shipment without assigning it
func (s *Server) quoteHandler(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest

	if err := s.decodeRequest(r, &req); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	quote, err := s.dispatch.Quote(r.Context(), req.toModel(), req.ZoneID)
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: quote})
}

// matchHandler ranks the available vehicles for a shipment
func (s *Server) matchHandler(w http.ResponseWriter, r *http.Request) {
	var req matchRequest

	if err := s.decodeRequest(r, &req); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	candidates, err := s.dispatch.Match(r.Context(), req.toModel(), req.MaxDistanceKm)
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	// An empty match is a list, not null.
	if candidates == nil {
		candidates = []matching.CarrierCandidate{}
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: candidates})
}
