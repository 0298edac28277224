package api

import (
	"net/http"
)

// getRateLimitsHandler returns the current rate limit settings and metrics
func (s *Server) getRateLimitsHandler(w http.ResponseWriter, r *http.Request) {
	if s.rateLimiter == nil {
		s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: map[string]interface{}{"enabled": false}})
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: s.rateLimiter.GetMetrics()})
}
