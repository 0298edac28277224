package api

import (
	"net/http"

	"github.com/vaidashi/dispatch-engine/pkg/logger"
)

// getCircuitBreakerStatusHandler returns the state of the order service circuit breaker
func (s *Server) getCircuitBreakerStatusHandler(w http.ResponseWriter, r *http.Request) {
	metrics := s.breaker.GetMetrics()

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: metrics})
}

// resetCircuitBreakerHandler resets the circuit breaker to closed state
func (s *Server) resetCircuitBreakerHandler(w http.ResponseWriter, r *http.Request) {
	s.breaker.Reset()
	s.logger.Info("Circuit breaker reset", "req_id", logger.RequestID(r.Context()))

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data: map[string]string{
			"message": "Circuit breaker reset successfully",
		},
	})
}
