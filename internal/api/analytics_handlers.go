package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	apperrors "github.com/vaidashi/dispatch-engine/pkg/errors"
)

// carrierPerformanceHandler reports a carrier's metrics over an optional
// RFC3339 window given by the start and end query parameters
func (s *Server) carrierPerformanceHandler(w http.ResponseWriter, r *http.Request) {
	from, err := parseTimeParam(r, "start")
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}
	to, err := parseTimeParam(r, "end")
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	metrics, err := s.analytics.CarrierPerformance(r.Context(), mux.Vars(r)["id"], from, to)
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: metrics})
}

func (s *Server) zoneAnalyticsHandler(w http.ResponseWriter, r *http.Request) {
	metrics, err := s.analytics.ZoneAnalytics(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: metrics})
}

func parseTimeParam(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, apperrors.NewValidationError(name, "must be an RFC3339 timestamp")
	}
	return &t, nil
}
