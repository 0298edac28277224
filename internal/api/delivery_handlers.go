package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/vaidashi/dispatch-engine/internal/models"
	"github.com/vaidashi/dispatch-engine/internal/service"
)

type statusUpdateResponse struct {
	Event    *models.TrackingEvent `json:"event"`
	Delivery *models.Delivery      `json:"delivery"`
}

// createDeliveryHandler assigns a shipment to a vehicle
func (s *Server) createDeliveryHandler(w http.ResponseWriter, r *http.Request) {
	var req createDeliveryRequest

	if err := s.decodeRequest(r, &req); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	delivery, err := s.deliveries.CreateDelivery(r.Context(), req.toInput())
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: delivery})
}

// updateDeliveryStatusHandler records a status change and returns the new
// checkpoint with the updated delivery
func (s *Server) updateDeliveryStatusHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req updateStatusRequest
	if err := s.decodeRequest(r, &req); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	event, delivery, err := s.deliveries.UpdateStatus(r.Context(), req.toInput(id))
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    statusUpdateResponse{Event: event, Delivery: delivery},
	})
}

// getTrackingHandler returns a delivery with its full checkpoint history
func (s *Server) getTrackingHandler(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.deliveries.GetTracking(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: snapshot})
}

// rateDeliveryHandler records the customer's rating of a finished delivery
func (s *Server) rateDeliveryHandler(w http.ResponseWriter, r *http.Request) {
	var req rateDeliveryRequest

	if err := s.decodeRequest(r, &req); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	delivery, err := s.deliveries.RateDelivery(r.Context(), service.RateDeliveryInput{
		DeliveryID: mux.Vars(r)["id"],
		Rating:     req.Rating,
		Feedback:   req.Feedback,
		RatedBy:    req.RatedBy,
	})
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: delivery})
}
