package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// registerCarrierHandler onboards a carrier
func (s *Server) registerCarrierHandler(w http.ResponseWriter, r *http.Request) {
	var req registerCarrierRequest

	if err := s.decodeRequest(r, &req); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	carrier, err := s.fleet.RegisterCarrier(r.Context(), req.toModel())
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: carrier})
}

func (s *Server) getCarrierHandler(w http.ResponseWriter, r *http.Request) {
	carrier, err := s.fleet.GetCarrier(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: carrier})
}

func (s *Server) verifyCarrierHandler(w http.ResponseWriter, r *http.Request) {
	carrier, err := s.fleet.VerifyCarrier(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: carrier})
}

// registerVehicleHandler onboards a vehicle into the fleet
func (s *Server) registerVehicleHandler(w http.ResponseWriter, r *http.Request) {
	var req registerVehicleRequest

	if err := s.decodeRequest(r, &req); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	vehicle, err := s.fleet.RegisterVehicle(r.Context(), req.toModel())
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: vehicle})
}

func (s *Server) getVehicleHandler(w http.ResponseWriter, r *http.Request) {
	vehicle, err := s.fleet.GetVehicle(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: vehicle})
}

// registerZoneHandler adds a priced service zone
func (s *Server) registerZoneHandler(w http.ResponseWriter, r *http.Request) {
	var req registerZoneRequest

	if err := s.decodeRequest(r, &req); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	zone, err := s.fleet.RegisterZone(r.Context(), req.toModel())
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: zone})
}
