package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/vaidashi/dispatch-engine/internal/service"
)

// optimizeRouteHandler runs and records one optimization. A failed
// computation is still a 201 whose record carries the processing error.
func (s *Server) optimizeRouteHandler(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest

	if err := s.decodeRequest(r, &req); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	optimization, err := s.routes.Optimize(r.Context(), req.toInput())
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: optimization})
}

// optimizeBatchHandler responds 201 with one entry per request in request
// order. Entries rejected before optimizing carry an error and no id.
func (s *Server) optimizeBatchHandler(w http.ResponseWriter, r *http.Request) {
	var req batchOptimizeRequest

	if err := s.decodeRequest(r, &req); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	inputs := make([]service.OptimizeInput, len(req.Requests))
	for i, o := range req.Requests {
		inputs[i] = o.toInput()
	}

	results, err := s.routes.OptimizeBatch(r.Context(), inputs)
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: results})
}

func (s *Server) compareRoutesHandler(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest

	if err := s.decodeRequest(r, &req); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	results, err := s.routes.Compare(r.Context(), req.toInput())
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: results})
}

// promoteRouteHandler turns a successful optimization into a named route
func (s *Server) promoteRouteHandler(w http.ResponseWriter, r *http.Request) {
	var req promoteRequest

	if err := s.decodeRequest(r, &req); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	route, err := s.routes.Promote(r.Context(), service.PromoteInput{
		OptimizationID: req.OptimizationID,
		Name:           req.Name,
		StartLocation:  req.StartLocation,
		EndLocation:    req.EndLocation,
	})
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: route})
}

func (s *Server) getRouteHandler(w http.ResponseWriter, r *http.Request) {
	route, err := s.routes.GetRoute(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: route})
}

func (s *Server) getOptimizationHandler(w http.ResponseWriter, r *http.Request) {
	optimization, err := s.routes.GetOptimization(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: optimization})
}
