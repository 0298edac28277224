package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	apperrors "github.com/vaidashi/dispatch-engine/pkg/errors"
	"github.com/vaidashi/dispatch-engine/pkg/logger"
)

type ApiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Health represents the health check response
type Health struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Database  string `json:"database"`
	Timestamp string `json:"timestamp"`
}

const version = "1.0.0"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Report json field names rather than Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// healthCheckHandler handles the health check endpoint
func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	health := Health{
		Status:    "ok",
		Version:   version,
		Database:  "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if s.health != nil {
		if err := s.health.Ping(r.Context()); err != nil {
			s.logger.Error("Health check failed", "error", err)
			health.Status = "degraded"
			health.Database = "unreachable"
			s.respondWithJSON(w, http.StatusServiceUnavailable, ApiResponse{Success: false, Data: health, Error: "database unreachable"})
			return
		}
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    health,
	})
}

// decodeRequest decodes the JSON body into dst and runs its validate tags
func (s *Server) decodeRequest(r *http.Request, dst interface{}) error {
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil {
		return apperrors.NewInvalidInputError(fmt.Sprintf("invalid request payload: %v", err))
	}

	if err := validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperrors.NewInvalidInputError(err.Error())
	}

	fe := verrs[0]
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}

	msg := "failed " + fe.Tag()
	switch fe.Tag() {
	case "required":
		msg = "is required"
	case "oneof":
		msg = "must be one of: " + fe.Param()
	case "min", "gte":
		msg = "must be at least " + fe.Param()
	case "max", "lte":
		msg = "must be at most " + fe.Param()
	case "gt":
		msg = "must be greater than " + fe.Param()
	}

	return apperrors.NewValidationError(field, msg)
}

// respondWithAppError maps err onto its HTTP status. Server-side failures are
// logged and hidden from the client.
func (s *Server) respondWithAppError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.StatusCode(err)

	if code >= http.StatusInternalServerError {
		s.logger.Error("Request failed",
			"req_id", logger.RequestID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"error", err)

		if code == http.StatusInternalServerError {
			s.respondWithError(w, code, "internal server error")
			return
		}
	}

	s.respondWithError(w, code, err.Error())
}

// respondWithError sends a JSON response with an error message
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, ApiResponse{
		Success: false,
		Error:   message,
	})
}

// respondWithJSON sends a JSON response
func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)

	if err != nil {
		s.logger.Error("Failed to marshal response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
