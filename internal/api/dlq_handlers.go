package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/vaidashi/dispatch-engine/internal/models"
	"github.com/vaidashi/dispatch-engine/internal/repository"
	apperrors "github.com/vaidashi/dispatch-engine/pkg/errors"
)

// PaginationResponse wraps one page of a listing
type PaginationResponse struct {
	Items      interface{} `json:"items"`
	TotalCount int         `json:"total_count"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	Offset     int         `json:"offset"`
	Status     string      `json:"status"`
}

// getDeadLettersHandler returns a page of dead letter messages, pending by default
func (s *Server) getDeadLettersHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Parse pagination parameters
	page, err := strconv.Atoi(r.URL.Query().Get("page"))

	if err != nil || page < 1 {
		page = 1
	}

	pageSize, err := strconv.Atoi(r.URL.Query().Get("pageSize"))

	if err != nil || pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}

	offset := (page - 1) * pageSize

	status := models.DeadLetterStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = models.DeadLetterStatusPending
	}

	switch status {
	case models.DeadLetterStatusPending, models.DeadLetterStatusRetrying,
		models.DeadLetterStatusResolved, models.DeadLetterStatusDiscarded:
	default:
		s.respondWithAppError(w, r, apperrors.NewValidationError("status", "unknown dead letter status "+string(status)))
		return
	}

	messages, err := s.deadLetters.ListByStatus(ctx, status, pageSize, offset)

	if err != nil {
		s.logger.Error("Failed to fetch dead letter messages", "error", err)
		s.respondWithError(w, http.StatusInternalServerError, "Failed to fetch dead letter messages")
		return
	}

	if messages == nil {
		messages = []*models.DeadLetterMessage{}
	}

	response := PaginationResponse{
		Items:      messages,
		TotalCount: len(messages),
		Page:       page,
		PageSize:   pageSize,
		Offset:     offset,
		Status:     string(status),
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response})
}

// retryDeadLetterHandler puts a dead letter message back in the replay queue
func (s *Server) retryDeadLetterHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	idStr := mux.Vars(r)["id"]

	id, err := strconv.ParseInt(idStr, 10, 64)

	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid message ID")
		return
	}

	message, err := s.deadLetters.GetMessage(ctx, id)

	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondWithError(w, http.StatusNotFound, "Dead letter message not found")
			return
		}
		s.logger.Error("Failed to fetch dead letter message", "error", err, "messageID", id)
		s.respondWithError(w, http.StatusInternalServerError, "Failed to fetch dead letter message")
		return
	}

	if message.Status == models.DeadLetterStatusResolved {
		s.respondWithError(w, http.StatusConflict, "Resolved messages cannot be retried")
		return
	}

	if err := s.deadLetters.Requeue(ctx, id); err != nil {
		s.logger.Error("Failed to requeue message", "error", err, "messageID", id)
		s.respondWithError(w, http.StatusInternalServerError, "Failed to mark message for retry")
		return
	}

	s.logger.Info("Dead letter message requeued", "messageID", id, "eventType", message.EventType)

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data: map[string]string{
			"message": "Dead letter message marked for retry",
			"id":      idStr,
		},
	})
}

// discardDeadLetterHandler discards a dead letter message
func (s *Server) discardDeadLetterHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	idStr := mux.Vars(r)["id"]

	id, err := strconv.ParseInt(idStr, 10, 64)

	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid message ID")
		return
	}

	var req discardRequest
	if err := s.decodeRequest(r, &req); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	if req.Reason == "" {
		req.Reason = "No reason provided"
	}

	if err := s.deadLetters.MarkAsDiscarded(ctx, id, req.Reason); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondWithError(w, http.StatusNotFound, "Dead letter message not found")
			return
		}
		s.logger.Error("Failed to discard message", "error", err, "messageID", id)
		s.respondWithError(w, http.StatusInternalServerError, "Failed to discard message")
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data: map[string]string{
			"message": "Dead letter message discarded",
			"id":      idStr,
		},
	})
}
