package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/vaidashi/dispatch-engine/internal/models"
	"github.com/vaidashi/dispatch-engine/pkg/logger"
)

const deadLetterColumns = `
	id, original_message_id, aggregate_type, aggregate_id, event_type, payload,
	error_message, failure_reason, retry_count, last_retry_at, status, created_at, resolved_at`

// DeadLetterRepository handles database operations related to dead letter messages
type DeadLetterRepository struct {
	q      sqlx.ExtContext
	logger logger.Logger
}

// NewDeadLetterRepository creates a new DeadLetterRepository
func NewDeadLetterRepository(q sqlx.ExtContext, logger logger.Logger) *DeadLetterRepository {
	return &DeadLetterRepository{
		q:      q,
		logger: logger,
	}
}

// GetPendingMessages retrieves pending dead letter messages
func (r *DeadLetterRepository) GetPendingMessages(ctx context.Context, limit int) ([]*models.DeadLetterMessage, error) {
	return r.ListByStatus(ctx, models.DeadLetterStatusPending, limit, 0)
}

// ListByStatus pages through dead letter messages, optionally filtered by status
func (r *DeadLetterRepository) ListByStatus(ctx context.Context, status models.DeadLetterStatus, limit, offset int) ([]*models.DeadLetterMessage, error) {
	query := `
		SELECT ` + deadLetterColumns + `
		FROM dead_letter_messages
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at ASC, id ASC
		LIMIT $2 OFFSET $3
	`

	messages := []*models.DeadLetterMessage{}

	if err := sqlx.SelectContext(ctx, r.q, &messages, query, string(status), limit, offset); err != nil {
		r.logger.Error("Failed to list dead letter messages", "error", err, "status", status)
		return nil, dbError(err)
	}

	return messages, nil
}

// MarkAsRetrying marks a message as being retried
func (r *DeadLetterRepository) MarkAsRetrying(ctx context.Context, id int64) error {
	query := `
		UPDATE dead_letter_messages
		SET status = $1, retry_count = retry_count + 1, last_retry_at = $2
		WHERE id = $3
	`

	res, err := r.q.ExecContext(ctx, query, models.DeadLetterStatusRetrying, time.Now().UTC(), id)

	if err != nil {
		r.logger.Error("Failed to mark dead letter message as retrying", "error", err, "message_id", id)
		return dbError(err)
	}

	return expectOne(res)
}

// MarkAsResolved marks a message as resolved
func (r *DeadLetterRepository) MarkAsResolved(ctx context.Context, id int64) error {
	query := `
		UPDATE dead_letter_messages
		SET status = $1, resolved_at = $2
		WHERE id = $3
	`

	res, err := r.q.ExecContext(ctx, query, models.DeadLetterStatusResolved, time.Now().UTC(), id)

	if err != nil {
		r.logger.Error("Failed to mark dead letter message as resolved", "error", err, "message_id", id)
		return dbError(err)
	}

	return expectOne(res)
}

// MarkAsDiscarded marks a message as permanently discarded
func (r *DeadLetterRepository) MarkAsDiscarded(ctx context.Context, id int64, reason string) error {
	query := `
		UPDATE dead_letter_messages
		SET status = $1,
			failure_reason = CONCAT(failure_reason, ' | Discarded: ', $2::text),
			resolved_at = $3
		WHERE id = $4
	`

	res, err := r.q.ExecContext(ctx, query, models.DeadLetterStatusDiscarded, reason, time.Now().UTC(), id)

	if err != nil {
		r.logger.Error("Failed to mark dead letter message as discarded", "error", err, "message_id", id)
		return dbError(err)
	}

	return expectOne(res)
}

// Requeue puts a message back in the pending queue for the dead letter processor
func (r *DeadLetterRepository) Requeue(ctx context.Context, id int64) error {
	query := `
		UPDATE dead_letter_messages
		SET status = $1, resolved_at = NULL
		WHERE id = $2 AND status <> $3
	`

	res, err := r.q.ExecContext(ctx, query, models.DeadLetterStatusPending, id, models.DeadLetterStatusResolved)

	if err != nil {
		r.logger.Error("Failed to requeue dead letter message", "error", err, "message_id", id)
		return dbError(err)
	}

	return expectOne(res)
}

// GetMessage retrieves a message by ID
func (r *DeadLetterRepository) GetMessage(ctx context.Context, id int64) (*models.DeadLetterMessage, error) {
	var message models.DeadLetterMessage

	if err := sqlx.GetContext(ctx, r.q, &message, `SELECT `+deadLetterColumns+` FROM dead_letter_messages WHERE id = $1`, id); err != nil {
		err = dbError(err)
		if err != ErrNotFound {
			r.logger.Error("Failed to get dead letter message", "error", err, "message_id", id)
		}
		return nil, err
	}

	return &message, nil
}
