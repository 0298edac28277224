package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/vaidashi/dispatch-engine/internal/models"
	"github.com/vaidashi/dispatch-engine/pkg/logger"
)

const outboxColumns = `
	id, aggregate_type, aggregate_id, event_type, payload,
	created_at, processed_at, processing_attempts, last_error, status`

// OutboxRepository handles database operations for outbox messages
type OutboxRepository struct {
	q      sqlx.ExtContext
	logger logger.Logger
}

// NewOutboxRepository creates a new OutboxRepository
func NewOutboxRepository(q sqlx.ExtContext, logger logger.Logger) *OutboxRepository {
	return &OutboxRepository{
		q:      q,
		logger: logger,
	}
}

// Enqueue inserts a new outbox message. Inside a transaction the message
// commits or rolls back with the state change that produced it.
func (r *OutboxRepository) Enqueue(ctx context.Context, message *models.OutboxMessage) error {
	query := `
		INSERT INTO outbox_messages (
			aggregate_type, aggregate_id, event_type, payload,
			created_at, status
		) VALUES (
			$1, $2, $3, $4, $5, $6
		) RETURNING id
	`

	err := r.q.QueryRowxContext(
		ctx,
		query,
		message.AggregateType,
		message.AggregateID,
		message.EventType,
		message.Payload,
		message.CreatedAt,
		message.Status,
	).Scan(&message.ID)

	if err != nil {
		r.logger.Error("Failed to create outbox message", "error", err)
		return dbError(err)
	}

	return nil
}

// GetPendingMessages retrieves pending outbox messages, oldest first
func (r *OutboxRepository) GetPendingMessages(ctx context.Context, limit int) ([]*models.OutboxMessage, error) {
	query := `
		SELECT ` + outboxColumns + `
		FROM outbox_messages
		WHERE status = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2
	`

	var messages []*models.OutboxMessage

	if err := sqlx.SelectContext(ctx, r.q, &messages, query, models.OutboxStatusPending, limit); err != nil {
		r.logger.Error("Failed to get pending outbox messages", "error", err)
		return nil, dbError(err)
	}

	return messages, nil
}

// MarkAsProcessing claims a pending message and counts the attempt.
// It returns ErrNotFound if another poller claimed it first.
func (r *OutboxRepository) MarkAsProcessing(ctx context.Context, id int64) error {
	query := `
		UPDATE outbox_messages
		SET status = $1, processing_attempts = processing_attempts + 1
		WHERE id = $2 AND status = $3
	`

	res, err := r.q.ExecContext(ctx, query, models.OutboxStatusProcessing, id, models.OutboxStatusPending)

	if err != nil {
		r.logger.Error("Failed to mark outbox message as processing", "error", err, "message_id", id)
		return dbError(err)
	}

	return expectOne(res)
}

// MarkAsCompleted updates the status of an outbox message to completed
func (r *OutboxRepository) MarkAsCompleted(ctx context.Context, id int64) error {
	query := `
		UPDATE outbox_messages
		SET status = $1, processed_at = $2
		WHERE id = $3
	`

	_, err := r.q.ExecContext(ctx, query, models.OutboxStatusCompleted, time.Now().UTC(), id)

	if err != nil {
		r.logger.Error("Failed to mark outbox message as completed", "error", err, "message_id", id)
		return dbError(err)
	}

	return nil
}

// MarkForRetry returns a message to pending and records why the attempt failed
func (r *OutboxRepository) MarkForRetry(ctx context.Context, id int64, errorMessage string) error {
	query := `
		UPDATE outbox_messages
		SET status = $1, last_error = $2
		WHERE id = $3
	`

	_, err := r.q.ExecContext(ctx, query, models.OutboxStatusPending, errorMessage, id)

	if err != nil {
		r.logger.Error("Failed to return outbox message to pending", "error", err, "message_id", id)
		return dbError(err)
	}

	return nil
}

// MoveToDeadLetter marks the message failed and copies it into the dead letter
// table in a single statement.
func (r *OutboxRepository) MoveToDeadLetter(ctx context.Context, dl *models.DeadLetterMessage) error {
	query := `
		WITH failed AS (
			UPDATE outbox_messages
			SET status = $1, last_error = $2
			WHERE id = $3
			RETURNING id
		)
		INSERT INTO dead_letter_messages (
			original_message_id, aggregate_type, aggregate_id, event_type, payload,
			error_message, failure_reason, retry_count, status, created_at
		)
		SELECT id, $4, $5, $6, $7, $2, $8, 0, $9, $10 FROM failed
		RETURNING id
	`

	err := r.q.QueryRowxContext(
		ctx,
		query,
		models.OutboxStatusFailed,
		dl.ErrorMessage,
		dl.OriginalMessageID,
		dl.AggregateType,
		dl.AggregateID,
		dl.EventType,
		dl.Payload,
		dl.FailureReason,
		dl.Status,
		dl.CreatedAt,
	).Scan(&dl.ID)

	if err != nil {
		r.logger.Error("Failed to move outbox message to dead letter queue", "error", err, "message_id", dl.OriginalMessageID)
		return dbError(err)
	}

	return nil
}

// GetMessage retrieves an outbox message by ID
func (r *OutboxRepository) GetMessage(ctx context.Context, id int64) (*models.OutboxMessage, error) {
	var message models.OutboxMessage

	if err := sqlx.GetContext(ctx, r.q, &message, `SELECT `+outboxColumns+` FROM outbox_messages WHERE id = $1`, id); err != nil {
		err = dbError(err)
		if err != ErrNotFound {
			r.logger.Error("Failed to get outbox message", "error", err, "message_id", id)
		}
		return nil, err
	}

	return &message, nil
}
