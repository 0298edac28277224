package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vaidashi/dispatch-engine/internal/models"
	apperrors "github.com/vaidashi/dispatch-engine/pkg/errors"
	"github.com/vaidashi/dispatch-engine/pkg/logger"
	"github.com/vaidashi/dispatch-engine/pkg/retry"
)

// DeadLetterStore is the dead letter table as seen by the processor
type DeadLetterStore interface {
	GetPendingMessages(ctx context.Context, limit int) ([]*models.DeadLetterMessage, error)
	MarkAsRetrying(ctx context.Context, id int64) error
	MarkAsResolved(ctx context.Context, id int64) error
	MarkAsDiscarded(ctx context.Context, id int64, reason string) error
}

// DeadLetterProcessor replays dead-lettered messages with backoff and
// discards those that still fail
type DeadLetterProcessor struct {
	store           DeadLetterStore
	handlers        map[string]MessageHandler
	pollingInterval time.Duration
	batchSize       int
	maxRetries      int
	backoffStrategy retry.BackoffStrategy
	logger          logger.Logger
	ctx             context.Context
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	running         bool
	mu              sync.Mutex
}

// DeadLetterProcessorConfig holds the configuration for the DeadLetterProcessor
type DeadLetterProcessorConfig struct {
	PollingInterval time.Duration
	BatchSize       int
	MaxRetries      int
	BackoffStrategy retry.BackoffStrategy
}

// NewDeadLetterProcessor creates a new dead letter processor
func NewDeadLetterProcessor(store DeadLetterStore, config DeadLetterProcessorConfig, logger logger.Logger) *DeadLetterProcessor {
	ctx, cancel := context.WithCancel(context.Background())

	backoffStrategy := config.BackoffStrategy
	if backoffStrategy == nil {
		backoffStrategy = retry.ReplayBackoff()
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 1
	}

	return &DeadLetterProcessor{
		store:           store,
		handlers:        make(map[string]MessageHandler),
		pollingInterval: config.PollingInterval,
		batchSize:       config.BatchSize,
		maxRetries:      config.MaxRetries,
		backoffStrategy: backoffStrategy,
		logger:          logger,
		ctx:             ctx,
		cancel:          cancel,
	}
}

// RegisterHandler registers a message handler for a specific event type
func (p *DeadLetterProcessor) RegisterHandler(eventType string, handler MessageHandler) {
	p.handlers[eventType] = handler
}

// Start starts the dead letter processor
func (p *DeadLetterProcessor) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}

	p.running = true
	p.wg.Add(1)

	go func() {
		defer p.wg.Done()
		p.processDLQ()
	}()

	p.logger.Info("Dead letter processor started",
		"polling_interval", p.pollingInterval,
		"batch_size", p.batchSize,
		"max_retries", p.maxRetries)
}

// Stop stops the dead letter processor
func (p *DeadLetterProcessor) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	p.cancel()
	p.wg.Wait()
	p.running = false

	p.logger.Info("Dead letter processor stopped")
}

func (p *DeadLetterProcessor) processDLQ() {
	ticker := time.NewTicker(p.pollingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.processBatch(p.ctx); err != nil {
				p.logger.Error("Failed to process dead letter batch", "error", err)
			}
		}
	}
}

func (p *DeadLetterProcessor) processBatch(ctx context.Context) (int, error) {
	messages, err := p.store.GetPendingMessages(ctx, p.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending messages: %w", err)
	}

	if len(messages) == 0 {
		p.logger.Debug("No pending messages in dead letter queue")
		return 0, nil
	}

	p.logger.Info("Processing batch of dead letter messages", "count", len(messages))

	resolved := 0
	for _, msg := range messages {
		if err := p.processMessage(ctx, msg); err != nil {
			p.logger.Error("Failed to process dead letter message",
				"error", err,
				"message_id", msg.ID,
				"aggregate_id", msg.AggregateID,
				"event_type", msg.EventType,
				"retry_count", msg.RetryCount)
			continue
		}
		resolved++
	}

	return resolved, nil
}

func (p *DeadLetterProcessor) processMessage(ctx context.Context, msg *models.DeadLetterMessage) error {
	if err := p.store.MarkAsRetrying(ctx, msg.ID); err != nil {
		return fmt.Errorf("failed to mark message as retrying: %w", err)
	}

	handler, exists := p.handlers[msg.EventType]
	if !exists {
		if err := p.store.MarkAsDiscarded(ctx, msg.ID, "no handler available"); err != nil {
			p.logger.Error("Failed to mark message as discarded", "error", err, "message_id", msg.ID)
		}
		return fmt.Errorf("no handler registered for event type %s", msg.EventType)
	}

	replay := msg.ToOutboxMessage()

	retryConfig := &retry.RetryConfig{
		Operation:       "dlq.replay." + msg.EventType,
		MaxAttempts:     p.maxRetries,
		BackoffStrategy: p.backoffStrategy,
		Logger:          p.logger,
	}

	discard := func(err error) error {
		reason := fmt.Sprintf("rejected on replay: %v", err)
		if retry.IsExhausted(err) {
			reason = fmt.Sprintf("failed after %d replay attempts: %v", p.maxRetries, err)
		}

		if markErr := p.store.MarkAsDiscarded(ctx, msg.ID, reason); markErr != nil {
			p.logger.Error("Failed to mark message as discarded", "error", markErr, "message_id", msg.ID)
		}

		return fmt.Errorf("message discarded: %w", err)
	}

	err := retry.RetryWithDiscard(ctx, func() error {
		return retryable(handler.HandleMessage(ctx, replay))
	}, retryConfig, discard)
	if err != nil {
		return err
	}

	if err := p.store.MarkAsResolved(ctx, msg.ID); err != nil {
		return fmt.Errorf("failed to mark message as resolved: %w", err)
	}

	p.logger.Info("Replayed dead letter message",
		"message_id", msg.ID,
		"aggregate_id", msg.AggregateID,
		"event_type", msg.EventType)

	return nil
}

// retryable marks plain handler errors, such as broker failures, as temporary.
// AppErrors keep their own classification so a rejected request is not replayed.
func retryable(err error) error {
	if err == nil {
		return nil
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}

	return apperrors.NewAppError(err, err.Error(), 0, true)
}
