package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vaidashi/dispatch-engine/internal/models"
	"github.com/vaidashi/dispatch-engine/pkg/logger"
)

// MessageHandler delivers one outbox message to its collaborator
type MessageHandler interface {
	HandleMessage(ctx context.Context, message *models.OutboxMessage) error
}

// HandlerFunc adapts a function to MessageHandler
type HandlerFunc func(ctx context.Context, message *models.OutboxMessage) error

func (f HandlerFunc) HandleMessage(ctx context.Context, message *models.OutboxMessage) error {
	return f(ctx, message)
}

// Store is the outbox table as seen by the processor
type Store interface {
	GetPendingMessages(ctx context.Context, limit int) ([]*models.OutboxMessage, error)
	MarkAsProcessing(ctx context.Context, id int64) error
	MarkAsCompleted(ctx context.Context, id int64) error
	MarkForRetry(ctx context.Context, id int64, errorMessage string) error
	MoveToDeadLetter(ctx context.Context, dl *models.DeadLetterMessage) error
}

// Processor polls the outbox and hands each pending message to the handler
// registered for its event type
type Processor struct {
	store           Store
	handlers        map[string]MessageHandler
	pollingInterval time.Duration
	batchSize       int
	maxRetries      int
	logger          logger.Logger
	ctx             context.Context
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	running         bool
	mu              sync.Mutex
}

// ProcessorConfig holds the configuration for the Processor
type ProcessorConfig struct {
	PollingInterval time.Duration
	BatchSize       int
	MaxRetries      int
}

// NewProcessor creates a new Processor
func NewProcessor(store Store, config ProcessorConfig, logger logger.Logger) *Processor {
	ctx, cancel := context.WithCancel(context.Background())

	if config.MaxRetries <= 0 {
		config.MaxRetries = 1
	}

	return &Processor{
		store:           store,
		handlers:        make(map[string]MessageHandler),
		pollingInterval: config.PollingInterval,
		batchSize:       config.BatchSize,
		maxRetries:      config.MaxRetries,
		logger:          logger,
		ctx:             ctx,
		cancel:          cancel,
	}
}

// RegisterHandler registers a message handler for a specific event type.
// Call it before Start.
func (p *Processor) RegisterHandler(eventType string, handler MessageHandler) {
	p.handlers[eventType] = handler
}

// Start starts the outbox processor
func (p *Processor) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}

	p.running = true
	p.wg.Add(1)

	go func() {
		defer p.wg.Done()
		p.processOutbox()
	}()

	p.logger.Info("Outbox processor started",
		"polling_interval", p.pollingInterval,
		"batch_size", p.batchSize,
		"max_retries", p.maxRetries)
}

// Stop stops the outbox processor and waits for the current batch to finish
func (p *Processor) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	p.cancel()
	p.wg.Wait()
	p.running = false

	p.logger.Info("Outbox processor stopped")
}

func (p *Processor) processOutbox() {
	ticker := time.NewTicker(p.pollingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(p.ctx, p.pollingInterval)
			if _, err := p.processBatch(ctx); err != nil {
				p.logger.Error("Failed to process outbox batch", "error", err)
			}
			cancel()
		}
	}
}

// processBatch handles up to batchSize pending messages and reports how many
// were delivered.
func (p *Processor) processBatch(ctx context.Context) (int, error) {
	messages, err := p.store.GetPendingMessages(ctx, p.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending messages: %w", err)
	}

	if len(messages) == 0 {
		p.logger.Debug("No pending outbox messages")
		return 0, nil
	}

	p.logger.Debug("Processing batch of outbox messages", "count", len(messages))

	delivered := 0
	for _, msg := range messages {
		if err := p.processMessage(ctx, msg); err != nil {
			p.logger.Warn("Failed to process outbox message",
				"error", err,
				"message_id", msg.ID,
				"aggregate_id", msg.AggregateID,
				"event_type", msg.EventType)
			continue
		}
		delivered++
	}

	return delivered, nil
}

func (p *Processor) processMessage(ctx context.Context, msg *models.OutboxMessage) error {
	if err := p.store.MarkAsProcessing(ctx, msg.ID); err != nil {
		return fmt.Errorf("failed to claim message: %w", err)
	}
	attempt := msg.ProcessingAttempts + 1

	handler, exists := p.handlers[msg.EventType]
	if !exists {
		return p.deadLetter(ctx, msg,
			fmt.Sprintf("no handler registered for event type %s", msg.EventType), "no handler")
	}

	err := handler.HandleMessage(ctx, msg)
	if err == nil {
		if err := p.store.MarkAsCompleted(ctx, msg.ID); err != nil {
			return fmt.Errorf("failed to mark message as completed: %w", err)
		}

		p.logger.Info("Delivered outbox message",
			"message_id", msg.ID,
			"aggregate_id", msg.AggregateID,
			"event_type", msg.EventType,
			"attempt", attempt)
		return nil
	}

	if attempt >= p.maxRetries {
		return p.deadLetter(ctx, msg, err.Error(),
			fmt.Sprintf("max retries reached after %d attempts", attempt))
	}

	if markErr := p.store.MarkForRetry(ctx, msg.ID, err.Error()); markErr != nil {
		p.logger.Error("Failed to return message to pending", "error", markErr, "message_id", msg.ID)
	}

	return fmt.Errorf("attempt %d of %d: %w", attempt, p.maxRetries, err)
}

func (p *Processor) deadLetter(ctx context.Context, msg *models.OutboxMessage, errorMsg, reason string) error {
	dl := models.NewDeadLetterMessage(msg, errorMsg, reason)

	if err := p.store.MoveToDeadLetter(ctx, dl); err != nil {
		p.logger.Error("Failed to move message to dead letter queue", "error", err, "message_id", msg.ID)
		return fmt.Errorf("failed to dead-letter message: %w", err)
	}

	p.logger.Warn("Moved outbox message to dead letter queue",
		"message_id", msg.ID,
		"dead_letter_id", dl.ID,
		"event_type", msg.EventType,
		"reason", reason)

	return fmt.Errorf("%s: %s", reason, errorMsg)
}
