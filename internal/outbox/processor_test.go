package outbox

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vaidashi/dispatch-engine/internal/models"
	apperrors "github.com/vaidashi/dispatch-engine/pkg/errors"
	"github.com/vaidashi/dispatch-engine/pkg/logger"
	"github.com/vaidashi/dispatch-engine/pkg/retry"
)

type memOutbox struct {
	mu         sync.Mutex
	messages   map[int64]*models.OutboxMessage
	deadLetter []*models.DeadLetterMessage
}

func newMemOutbox(msgs ...*models.OutboxMessage) *memOutbox {
	s := &memOutbox{messages: map[int64]*models.OutboxMessage{}}
	for _, m := range msgs {
		s.messages[m.ID] = m
	}
	return s
}

func (s *memOutbox) GetPendingMessages(_ context.Context, limit int) ([]*models.OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.OutboxMessage
	for id := int64(1); id <= int64(len(s.messages)) && len(out) < limit; id++ {
		if m, ok := s.messages[id]; ok && m.Status == models.OutboxStatusPending {
			c := *m
			out = append(out, &c)
		}
	}
	return out, nil
}

func (s *memOutbox) MarkAsProcessing(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.messages[id]
	if m.Status != models.OutboxStatusPending {
		return errors.New("already claimed")
	}
	m.Status = models.OutboxStatusProcessing
	m.ProcessingAttempts++
	return nil
}

func (s *memOutbox) MarkAsCompleted(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages[id].Status = models.OutboxStatusCompleted
	return nil
}

func (s *memOutbox) MarkForRetry(_ context.Context, id int64, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages[id].Status = models.OutboxStatusPending
	s.messages[id].LastError = &errorMessage
	return nil
}

func (s *memOutbox) MoveToDeadLetter(_ context.Context, dl *models.DeadLetterMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages[dl.OriginalMessageID].Status = models.OutboxStatusFailed
	dl.ID = int64(len(s.deadLetter) + 1)
	s.deadLetter = append(s.deadLetter, dl)
	return nil
}

func (s *memOutbox) status(id int64) models.OutboxStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messages[id].Status
}

func pending(id int64, eventType string) *models.OutboxMessage {
	return &models.OutboxMessage{
		ID:          id,
		AggregateID: "DEL-1",
		EventType:   eventType,
		Payload:     []byte(`{"event_type":"` + eventType + `","data":{}}`),
		Status:      models.OutboxStatusPending,
	}
}

func TestProcessBatchDelivers(t *testing.T) {
	store := newMemOutbox(pending(1, models.EventDeliveryCreated), pending(2, models.EventOrderStatusMirror))

	var seen []string
	p := NewProcessor(store, ProcessorConfig{BatchSize: 10, MaxRetries: 3}, logger.NewNop())
	record := HandlerFunc(func(_ context.Context, m *models.OutboxMessage) error {
		seen = append(seen, m.EventType)
		return nil
	})
	p.RegisterHandler(models.EventDeliveryCreated, record)
	p.RegisterHandler(models.EventOrderStatusMirror, record)

	n, err := p.processBatch(context.Background())
	if err != nil {
		t.Fatalf("processBatch: %v", err)
	}
	if n != 2 || len(seen) != 2 || seen[0] != models.EventDeliveryCreated {
		t.Fatalf("expected both messages in order, got %d %v", n, seen)
	}
	if store.status(1) != models.OutboxStatusCompleted || store.status(2) != models.OutboxStatusCompleted {
		t.Fatal("expected both messages completed")
	}
}

func TestProcessBatchRetriesThenDeadLetters(t *testing.T) {
	store := newMemOutbox(pending(1, models.EventOrderStatusMirror))

	p := NewProcessor(store, ProcessorConfig{BatchSize: 10, MaxRetries: 3}, logger.NewNop())
	p.RegisterHandler(models.EventOrderStatusMirror, HandlerFunc(func(context.Context, *models.OutboxMessage) error {
		return errors.New("order service unavailable")
	}))

	ctx := context.Background()
	for attempt := 1; attempt <= 2; attempt++ {
		if _, err := p.processBatch(ctx); err != nil {
			t.Fatalf("processBatch: %v", err)
		}
		if got := store.status(1); got != models.OutboxStatusPending {
			t.Fatalf("attempt %d: expected pending for retry, got %s", attempt, got)
		}
	}

	if _, err := p.processBatch(ctx); err != nil {
		t.Fatalf("processBatch: %v", err)
	}
	if got := store.status(1); got != models.OutboxStatusFailed {
		t.Fatalf("expected failed after 3 attempts, got %s", got)
	}
	if len(store.deadLetter) != 1 || store.deadLetter[0].ErrorMessage != "order service unavailable" {
		t.Fatalf("expected one dead letter, got %+v", store.deadLetter)
	}

	n, _ := p.processBatch(ctx)
	if n != 0 {
		t.Fatalf("a dead-lettered message must not be retried, got %d", n)
	}
}

func TestProcessBatchWithoutHandlerDeadLetters(t *testing.T) {
	store := newMemOutbox(pending(1, "delivery.teleported"))
	p := NewProcessor(store, ProcessorConfig{BatchSize: 10, MaxRetries: 3}, logger.NewNop())

	if _, err := p.processBatch(context.Background()); err != nil {
		t.Fatalf("processBatch: %v", err)
	}
	if len(store.deadLetter) != 1 || store.deadLetter[0].FailureReason != "no handler" {
		t.Fatalf("expected a no-handler dead letter, got %+v", store.deadLetter)
	}
}

func TestProcessorStartStop(t *testing.T) {
	store := newMemOutbox(pending(1, models.EventDeliveryCreated))

	done := make(chan struct{})
	p := NewProcessor(store, ProcessorConfig{PollingInterval: 5 * time.Millisecond, BatchSize: 10, MaxRetries: 3}, logger.NewNop())
	p.RegisterHandler(models.EventDeliveryCreated, HandlerFunc(func(context.Context, *models.OutboxMessage) error {
		close(done)
		return nil
	}))

	p.Start()
	p.Start()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("processor never delivered the message")
	}

	p.Stop()
	p.Stop()
}

type memDeadLetters struct {
	messages  []*models.DeadLetterMessage
	statuses  map[int64]models.DeadLetterStatus
	discarded map[int64]string
}

func newMemDeadLetters(msgs ...*models.DeadLetterMessage) *memDeadLetters {
	s := &memDeadLetters{messages: msgs, statuses: map[int64]models.DeadLetterStatus{}, discarded: map[int64]string{}}
	for _, m := range msgs {
		s.statuses[m.ID] = m.Status
	}
	return s
}

func (s *memDeadLetters) GetPendingMessages(_ context.Context, limit int) ([]*models.DeadLetterMessage, error) {
	var out []*models.DeadLetterMessage
	for _, m := range s.messages {
		if s.statuses[m.ID] == models.DeadLetterStatusPending && len(out) < limit {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memDeadLetters) MarkAsRetrying(_ context.Context, id int64) error {
	s.statuses[id] = models.DeadLetterStatusRetrying
	return nil
}

func (s *memDeadLetters) MarkAsResolved(_ context.Context, id int64) error {
	s.statuses[id] = models.DeadLetterStatusResolved
	return nil
}

func (s *memDeadLetters) MarkAsDiscarded(_ context.Context, id int64, reason string) error {
	s.statuses[id] = models.DeadLetterStatusDiscarded
	s.discarded[id] = reason
	return nil
}

func deadLetter(id int64, eventType string) *models.DeadLetterMessage {
	dl := models.NewDeadLetterMessage(pending(id, eventType), "boom", "max retries")
	dl.ID = id
	return dl
}

func TestDeadLetterProcessorReplays(t *testing.T) {
	store := newMemDeadLetters(deadLetter(1, models.EventOrderStatusMirror), deadLetter(2, models.EventDeliveryCreated))

	calls := 0
	p := NewDeadLetterProcessor(store, DeadLetterProcessorConfig{
		BatchSize:       10,
		MaxRetries:      3,
		BackoffStrategy: &retry.ConstantBackoff{Interval: time.Millisecond},
	}, logger.NewNop())

	p.RegisterHandler(models.EventOrderStatusMirror, HandlerFunc(func(_ context.Context, m *models.OutboxMessage) error {
		calls++
		if m.ID != 1 || m.Status != models.OutboxStatusPending {
			t.Errorf("unexpected replay %+v", m)
		}
		if calls < 2 {
			return errors.New("still down")
		}
		return nil
	}))
	p.RegisterHandler(models.EventDeliveryCreated, HandlerFunc(func(context.Context, *models.OutboxMessage) error {
		return errors.New("permanently broken")
	}))

	n, err := p.processBatch(context.Background())
	if err != nil {
		t.Fatalf("processBatch: %v", err)
	}
	if n != 1 || calls != 2 {
		t.Fatalf("expected one resolution after 2 calls, got %d resolved and %d calls", n, calls)
	}
	if store.statuses[1] != models.DeadLetterStatusResolved {
		t.Fatalf("expected message 1 resolved, got %s", store.statuses[1])
	}
	if store.statuses[2] != models.DeadLetterStatusDiscarded || store.discarded[2] == "" {
		t.Fatalf("expected message 2 discarded with a reason, got %s", store.statuses[2])
	}
}

func TestDeadLetterProcessorDoesNotReplayRejections(t *testing.T) {
	store := newMemDeadLetters(deadLetter(1, models.EventOrderStatusMirror))

	calls := 0
	p := NewDeadLetterProcessor(store, DeadLetterProcessorConfig{
		BatchSize:       10,
		MaxRetries:      5,
		BackoffStrategy: &retry.ConstantBackoff{Interval: time.Millisecond},
	}, logger.NewNop())
	p.RegisterHandler(models.EventOrderStatusMirror, HandlerFunc(func(context.Context, *models.OutboxMessage) error {
		calls++
		return apperrors.NewNotFoundError("order ORD-1 not found")
	}))

	if _, err := p.processBatch(context.Background()); err != nil {
		t.Fatalf("processBatch: %v", err)
	}
	if calls != 1 {
		t.Fatalf("a rejected request should be tried once, got %d calls", calls)
	}
	if store.statuses[1] != models.DeadLetterStatusDiscarded {
		t.Fatalf("expected discarded, got %s", store.statuses[1])
	}
	if !strings.HasPrefix(store.discarded[1], "rejected on replay") {
		t.Fatalf("discard reason = %q", store.discarded[1])
	}
}
