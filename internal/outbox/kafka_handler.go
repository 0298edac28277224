package outbox

import (
	"context"
	"fmt"
	"strconv"

	"github.com/vaidashi/dispatch-engine/internal/models"
	"github.com/vaidashi/dispatch-engine/pkg/kafka"
	"github.com/vaidashi/dispatch-engine/pkg/logger"
)

// KafkaHandler publishes outbox messages to a Kafka topic
type KafkaHandler struct {
	producer kafka.Publisher
	topic    string
	logger   logger.Logger
}

// NewKafkaHandler creates a new KafkaHandler
func NewKafkaHandler(producer kafka.Publisher, topic string, logger logger.Logger) *KafkaHandler {
	return &KafkaHandler{
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
}

// HandleMessage publishes the payload keyed by delivery id so that one
// delivery's events stay on one partition, in order.
func (h *KafkaHandler) HandleMessage(ctx context.Context, message *models.OutboxMessage) error {
	headers := map[string]string{
		"event_type":     message.EventType,
		"aggregate_type": message.AggregateType,
		"message_id":     strconv.FormatInt(message.ID, 10),
	}

	if err := h.producer.SendMessage(ctx, h.topic, message.AggregateID, message.Payload, headers); err != nil {
		return fmt.Errorf("failed to publish message %d to %s: %w", message.ID, h.topic, err)
	}

	h.logger.Debug("Published outbox message",
		"topic", h.topic,
		"message_id", message.ID,
		"aggregate_id", message.AggregateID,
		"event_type", message.EventType)

	return nil
}
