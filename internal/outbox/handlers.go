package outbox

import (
	"context"
	"fmt"

	"github.com/vaidashi/dispatch-engine/internal/models"
	"github.com/vaidashi/dispatch-engine/pkg/logger"
)

// LoggingHandler logs notifications instead of publishing them. It stands in
// for the broker when Kafka is disabled.
type LoggingHandler struct {
	logger logger.Logger
}

// NewLoggingHandler creates a new LoggingHandler
func NewLoggingHandler(logger logger.Logger) *LoggingHandler {
	return &LoggingHandler{logger: logger}
}

// HandleMessage logs the decoded notification
func (h *LoggingHandler) HandleMessage(ctx context.Context, message *models.OutboxMessage) error {
	var n models.DeliveryNotification

	event, err := models.DecodeEvent(message.Payload, &n)
	if err != nil {
		return fmt.Errorf("failed to decode outbox message %d: %w", message.ID, err)
	}

	h.logger.Info("Delivery notification",
		"message_id", message.ID,
		"event_type", event.EventType,
		"event_id", event.EventID,
		"delivery_id", n.DeliveryID,
		"status", n.NewStatus,
		"previous_status", n.PreviousStatus,
		"recipients", n.RecipientRefs)

	return nil
}

// OrderUpdater is the order collaborator
type OrderUpdater interface {
	UpdateOrderStatus(ctx context.Context, signal models.OrderStatusSignal) error
}

// OrderStatusHandler forwards order status signals to the order service
type OrderStatusHandler struct {
	orders OrderUpdater
	logger logger.Logger
}

// NewOrderStatusHandler creates a new OrderStatusHandler
func NewOrderStatusHandler(orders OrderUpdater, logger logger.Logger) *OrderStatusHandler {
	return &OrderStatusHandler{orders: orders, logger: logger}
}

// HandleMessage decodes the signal and sends it
func (h *OrderStatusHandler) HandleMessage(ctx context.Context, message *models.OutboxMessage) error {
	var signal models.OrderStatusSignal

	if _, err := models.DecodeEvent(message.Payload, &signal); err != nil {
		return fmt.Errorf("failed to decode order signal %d: %w", message.ID, err)
	}

	if err := h.orders.UpdateOrderStatus(ctx, signal); err != nil {
		return err
	}

	h.logger.Debug("Order status mirrored",
		"order_ref", signal.OrderRef,
		"delivery_id", signal.DeliveryID,
		"status", signal.Status)

	return nil
}
