package models

import (
	"encoding/json"
	"time"
)

// OutboxStatus represents the status of an outbox message
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusProcessing OutboxStatus = "processing"
	OutboxStatusCompleted  OutboxStatus = "completed"
	OutboxStatusFailed     OutboxStatus = "failed"
)

// Outbox event types
const (
	EventDeliveryCreated       = "delivery.created"
	EventDeliveryStatusChanged = "delivery.status_changed"
	EventOrderStatusMirror     = "order.status_mirror"
)

const aggregateDelivery = "delivery"

// OutboxMessage is a collaborator signal committed together with the state change that caused it
type OutboxMessage struct {
	ID                 int64        `db:"id" json:"id"`
	AggregateType      string       `db:"aggregate_type" json:"aggregate_type"`
	AggregateID        string       `db:"aggregate_id" json:"aggregate_id"`
	EventType          string       `db:"event_type" json:"event_type"`
	Payload            []byte       `db:"payload" json:"payload"`
	CreatedAt          time.Time    `db:"created_at" json:"created_at"`
	ProcessedAt        *time.Time   `db:"processed_at" json:"processed_at,omitempty"`
	ProcessingAttempts int          `db:"processing_attempts" json:"processing_attempts"`
	LastError          *string      `db:"last_error" json:"last_error,omitempty"`
	Status             OutboxStatus `db:"status" json:"status"`
}

// OutboxMessageEvent is the envelope serialized into OutboxMessage.Payload
type OutboxMessageEvent struct {
	EventType   string          `json:"event_type"`
	EventID     string          `json:"event_id"`
	AggregateID string          `json:"aggregate_id"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Data        json.RawMessage `json:"data"`
}

// DeliveryNotification is sent to the notification collaborator on every status change
type DeliveryNotification struct {
	DeliveryID     string         `json:"delivery_id"`
	OrderRef       string         `json:"order_ref"`
	NewStatus      DeliveryStatus `json:"new_status"`
	PreviousStatus DeliveryStatus `json:"previous_status,omitempty"`
	RecipientRefs  []string       `json:"recipient_refs"`
}

func newDeliveryMessage(eventType, deliveryID string, data interface{}, now time.Time) (*OutboxMessage, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	event := OutboxMessageEvent{
		EventType:   eventType,
		EventID:     GenerateID("EVT"),
		AggregateID: deliveryID,
		OccurredAt:  now,
		Data:        raw,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	return &OutboxMessage{
		AggregateType:      aggregateDelivery,
		AggregateID:        deliveryID,
		EventType:          eventType,
		Payload:            payload,
		CreatedAt:          now,
		ProcessingAttempts: 0,
		Status:             OutboxStatusPending,
	}, nil
}

// NewDeliveryCreatedEvent announces a newly assigned delivery
func NewDeliveryCreatedEvent(d *Delivery, now time.Time) (*OutboxMessage, error) {
	return newDeliveryMessage(EventDeliveryCreated, d.DeliveryID, DeliveryNotification{
		DeliveryID:    d.DeliveryID,
		OrderRef:      d.OrderRef,
		NewStatus:     d.Status,
		RecipientRefs: d.RecipientRefs(),
	}, now)
}

// NewDeliveryStatusChangedEvent announces a status transition
func NewDeliveryStatusChangedEvent(d *Delivery, previous DeliveryStatus, now time.Time) (*OutboxMessage, error) {
	return newDeliveryMessage(EventDeliveryStatusChanged, d.DeliveryID, DeliveryNotification{
		DeliveryID:     d.DeliveryID,
		OrderRef:       d.OrderRef,
		NewStatus:      d.Status,
		PreviousStatus: previous,
		RecipientRefs:  d.RecipientRefs(),
	}, now)
}

// NewOrderStatusMirrorEvent asks the order service to mirror delivery progress
func NewOrderStatusMirrorEvent(d *Delivery, status OrderStatus, now time.Time) (*OutboxMessage, error) {
	return newDeliveryMessage(EventOrderStatusMirror, d.DeliveryID, OrderStatusSignal{
		OrderRef:   d.OrderRef,
		DeliveryID: d.DeliveryID,
		Status:     status,
	}, now)
}

// DecodeEvent unwraps an outbox payload and decodes its data into v.
func DecodeEvent(payload []byte, v interface{}) (*OutboxMessageEvent, error) {
	var event OutboxMessageEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, err
	}
	if v != nil {
		if err := json.Unmarshal(event.Data, v); err != nil {
			return nil, err
		}
	}
	return &event, nil
}
