package models

// OrderStatus is the order-side status mirrored from delivery progress.
// Orders themselves live in the order service.
type OrderStatus string

const (
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusDelivered  OrderStatus = "delivered"
)

// OrderStatusSignal is the payload sent to the order service
type OrderStatusSignal struct {
	OrderRef   string      `json:"order_ref"`
	DeliveryID string      `json:"delivery_id"`
	Status     OrderStatus `json:"status"`
}
