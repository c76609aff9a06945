package models

import "time"

// Event types
const (
	EventTypeOrderPlaced       = "ORDER_PLACED"
	EventTypeOrderStatusChange = "ORDER_STATUS_CHANGED"
	EventTypeOrderConfirmed    = "ORDER_CONFIRMED"
	EventTypeOrderItemsEdited  = "ORDER_ITEMS_EDITED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderPlacedEvent published when a customer checks out a cart
type OrderPlacedEvent struct {
	BaseEvent
	OrderID string          `json:"order_id"`
	UserID  string          `json:"user_id"`
	Total   float64         `json:"total"`
	Items   []OrderItemData `json:"items"`
}

// OrderStatusChangedEvent published on every status transition,
// guarded or overridden
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID    string `json:"order_id"`
	UserID     string `json:"user_id"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
	ActorID    string `json:"actor_id"`
	ActorRole  string `json:"actor_role"`
	Override   bool   `json:"override"`
}

// OrderConfirmedEvent published when the customer confirms delivery and
// payment terms
type OrderConfirmedEvent struct {
	BaseEvent
	OrderID        string  `json:"order_id"`
	UserID         string  `json:"user_id"`
	DeliveryOption string  `json:"delivery_option"`
	PaymentMethod  string  `json:"payment_method"`
	GrandTotal     float64 `json:"grand_total"`
}

// OrderItemsEditedEvent published when an admin edits line items before
// confirmation
type OrderItemsEditedEvent struct {
	BaseEvent
	OrderID  string  `json:"order_id"`
	ActorID  string  `json:"actor_id"`
	NewTotal float64 `json:"new_total"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}
