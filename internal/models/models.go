package models

import "time"

// Product represents an item in the pharmacy inventory
type Product struct {
	ID          string     `db:"id" json:"id"`
	Name        string     `db:"name" json:"name"`
	Category    string     `db:"category" json:"category"`
	Price       float64    `db:"price" json:"price"`
	Stock       int        `db:"stock" json:"stock"`
	Unit        string     `db:"unit" json:"unit"`
	Description string     `db:"description" json:"description,omitempty"`
	ImageURL    string     `db:"image_url" json:"image_url,omitempty"`
	Code        string     `db:"code" json:"code,omitempty"`
	ExpiryDate  *time.Time `db:"expiry_date" json:"expiry_date,omitempty"`
	IsHidden    bool       `db:"is_hidden" json:"is_hidden"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// OrderItem is an immutable snapshot of a product at the time it was
// added to an order, plus the ordered quantity.
type OrderItem struct {
	ID         int64   `db:"id" json:"-"`
	OrderID    string  `db:"order_id" json:"-"`
	ProductID  string  `db:"product_id" json:"product_id"`
	Name       string  `db:"name" json:"name"`
	Price      float64 `db:"price" json:"price"`
	Unit       string  `db:"unit" json:"unit"`
	StockAtAdd int     `db:"stock_at_add" json:"stock_at_add"`
	Quantity   int     `db:"quantity" json:"quantity"`
}

// Order is a customer's placed request for a set of priced line items,
// tracked through the status lifecycle.
type Order struct {
	ID              string      `db:"id" json:"id"`
	UserID          string      `db:"user_id" json:"user_id"`
	UserName        string      `db:"user_name" json:"user_name,omitempty"`
	UserEmail       string      `db:"user_email" json:"user_email,omitempty"`
	Status          string      `db:"status" json:"status"`
	Total           float64     `db:"total" json:"total"`
	DeliveryOption  string      `db:"delivery_option" json:"delivery_option,omitempty"`
	DeliveryAddress string      `db:"delivery_address" json:"delivery_address,omitempty"`
	DeliveryFee     float64     `db:"delivery_fee" json:"delivery_fee"`
	PaymentMethod   string      `db:"payment_method" json:"payment_method,omitempty"`
	Notes           string      `db:"notes" json:"notes,omitempty"`
	Items           []OrderItem `db:"-" json:"items"`
	CreatedAt       time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at" json:"updated_at"`
}

// Order statuses
const (
	StatusPending           = "pending"
	StatusCheckingStock     = "checking_stock"
	StatusPharmacyConfirmed = "pharmacy_confirmed"
	StatusCustomerConfirmed = "customer_confirmed"
	StatusProcessing        = "processing"
	StatusCompleted         = "completed"
	StatusCancelled         = "cancelled"
)

// Delivery options
const (
	DeliveryPickup = "pickup"
	DeliveryHome   = "delivery"
)

// Payment methods
const (
	PaymentMomo = "momo"
	PaymentCash = "cash"
)

// IsValidStatus reports whether s is one of the known order statuses.
func IsValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusCheckingStock, StatusPharmacyConfirmed,
		StatusCustomerConfirmed, StatusProcessing, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// IsTerminalStatus reports whether s is an absorbing state.
func IsTerminalStatus(s string) bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Subtotal is the exact sum of price*quantity over the given items.
func Subtotal(items []OrderItem) float64 {
	var sum float64
	for _, it := range items {
		sum += it.Price * float64(it.Quantity)
	}
	return sum
}

// GrandTotal is the payable amount: item total plus delivery fee.
func (o *Order) GrandTotal() float64 {
	return o.Total + o.DeliveryFee
}

// AwaitingApproval reports whether the customer has already submitted
// delivery/payment details while the order still sits in
// pharmacy_confirmed. Derived from field presence, not a stored state.
func (o *Order) AwaitingApproval() bool {
	return o.Status == StatusPharmacyConfirmed &&
		(o.PaymentMethod != "" || o.DeliveryOption != "")
}

// ShortID is the 8-character order reference used in user-facing text.
func (o *Order) ShortID() string {
	return ShortID(o.ID)
}

// ShortID truncates an opaque id for display.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Notification is immutable once created except for its read flag.
type Notification struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Type      string    `db:"type" json:"type"`
	Title     string    `db:"title" json:"title"`
	Message   string    `db:"message" json:"message"`
	OrderID   string    `db:"order_id" json:"order_id,omitempty"`
	Read      bool      `db:"read" json:"read"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Notification types
const (
	NotificationOrderUpdate       = "order_update"
	NotificationOrderConfirmation = "order_confirmation"
	NotificationAdminMessage      = "admin_message"
	NotificationSystem            = "system"
)

// OutboxNotification is a pending notification write, enqueued in the
// same transaction as the order mutation that triggered it and
// delivered asynchronously by the outbox worker.
type OutboxNotification struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Type      string    `db:"type" json:"type"`
	Title     string    `db:"title" json:"title"`
	Message   string    `db:"message" json:"message"`
	OrderID   string    `db:"order_id" json:"order_id,omitempty"`
	Attempts  int       `db:"attempts" json:"attempts"`
	Delivered bool      `db:"delivered" json:"delivered"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// StaffPermissions is the per-staff permission set.
type StaffPermissions struct {
	CanManageInventory  bool `json:"can_manage_inventory"`
	CanViewOrders       bool `json:"can_view_orders"`
	CanUpdateStock      bool `json:"can_update_stock"`
	CanViewAnalytics    bool `json:"can_view_analytics"`
	CanGenerateInvoices bool `json:"can_generate_invoices"`
}

// User roles
const (
	RoleAdmin  = "admin"
	RoleClient = "client"
	RoleStaff  = "staff"
)

// User is an authenticated account. Identity itself comes from the
// external auth provider; this record carries the role resolution.
type User struct {
	ID          string           `db:"id" json:"id"`
	Email       string           `db:"email" json:"email"`
	Name        string           `db:"name" json:"name,omitempty"`
	Phone       string           `db:"phone" json:"phone,omitempty"`
	PhotoURL    string           `db:"photo_url" json:"photo_url,omitempty"`
	Role        string           `db:"role" json:"role"`
	Permissions StaffPermissions `db:"-" json:"permissions,omitempty"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
}

// AuditLog records an order lifecycle action, written by the audit
// worker from the event stream.
type AuditLog struct {
	ID        int64     `db:"id" json:"id"`
	Action    string    `db:"action" json:"action"`
	UserID    string    `db:"user_id" json:"user_id"`
	Details   string    `db:"details" json:"details"`
	Timestamp time.Time `db:"timestamp" json:"timestamp"`
}

// CartItem is a product snapshot plus quantity held in a user's cart.
type CartItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Unit      string  `json:"unit"`
	Stock     int     `json:"stock"`
	Quantity  int     `json:"quantity"`
}

// ProcessedEvent for consumer idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
