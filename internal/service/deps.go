package service

import (
	"context"
	"time"

	"pharmacy-service/internal/models"
)

// The store collaborators are consumed through narrow interfaces so the
// lifecycle rules can be exercised without a database. *store.Store
// satisfies all of them.

// OrderStore is the order persistence collaborator.
type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]models.Order, error)
	ListOrders(ctx context.Context, status string) ([]models.Order, error)
	UpdateOrderWithOutbox(ctx context.Context, order *models.Order, entries []models.OutboxNotification) error
	ReplaceOrderItems(ctx context.Context, order *models.Order) error
}

// UserDirectory resolves identities and roles.
type UserDirectory interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListAdmins(ctx context.Context) ([]models.User, error)
	UpsertUser(ctx context.Context, u *models.User) error
	UpdateUserRole(ctx context.Context, id, role string) error
}

// NotificationStore is the notification persistence collaborator.
type NotificationStore interface {
	GetNotification(ctx context.Context, id string) (*models.Notification, error)
	ListNotificationsByUser(ctx context.Context, userID string) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) error
	CountUnreadNotifications(ctx context.Context, userID string) (int, error)
}

// ProductStore is the catalog persistence collaborator.
type ProductStore interface {
	GetProductByID(ctx context.Context, id string) (*models.Product, error)
	GetProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error)
	ListProducts(ctx context.Context, includeHidden bool) ([]models.Product, error)
	CreateProduct(ctx context.Context, p *models.Product) error
	UpdateProduct(ctx context.Context, p *models.Product) error
	UpdateProductStock(ctx context.Context, id string, stock int) error
	DeleteProduct(ctx context.Context, id string) error
}

// Publisher emits lifecycle events to the broker. Publishing is
// fire-and-forget; a failed publish never rolls back a transition.
type Publisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
	PublishOrderConfirmed(ctx context.Context, event *models.OrderConfirmedEvent) error
	PublishOrderItemsEdited(ctx context.Context, event *models.OrderItemsEditedEvent) error
}

// CartBackend holds per-user carts.
type CartBackend interface {
	GetCart(ctx context.Context, userID string) (map[string]int, error)
	AddCartItem(ctx context.Context, userID, productID string, delta int) (int, error)
	SetCartQuantity(ctx context.Context, userID, productID string, quantity int) error
	RemoveCartItem(ctx context.Context, userID, productID string) error
	ClearCart(ctx context.Context, userID string) error
}

// UnreadCache caches unread notification counts.
type UnreadCache interface {
	GetCachedUnreadCount(ctx context.Context, userID string) (int, bool, error)
	SetCachedUnreadCount(ctx context.Context, userID string, count int, ttl time.Duration) error
	InvalidateUnreadCount(ctx context.Context, userID string) error
}
