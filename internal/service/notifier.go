package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pharmacy-service/internal/models"
	"pharmacy-service/internal/util"
)

const unreadCacheTTL = 30 * time.Second

// Notifier builds the outbox entries that accompany order mutations and
// serves the notification read side. Entry construction is pure so the
// lifecycle engine can enqueue entries inside the same transaction as
// the order write.
type Notifier struct {
	users         UserDirectory
	notifications NotificationStore
	cache         UnreadCache
	logger        *zap.Logger
}

// NewNotifier creates a new notifier
func NewNotifier(users UserDirectory, notifications NotificationStore, cache UnreadCache) *Notifier {
	return &Notifier{
		users:         users,
		notifications: notifications,
		cache:         cache,
		logger:        util.GetLogger(),
	}
}

// StatusChangeEntry builds the customer-facing notification for a
// status the order just entered. The second return is false when the
// status has no customer notification.
func (n *Notifier) StatusChangeEntry(order *models.Order, status string) (models.OutboxNotification, bool) {
	var title, message string

	switch status {
	case models.StatusPharmacyConfirmed:
		title = "Order Ready for Verification"
		message = fmt.Sprintf(
			"Your order #%s has been confirmed by the pharmacy. Please review and confirm the items: %s",
			order.ShortID(), itemSummary(order.Items))
	case models.StatusCustomerConfirmed:
		title = "Order Confirmed"
		message = fmt.Sprintf("Your order #%s has been confirmed and is being prepared.", order.ShortID())
	case models.StatusProcessing:
		title = "Order Processing"
		message = fmt.Sprintf("Your order #%s is being processed and prepared for fulfillment.", order.ShortID())
	case models.StatusCompleted:
		title = "Order Completed"
		message = fmt.Sprintf("Your order #%s has been completed and is ready for pickup/delivery.", order.ShortID())
	case models.StatusCancelled:
		title = "Order Cancelled"
		message = fmt.Sprintf("Your order #%s has been cancelled.", order.ShortID())
	default:
		return models.OutboxNotification{}, false
	}

	return newEntry(order.UserID, models.NotificationOrderUpdate, title, message, order.ID), true
}

// ApprovalEntry builds the customer notification for a pharmacy
// approval of a confirmed order.
func (n *Notifier) ApprovalEntry(order *models.Order) models.OutboxNotification {
	message := fmt.Sprintf(
		"Your order #%s has been approved and confirmed by the pharmacy. We'll begin processing it shortly.",
		order.ShortID())
	return newEntry(order.UserID, models.NotificationOrderUpdate, "Order Approved", message, order.ID)
}

// ConfirmationFanOut builds one order_confirmation entry per admin
// user. Every admin gets the same summary of the customer's choices.
func (n *Notifier) ConfirmationFanOut(ctx context.Context, order *models.Order) ([]models.OutboxNotification, error) {
	ctx, span := util.StartSpan(ctx, "Notifier.ConfirmationFanOut")
	defer span.End()

	admins, err := n.users.ListAdmins(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list admins for fan-out: %w", err)
	}

	message := confirmationMessage(order)
	entries := make([]models.OutboxNotification, 0, len(admins))
	for _, admin := range admins {
		entries = append(entries, newEntry(
			admin.ID, models.NotificationOrderConfirmation,
			"Customer Order Confirmation", message, order.ID))
	}

	util.AdminFanoutSize.Observe(float64(len(entries)))
	return entries, nil
}

// List returns the caller's notifications, newest first.
func (n *Notifier) List(ctx context.Context, sess Session) ([]models.Notification, error) {
	ctx, span := util.StartSpan(ctx, "Notifier.List")
	defer span.End()

	return n.notifications.ListNotificationsByUser(ctx, sess.UserID)
}

// UnreadCount returns the caller's unread count, served from the cache
// when fresh.
func (n *Notifier) UnreadCount(ctx context.Context, sess Session) (int, error) {
	ctx, span := util.StartSpan(ctx, "Notifier.UnreadCount")
	defer span.End()

	if count, ok, err := n.cache.GetCachedUnreadCount(ctx, sess.UserID); err == nil && ok {
		return count, nil
	}

	count, err := n.notifications.CountUnreadNotifications(ctx, sess.UserID)
	if err != nil {
		return 0, err
	}

	if err := n.cache.SetCachedUnreadCount(ctx, sess.UserID, count, unreadCacheTTL); err != nil {
		n.logger.Warn("Failed to cache unread count", zap.Error(err))
	}
	return count, nil
}

// MarkRead flips the read flag on one of the caller's notifications.
// Marking an already-read notification is a no-op.
func (n *Notifier) MarkRead(ctx context.Context, sess Session, id string) error {
	ctx, span := util.StartSpan(ctx, "Notifier.MarkRead")
	defer span.End()

	notif, err := n.notifications.GetNotification(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: notification %s", ErrNotFound, id)
	}
	if notif.UserID != sess.UserID {
		return fmt.Errorf("%w: notification belongs to another user", ErrPermissionDenied)
	}

	if err := n.notifications.MarkNotificationRead(ctx, id); err != nil {
		return err
	}
	n.invalidate(ctx, sess.UserID)
	return nil
}

// MarkAllRead flips the read flag on all of the caller's unread
// notifications.
func (n *Notifier) MarkAllRead(ctx context.Context, sess Session) error {
	ctx, span := util.StartSpan(ctx, "Notifier.MarkAllRead")
	defer span.End()

	if err := n.notifications.MarkAllNotificationsRead(ctx, sess.UserID); err != nil {
		return err
	}
	n.invalidate(ctx, sess.UserID)
	return nil
}

func (n *Notifier) invalidate(ctx context.Context, userID string) {
	if err := n.cache.InvalidateUnreadCount(ctx, userID); err != nil {
		n.logger.Warn("Failed to invalidate unread cache",
			zap.String("user_id", userID), zap.Error(err))
	}
}

func newEntry(userID, notifType, title, message, orderID string) models.OutboxNotification {
	return models.OutboxNotification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Type:      notifType,
		Title:     title,
		Message:   message,
		OrderID:   orderID,
		CreatedAt: time.Now(),
	}
}

func itemSummary(items []models.OrderItem) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, fmt.Sprintf("%dx %s", it.Quantity, it.Name))
	}
	return strings.Join(parts, ", ")
}

func confirmationMessage(order *models.Order) string {
	payment := "Cash on Delivery"
	if order.PaymentMethod == models.PaymentMomo {
		payment = "Mobile Money (Momo)"
	}

	delivery := "Store Pickup"
	if order.DeliveryOption == models.DeliveryHome {
		delivery = fmt.Sprintf("Delivery to: %s", order.DeliveryAddress)
	}

	name := order.UserName
	if name == "" {
		name = order.UserEmail
	}

	return fmt.Sprintf(
		"Order #%s from %s has been confirmed.\n\nPayment: %s\n%s\n\nItems: %s\nTotal: GHS %.2f",
		order.ShortID(), name, payment, delivery,
		itemSummary(order.Items), order.GrandTotal())
}
