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

// Engine owns the order lifecycle: placement, the guarded status walk,
// the customer confirmation handshake, pharmacy approval, the admin
// override path and pre-confirmation item edits. Every mutation that
// has to notify someone writes its outbox entries in the same store
// transaction as the order row.
type Engine struct {
	orders      OrderStore
	notifier    *Notifier
	publisher   Publisher
	deliveryFee float64
	logger      *zap.Logger
}

// NewEngine creates a new lifecycle engine
func NewEngine(orders OrderStore, notifier *Notifier, publisher Publisher, deliveryFee float64) *Engine {
	return &Engine{
		orders:      orders,
		notifier:    notifier,
		publisher:   publisher,
		deliveryFee: deliveryFee,
		logger:      util.GetLogger(),
	}
}

// ConfirmRequest carries the customer's delivery and payment choices.
type ConfirmRequest struct {
	DeliveryOption  string `json:"delivery_option" binding:"required"`
	DeliveryAddress string `json:"delivery_address"`
	PaymentMethod   string `json:"payment_method" binding:"required"`
	Notes           string `json:"notes"`
}

// ItemEdit names a line item and its new quantity. Quantity zero
// removes the line.
type ItemEdit struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity"`
}

// PlaceOrder creates a pending order from the given item snapshots.
func (e *Engine) PlaceOrder(ctx context.Context, sess Session, items []models.OrderItem) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "Engine.PlaceOrder")
	defer span.End()

	if len(items) == 0 {
		return nil, fmt.Errorf("%w: cart is empty", ErrValidation)
	}
	for _, it := range items {
		if it.Quantity < 1 {
			return nil, fmt.Errorf("%w: quantity must be at least 1 for %s", ErrValidation, it.ProductID)
		}
	}

	now := time.Now()
	order := &models.Order{
		ID:        uuid.New().String(),
		UserID:    sess.UserID,
		UserName:  sess.Name,
		UserEmail: sess.Email,
		Status:    models.StatusPending,
		Total:     models.Subtotal(items),
		Items:     items,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := e.orders.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	util.OrdersPlacedTotal.Inc()
	e.logger.Info("Order placed",
		zap.String("order_id", order.ID),
		zap.String("user_id", sess.UserID),
		zap.Float64("total", order.Total))

	e.publish(ctx, order.ID, func() error {
		return e.publisher.PublishOrderPlaced(ctx, &models.OrderPlacedEvent{
			BaseEvent: newBaseEvent(models.EventTypeOrderPlaced),
			OrderID:   order.ID,
			UserID:    order.UserID,
			Total:     order.Total,
			Items:     toItemData(order.Items),
		})
	})

	return order, nil
}

// GetOrder returns one order. Customers see only their own orders;
// admins and staff with order access see any.
func (e *Engine) GetOrder(ctx context.Context, sess Session, orderID string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "Engine.GetOrder")
	defer span.End()

	order, err := e.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
	}
	if order.UserID != sess.UserID && !sess.CanViewOrders() {
		return nil, fmt.Errorf("%w: order belongs to another user", ErrPermissionDenied)
	}
	return order, nil
}

// ListOrders returns the caller's orders, or every order for admins
// and staff with order access, optionally filtered by status and a
// free-text search over customer name, email and order id.
func (e *Engine) ListOrders(ctx context.Context, sess Session, status, search string) ([]models.Order, error) {
	ctx, span := util.StartSpan(ctx, "Engine.ListOrders")
	defer span.End()

	if status != "" && !models.IsValidStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}

	if !sess.CanViewOrders() {
		return e.orders.ListOrdersByUser(ctx, sess.UserID)
	}

	orders, err := e.orders.ListOrders(ctx, status)
	if err != nil {
		return nil, err
	}

	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return orders, nil
	}

	filtered := orders[:0]
	for _, o := range orders {
		if strings.Contains(strings.ToLower(o.UserName), search) ||
			strings.Contains(strings.ToLower(o.UserEmail), search) ||
			strings.Contains(strings.ToLower(o.ID), search) {
			filtered = append(filtered, o)
		}
	}
	return filtered, nil
}

// AdvanceStatus applies one guarded transition. Entering
// pharmacy_confirmed notifies the customer that the order is ready for
// verification; the other guarded hops carry no notification.
func (e *Engine) AdvanceStatus(ctx context.Context, sess Session, orderID, to string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "Engine.AdvanceStatus")
	defer span.End()

	if !models.IsValidStatus(to) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, to)
	}

	order, err := e.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
	}

	from := order.Status
	if !CanTransition(sess, order, to) {
		util.OrderTransitionsRejected.WithLabelValues("guarded").Inc()
		return nil, fmt.Errorf("%w: %s -> %s for role %s", ErrInvalidTransition, from, to, sess.Role)
	}

	var entries []models.OutboxNotification
	if to == models.StatusPharmacyConfirmed {
		if entry, ok := e.notifier.StatusChangeEntry(order, to); ok {
			entries = append(entries, entry)
		}
	}

	order.Status = to
	order.UpdatedAt = time.Now()
	if err := e.orders.UpdateOrderWithOutbox(ctx, order, entries); err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	e.recordTransition(from, to, "guarded", entries)
	e.logger.Info("Order status advanced",
		zap.String("order_id", order.ID),
		zap.String("from", from),
		zap.String("to", to),
		zap.String("actor_id", sess.UserID))

	e.publishStatusChanged(ctx, order, from, to, sess, false)
	return order, nil
}

// ConfirmOrder records the customer's delivery and payment choices,
// moves the order to customer_confirmed and fans a confirmation
// notification out to every admin. Home delivery requires an address
// and adds the flat delivery fee; pickup carries no fee.
func (e *Engine) ConfirmOrder(ctx context.Context, sess Session, orderID string, req ConfirmRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "Engine.ConfirmOrder")
	defer span.End()

	order, err := e.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
	}
	if order.UserID != sess.UserID {
		return nil, fmt.Errorf("%w: order belongs to another user", ErrPermissionDenied)
	}
	if order.AwaitingApproval() {
		return nil, fmt.Errorf("%w: order already confirmed and awaiting approval", ErrValidation)
	}
	if !CanTransition(sess, order, models.StatusCustomerConfirmed) {
		util.OrderTransitionsRejected.WithLabelValues("guarded").Inc()
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, models.StatusCustomerConfirmed)
	}

	if req.DeliveryOption != models.DeliveryPickup && req.DeliveryOption != models.DeliveryHome {
		return nil, fmt.Errorf("%w: unknown delivery option %q", ErrValidation, req.DeliveryOption)
	}
	if req.PaymentMethod != models.PaymentMomo && req.PaymentMethod != models.PaymentCash {
		return nil, fmt.Errorf("%w: unknown payment method %q", ErrValidation, req.PaymentMethod)
	}

	switch req.DeliveryOption {
	case models.DeliveryHome:
		if strings.TrimSpace(req.DeliveryAddress) == "" {
			return nil, fmt.Errorf("%w: delivery address is required for home delivery", ErrValidation)
		}
		order.DeliveryAddress = strings.TrimSpace(req.DeliveryAddress)
		order.DeliveryFee = e.deliveryFee
	case models.DeliveryPickup:
		order.DeliveryAddress = ""
		order.DeliveryFee = 0
	}

	from := order.Status
	order.DeliveryOption = req.DeliveryOption
	order.PaymentMethod = req.PaymentMethod
	order.Notes = req.Notes
	order.Status = models.StatusCustomerConfirmed
	order.UpdatedAt = time.Now()

	entries, err := e.notifier.ConfirmationFanOut(ctx, order)
	if err != nil {
		return nil, err
	}

	if err := e.orders.UpdateOrderWithOutbox(ctx, order, entries); err != nil {
		return nil, fmt.Errorf("failed to confirm order: %w", err)
	}

	util.OrdersConfirmedTotal.Inc()
	e.recordTransition(from, order.Status, "guarded", entries)
	e.logger.Info("Order confirmed by customer",
		zap.String("order_id", order.ID),
		zap.String("delivery_option", order.DeliveryOption),
		zap.String("payment_method", order.PaymentMethod),
		zap.Float64("grand_total", order.GrandTotal()),
		zap.Int("admins_notified", len(entries)))

	e.publish(ctx, order.ID, func() error {
		return e.publisher.PublishOrderConfirmed(ctx, &models.OrderConfirmedEvent{
			BaseEvent:      newBaseEvent(models.EventTypeOrderConfirmed),
			OrderID:        order.ID,
			UserID:         order.UserID,
			DeliveryOption: order.DeliveryOption,
			PaymentMethod:  order.PaymentMethod,
			GrandTotal:     order.GrandTotal(),
		})
	})
	e.publishStatusChanged(ctx, order, from, order.Status, sess, false)

	return order, nil
}

// ApproveConfirmation moves a customer-confirmed order to processing
// and tells the customer the pharmacy accepted it.
func (e *Engine) ApproveConfirmation(ctx context.Context, sess Session, orderID string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "Engine.ApproveConfirmation")
	defer span.End()

	order, err := e.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
	}

	from := order.Status
	if !CanTransition(sess, order, models.StatusProcessing) {
		util.OrderTransitionsRejected.WithLabelValues("guarded").Inc()
		return nil, fmt.Errorf("%w: %s -> %s for role %s", ErrInvalidTransition, from, models.StatusProcessing, sess.Role)
	}

	entries := []models.OutboxNotification{e.notifier.ApprovalEntry(order)}

	order.Status = models.StatusProcessing
	order.UpdatedAt = time.Now()
	if err := e.orders.UpdateOrderWithOutbox(ctx, order, entries); err != nil {
		return nil, fmt.Errorf("failed to approve order: %w", err)
	}

	e.recordTransition(from, order.Status, "guarded", entries)
	e.logger.Info("Order confirmation approved",
		zap.String("order_id", order.ID),
		zap.String("actor_id", sess.UserID))

	e.publishStatusChanged(ctx, order, from, order.Status, sess, false)
	return order, nil
}

// OverrideStatus is the unguarded admin path: any valid status can be
// set on any non-terminal order, with no notification side effects.
func (e *Engine) OverrideStatus(ctx context.Context, sess Session, orderID, to string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "Engine.OverrideStatus")
	defer span.End()

	if !sess.IsAdmin() {
		return nil, fmt.Errorf("%w: override requires admin role", ErrPermissionDenied)
	}
	if !models.IsValidStatus(to) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, to)
	}

	order, err := e.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
	}

	from := order.Status
	if models.IsTerminalStatus(from) {
		util.OrderTransitionsRejected.WithLabelValues("terminal").Inc()
		return nil, fmt.Errorf("%w: order is already %s", ErrInvalidTransition, from)
	}

	order.Status = to
	order.UpdatedAt = time.Now()
	if err := e.orders.UpdateOrderWithOutbox(ctx, order, nil); err != nil {
		return nil, fmt.Errorf("failed to override order status: %w", err)
	}

	e.recordTransition(from, to, "override", nil)
	e.logger.Info("Order status overridden",
		zap.String("order_id", order.ID),
		zap.String("from", from),
		zap.String("to", to),
		zap.String("actor_id", sess.UserID))

	e.publishStatusChanged(ctx, order, from, to, sess, true)
	return order, nil
}

// EditItems lets an admin change quantities or remove line items while
// the order has not yet been shown to the customer for verification.
// Edits name a product and its new quantity; zero removes the line,
// unnamed lines are untouched. The stored total is recomputed from the
// surviving lines before the write.
func (e *Engine) EditItems(ctx context.Context, sess Session, orderID string, edits []ItemEdit) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "Engine.EditItems")
	defer span.End()

	if !sess.IsAdmin() {
		return nil, fmt.Errorf("%w: item edits require admin role", ErrPermissionDenied)
	}
	if len(edits) == 0 {
		return nil, fmt.Errorf("%w: no edits given", ErrValidation)
	}

	order, err := e.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
	}
	if order.Status != models.StatusPending && order.Status != models.StatusCheckingStock {
		return nil, fmt.Errorf("%w: items are frozen once the order reaches %s", ErrInvalidTransition, order.Status)
	}

	wanted := make(map[string]int, len(edits))
	for _, edit := range edits {
		if edit.Quantity < 0 {
			return nil, fmt.Errorf("%w: negative quantity for %s", ErrValidation, edit.ProductID)
		}
		wanted[edit.ProductID] = edit.Quantity
	}

	items := make([]models.OrderItem, 0, len(order.Items))
	for _, it := range order.Items {
		qty, edited := wanted[it.ProductID]
		if !edited {
			items = append(items, it)
			continue
		}
		if qty == 0 {
			continue
		}
		it.Quantity = qty
		items = append(items, it)
	}

	order.Items = items
	order.Total = models.Subtotal(items)
	order.UpdatedAt = time.Now()
	if err := e.orders.ReplaceOrderItems(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to edit order items: %w", err)
	}

	e.logger.Info("Order items edited",
		zap.String("order_id", order.ID),
		zap.String("actor_id", sess.UserID),
		zap.Int("items", len(items)),
		zap.Float64("new_total", order.Total))

	e.publish(ctx, order.ID, func() error {
		return e.publisher.PublishOrderItemsEdited(ctx, &models.OrderItemsEditedEvent{
			BaseEvent: newBaseEvent(models.EventTypeOrderItemsEdited),
			OrderID:   order.ID,
			ActorID:   sess.UserID,
			NewTotal:  order.Total,
		})
	})

	return order, nil
}

func (e *Engine) recordTransition(from, to, path string, entries []models.OutboxNotification) {
	util.OrderTransitionsTotal.WithLabelValues(from, to, path).Inc()
	for _, entry := range entries {
		util.NotificationsEnqueuedTotal.WithLabelValues(entry.Type).Inc()
	}
}

func (e *Engine) publishStatusChanged(ctx context.Context, order *models.Order, from, to string, sess Session, override bool) {
	e.publish(ctx, order.ID, func() error {
		return e.publisher.PublishOrderStatusChanged(ctx, &models.OrderStatusChangedEvent{
			BaseEvent:  newBaseEvent(models.EventTypeOrderStatusChange),
			OrderID:    order.ID,
			UserID:     order.UserID,
			FromStatus: from,
			ToStatus:   to,
			ActorID:    sess.UserID,
			ActorRole:  sess.Role,
			Override:   override,
		})
	})
}

// publish runs a broker publish and logs failures. Events are a
// downstream feed; a broker outage never rolls back the order write.
func (e *Engine) publish(ctx context.Context, orderID string, fn func() error) {
	if err := fn(); err != nil {
		e.logger.Error("Failed to publish event",
			zap.String("order_id", orderID), zap.Error(err))
	}
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

func toItemData(items []models.OrderItem) []models.OrderItemData {
	data := make([]models.OrderItemData, 0, len(items))
	for _, it := range items {
		data = append(data, models.OrderItemData{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.Price,
		})
	}
	return data
}
