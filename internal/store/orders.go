package store

import (
	"context"
	"database/sql"
	"fmt"

	"pharmacy-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// CreateOrder inserts a new order and its line-item snapshots in one
// transaction.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO orders (id, user_id, user_name, user_email, status, total,
		                    delivery_option, delivery_address, delivery_fee,
		                    payment_method, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = tx.ExecContext(ctx, query,
		order.ID, order.UserID, order.UserName, order.UserEmail, order.Status,
		order.Total, order.DeliveryOption, order.DeliveryAddress, order.DeliveryFee,
		order.PaymentMethod, order.Notes, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	if err := insertItems(ctx, tx, order.ID, order.Items); err != nil {
		return err
	}

	return tx.Commit()
}

func insertItems(ctx context.Context, tx *sqlx.Tx, orderID string, items []models.OrderItem) error {
	query := `
		INSERT INTO order_items (order_id, product_id, name, price, unit, stock_at_add, quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	for _, item := range items {
		_, err := tx.ExecContext(ctx, query,
			orderID, item.ProductID, item.Name, item.Price, item.Unit,
			item.StockAtAdd, item.Quantity)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}
	return nil
}

// GetOrderByID retrieves an order with its items
func (s *Store) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order not found: %s", id)
	}
	if err != nil {
		return nil, err
	}

	if err := s.attachItems(ctx, []*models.Order{&order}); err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOrdersByUser retrieves a user's orders, newest first
func (s *Store) ListOrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE user_id = $1 ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, err
	}
	return s.withItems(ctx, orders)
}

// ListOrders retrieves all orders, newest first, optionally filtered by
// status.
func (s *Store) ListOrders(ctx context.Context, status string) ([]models.Order, error) {
	var orders []models.Order
	var err error
	if status == "" {
		err = s.db.SelectContext(ctx, &orders,
			"SELECT * FROM orders ORDER BY created_at DESC")
	} else {
		err = s.db.SelectContext(ctx, &orders,
			"SELECT * FROM orders WHERE status = $1 ORDER BY created_at DESC", status)
	}
	if err != nil {
		return nil, err
	}
	return s.withItems(ctx, orders)
}

func (s *Store) withItems(ctx context.Context, orders []models.Order) ([]models.Order, error) {
	refs := make([]*models.Order, len(orders))
	for i := range orders {
		refs[i] = &orders[i]
	}
	if err := s.attachItems(ctx, refs); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *Store) attachItems(ctx context.Context, orders []*models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, len(orders))
	byID := make(map[string]*models.Order, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		byID[o.ID] = o
		o.Items = []models.OrderItem{}
	}

	query, args, err := sqlx.In("SELECT * FROM order_items WHERE order_id IN (?) ORDER BY id", ids)
	if err != nil {
		return err
	}
	query = s.db.Rebind(query)

	var items []models.OrderItem
	if err := s.db.SelectContext(ctx, &items, query, args...); err != nil {
		return err
	}

	for _, item := range items {
		if o, ok := byID[item.OrderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	return nil
}

// UpdateOrderWithOutbox persists an order mutation and enqueues its
// side-effect notifications in a single transaction, so a committed
// transition can never lose its notifications.
func (s *Store) UpdateOrderWithOutbox(ctx context.Context, order *models.Order, entries []models.OutboxNotification) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		UPDATE orders
		SET status = $1, total = $2, delivery_option = $3, delivery_address = $4,
		    delivery_fee = $5, payment_method = $6, notes = $7, updated_at = $8
		WHERE id = $9`

	res, err := tx.ExecContext(ctx, query,
		order.Status, order.Total, order.DeliveryOption, order.DeliveryAddress,
		order.DeliveryFee, order.PaymentMethod, order.Notes, order.UpdatedAt, order.ID)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("order not found: %s", order.ID)
	}

	if err := insertOutbox(ctx, tx, entries); err != nil {
		return err
	}

	return tx.Commit()
}

func insertOutbox(ctx context.Context, tx *sqlx.Tx, entries []models.OutboxNotification) error {
	query := `
		INSERT INTO notification_outbox (id, user_id, type, title, message, order_id, attempts, delivered, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, false, $7)`

	for _, e := range entries {
		_, err := tx.ExecContext(ctx, query,
			e.ID, e.UserID, e.Type, e.Title, e.Message, e.OrderID, e.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to enqueue notification: %w", err)
		}
	}
	return nil
}

// ReplaceOrderItems swaps an order's line items and total atomically
// (pre-confirmation edits).
func (s *Store) ReplaceOrderItems(ctx context.Context, order *models.Order) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM order_items WHERE order_id = $1", order.ID); err != nil {
		return fmt.Errorf("failed to clear order items: %w", err)
	}

	if err := insertItems(ctx, tx, order.ID, order.Items); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE orders SET total = $1, updated_at = $2 WHERE id = $3",
		order.Total, order.UpdatedAt, order.ID)
	if err != nil {
		return fmt.Errorf("failed to update order total: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("order not found: %s", order.ID)
	}

	return tx.Commit()
}
