package store

import (
	"context"
	"database/sql"
	"fmt"

	"pharmacy-service/internal/models"
)

// CreateNotification inserts a notification record
func (s *Store) CreateNotification(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, type, title, message, order_id, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.db.ExecContext(ctx, query,
		n.ID, n.UserID, n.Type, n.Title, n.Message, n.OrderID, n.Read, n.CreatedAt)
	return err
}

// GetNotification retrieves a notification by ID
func (s *Store) GetNotification(ctx context.Context, id string) (*models.Notification, error) {
	var n models.Notification
	err := s.db.GetContext(ctx, &n, "SELECT * FROM notifications WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("notification not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// ListNotificationsByUser retrieves a user's notifications, newest first
func (s *Store) ListNotificationsByUser(ctx context.Context, userID string) ([]models.Notification, error) {
	var notifications []models.Notification
	err := s.db.SelectContext(ctx, &notifications,
		"SELECT * FROM notifications WHERE user_id = $1 ORDER BY created_at DESC", userID)
	return notifications, err
}

// MarkNotificationRead flips the read flag. Marking an already-read
// notification again is a no-op.
func (s *Store) MarkNotificationRead(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET read = true WHERE id = $1", id)
	return err
}

// MarkAllNotificationsRead flips the read flag on every unread
// notification for a user.
func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET read = true WHERE user_id = $1 AND read = false", userID)
	return err
}

// CountUnreadNotifications returns the number of unread notifications
// for a user.
func (s *Store) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read = false", userID)
	return count, err
}

// ListPendingOutbox retrieves undelivered outbox entries that have not
// exhausted their attempts, oldest first.
func (s *Store) ListPendingOutbox(ctx context.Context, limit, maxAttempts int) ([]models.OutboxNotification, error) {
	var entries []models.OutboxNotification
	err := s.db.SelectContext(ctx, &entries, `
		SELECT * FROM notification_outbox
		WHERE delivered = false AND attempts < $1
		ORDER BY created_at
		LIMIT $2`, maxAttempts, limit)
	return entries, err
}

// MarkOutboxDelivered marks an outbox entry as delivered
func (s *Store) MarkOutboxDelivered(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE notification_outbox SET delivered = true WHERE id = $1", id)
	return err
}

// RecordOutboxFailure bumps the attempt counter after a failed delivery
func (s *Store) RecordOutboxFailure(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE notification_outbox SET attempts = attempts + 1 WHERE id = $1", id)
	return err
}

// CreateAuditLog appends an audit record
func (s *Store) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	query := `
		INSERT INTO audit_logs (action, user_id, details, timestamp)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	return s.db.GetContext(ctx, &entry.ID, query,
		entry.Action, entry.UserID, entry.Details, entry.Timestamp)
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
