package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"pharmacy-service/internal/models"
	"pharmacy-service/internal/util"
)

// OutboxStore is what the outbox worker needs from the store.
type OutboxStore interface {
	ListPendingOutbox(ctx context.Context, limit, maxAttempts int) ([]models.OutboxNotification, error)
	CreateNotification(ctx context.Context, n *models.Notification) error
	MarkOutboxDelivered(ctx context.Context, id string) error
	RecordOutboxFailure(ctx context.Context, id string) error
}

// UnreadCache invalidates cached unread counts after a delivery.
type UnreadCache interface {
	InvalidateUnreadCount(ctx context.Context, userID string) error
}

// OutboxWorker drains the notification outbox. Order mutations enqueue
// entries transactionally; this worker turns them into visible
// notifications, retrying failures until the attempt budget runs out.
type OutboxWorker struct {
	store       OutboxStore
	cache       UnreadCache
	interval    time.Duration
	maxAttempts int
	batchSize   int
	logger      *zap.Logger
}

// NewOutboxWorker creates a new outbox worker
func NewOutboxWorker(store OutboxStore, cache UnreadCache, interval time.Duration, maxAttempts int) *OutboxWorker {
	return &OutboxWorker{
		store:       store,
		cache:       cache,
		interval:    interval,
		maxAttempts: maxAttempts,
		batchSize:   100,
		logger:      util.GetLogger(),
	}
}

// Start polls the outbox until the context is cancelled.
func (w *OutboxWorker) Start(ctx context.Context) {
	w.logger.Info("Starting outbox worker",
		zap.Duration("interval", w.interval),
		zap.Int("max_attempts", w.maxAttempts))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Outbox worker stopping")
			return
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

func (w *OutboxWorker) drain(ctx context.Context) {
	entries, err := w.store.ListPendingOutbox(ctx, w.batchSize, w.maxAttempts)
	if err != nil {
		w.logger.Error("Failed to list pending outbox entries", zap.Error(err))
		return
	}

	for i := range entries {
		w.deliver(ctx, &entries[i])
	}
}

// deliver turns one outbox entry into a notification. The notification
// reuses the entry id, so a crash between the insert and the delivered
// flag cannot duplicate it.
func (w *OutboxWorker) deliver(ctx context.Context, entry *models.OutboxNotification) {
	notification := &models.Notification{
		ID:        entry.ID,
		UserID:    entry.UserID,
		Type:      entry.Type,
		Title:     entry.Title,
		Message:   entry.Message,
		OrderID:   entry.OrderID,
		CreatedAt: entry.CreatedAt,
	}

	if err := w.store.CreateNotification(ctx, notification); err != nil {
		util.OutboxDeliveryFailures.Inc()
		w.logger.Warn("Outbox delivery failed",
			zap.String("entry_id", entry.ID),
			zap.Int("attempts", entry.Attempts+1),
			zap.Error(err))
		if err := w.store.RecordOutboxFailure(ctx, entry.ID); err != nil {
			w.logger.Error("Failed to record outbox failure", zap.Error(err))
		}
		return
	}

	if err := w.store.MarkOutboxDelivered(ctx, entry.ID); err != nil {
		w.logger.Error("Failed to mark outbox entry delivered",
			zap.String("entry_id", entry.ID), zap.Error(err))
		return
	}

	util.NotificationsDeliveredTotal.Inc()
	if err := w.cache.InvalidateUnreadCount(ctx, entry.UserID); err != nil {
		w.logger.Warn("Failed to invalidate unread cache",
			zap.String("user_id", entry.UserID), zap.Error(err))
	}
}
