package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"pharmacy-service/internal/broker"
	"pharmacy-service/internal/models"
	"pharmacy-service/internal/util"
)

// AuditStore is what the audit worker needs from the store.
type AuditStore interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
}

// AuditWorker consumes the order event stream and appends one audit
// record per event. Processed event ids are tracked so redelivered
// messages never produce duplicate rows.
type AuditWorker struct {
	consumer *broker.Consumer
	store    AuditStore
	logger   *zap.Logger
}

// NewAuditWorker creates a new audit worker
func NewAuditWorker(consumer *broker.Consumer, store AuditStore) *AuditWorker {
	return &AuditWorker{
		consumer: consumer,
		store:    store,
		logger:   util.GetLogger(),
	}
}

// Start consumes events until the context is cancelled.
func (w *AuditWorker) Start(ctx context.Context) error {
	return w.consumer.StartConsuming(ctx, w.handleMessage)
}

func (w *AuditWorker) handleMessage(ctx context.Context, msg kafka.Message) error {
	var base models.BaseEvent
	if err := json.Unmarshal(msg.Value, &base); err != nil {
		// Malformed payloads are logged and committed, not retried.
		w.logger.Warn("Skipping malformed event", zap.Error(err))
		return nil
	}

	processed, err := w.store.IsEventProcessed(ctx, base.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event %s: %w", base.EventID, err)
	}
	if processed {
		w.logger.Debug("Skipping already-processed event",
			zap.String("event_id", base.EventID))
		return nil
	}

	entry, err := auditEntry(base.EventType, msg.Value)
	if err != nil {
		w.logger.Warn("Skipping event with unusable payload",
			zap.String("event_id", base.EventID), zap.Error(err))
		return nil
	}
	entry.Timestamp = base.Timestamp
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	if err := w.store.CreateAuditLog(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit log for %s: %w", base.EventID, err)
	}
	if err := w.store.MarkEventProcessed(ctx, base.EventID, base.EventType); err != nil {
		return fmt.Errorf("failed to mark event %s processed: %w", base.EventID, err)
	}

	util.AuditEventsTotal.Inc()
	return nil
}

// auditEntry renders an event payload into an audit row.
func auditEntry(eventType string, payload []byte) (*models.AuditLog, error) {
	switch eventType {
	case models.EventTypeOrderPlaced:
		var ev models.OrderPlacedEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, err
		}
		return &models.AuditLog{
			Action: "order_placed",
			UserID: ev.UserID,
			Details: fmt.Sprintf("order %s placed with %d items, total %.2f",
				models.ShortID(ev.OrderID), len(ev.Items), ev.Total),
		}, nil

	case models.EventTypeOrderStatusChange:
		var ev models.OrderStatusChangedEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, err
		}
		path := "guarded"
		if ev.Override {
			path = "override"
		}
		return &models.AuditLog{
			Action: "order_status_changed",
			UserID: ev.ActorID,
			Details: fmt.Sprintf("order %s: %s -> %s (%s, by %s)",
				models.ShortID(ev.OrderID), ev.FromStatus, ev.ToStatus, path, ev.ActorRole),
		}, nil

	case models.EventTypeOrderConfirmed:
		var ev models.OrderConfirmedEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, err
		}
		return &models.AuditLog{
			Action: "order_confirmed",
			UserID: ev.UserID,
			Details: fmt.Sprintf("order %s confirmed: %s / %s, payable %.2f",
				models.ShortID(ev.OrderID), ev.DeliveryOption, ev.PaymentMethod, ev.GrandTotal),
		}, nil

	case models.EventTypeOrderItemsEdited:
		var ev models.OrderItemsEditedEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, err
		}
		return &models.AuditLog{
			Action: "order_items_edited",
			UserID: ev.ActorID,
			Details: fmt.Sprintf("order %s items edited, new total %.2f",
				models.ShortID(ev.OrderID), ev.NewTotal),
		}, nil
	}

	return nil, fmt.Errorf("unknown event type %q", eventType)
}
