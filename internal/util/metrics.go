package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersPlacedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Total number of orders placed at checkout",
	})

	OrderTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Total number of applied order status transitions",
	}, []string{"from", "to", "path"})

	OrderTransitionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_rejected_total",
		Help: "Total number of rejected order status transitions",
	}, []string{"reason"})

	OrdersConfirmedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_confirmed_total",
		Help: "Total number of customer order confirmations",
	})

	NotificationsEnqueuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_enqueued_total",
		Help: "Total number of notifications enqueued to the outbox",
	}, []string{"type"})

	NotificationsDeliveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifications_delivered_total",
		Help: "Total number of notifications delivered from the outbox",
	})

	OutboxDeliveryFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_delivery_failures_total",
		Help: "Total number of failed outbox delivery attempts",
	})

	AdminFanoutSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "admin_fanout_size",
		Help:    "Number of admin recipients per confirmation fan-out",
		Buckets: []float64{1, 2, 5, 10, 20, 50},
	})

	CartOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_operations_total",
		Help: "Total number of cart mutations",
	}, []string{"op"})

	AuditEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audit_events_total",
		Help: "Total number of lifecycle events written to the audit log",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
