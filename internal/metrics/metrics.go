package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "herdstore",
		Name:      "orders_placed_total",
		Help:      "Orders committed by the intake pipeline.",
	})

	SoldOutRejections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "herdstore",
		Name:      "sold_out_rejections_total",
		Help:      "Purchase attempts that lost the reservation race.",
	})

	DuplicatesSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "herdstore",
		Name:      "duplicates_suppressed_total",
		Help:      "Redelivered events suppressed by the deduplicator.",
	})

	NotificationsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "herdstore",
		Name:      "notifications_failed_total",
		Help:      "Post-commit notification sends that errored.",
	})

	NotificationsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "herdstore",
		Name:      "notifications_dropped_total",
		Help:      "Notifications dropped because the queue was full.",
	})

	PlaceOrderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "herdstore",
		Name:      "place_order_duration_seconds",
		Help:      "End-to-end latency of PlaceOrder.",
		Buckets:   prometheus.DefBuckets,
	})
)
