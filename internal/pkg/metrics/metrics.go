// internal/pkg/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_order_events_consumed_total",
		Help: "Order events fetched from the order topic.",
	})

	DuplicateEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_duplicate_events_total",
		Help: "Order events skipped by the idempotency guard.",
	})

	MalformedEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_malformed_events_total",
		Help: "Order events dropped because the payload failed validation.",
	})

	ReservationOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_reservation_outcomes_total",
		Help: "Terminal reservation outcomes by event type.",
	}, []string{"event_type"})

	CacheFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_stock_cache_fallbacks_total",
		Help: "Reservations that fell back to the ledger because the stock cache was unavailable.",
	})

	DeadLettered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_dead_lettered_total",
		Help: "Order events forwarded to the dead letter topic.",
	})

	OutboxPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_outbox_published_total",
		Help: "Outbox rows successfully published to the bus.",
	})

	OutboxPublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_outbox_publish_failures_total",
		Help: "Outbox rows whose publish attempt failed and will be retried.",
	})

	OutboxPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "inventory_outbox_pending",
		Help: "Unpublished outbox rows seen by the last publisher tick.",
	})
)
