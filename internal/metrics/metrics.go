package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Stream
	StreamMessages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "haltwatch_stream_messages_total",
			Help: "Total number of push-stream messages received",
		},
	)

	StreamHeartbeats = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "haltwatch_stream_heartbeats_total",
			Help: "Total number of heartbeat messages discarded",
		},
	)

	StreamParseErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "haltwatch_stream_parse_errors_total",
			Help: "Total number of malformed push-stream messages skipped",
		},
	)

	StreamConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "haltwatch_stream_connected",
			Help: "1 while the push-stream connection is open",
		},
	)

	StreamErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "haltwatch_stream_errors_total",
			Help: "Total number of transport errors that closed the push stream",
		},
	)

	// Reconciliation
	Flushes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "haltwatch_flushes_total",
			Help: "Total number of reconciliation flushes committed",
		},
	)

	FlushBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "haltwatch_flush_batch_size",
			Help:    "Number of buffered events applied per flush",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	EventsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "haltwatch_events_applied_total",
			Help: "Total number of halt events merged, by status",
		},
		[]string{"status"},
	)

	Notifications = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "haltwatch_notifications_total",
			Help: "Total number of de-duplicated notifications emitted",
		},
	)

	// Dispatcher
	DispatchAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "haltwatch_dispatch_attempts_total",
			Help: "Total number of mutation network attempts, by action and outcome",
		},
		[]string{"action", "outcome"}, // outcome: success, transport_error, http_error, rejected
	)

	DispatchShared = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "haltwatch_dispatch_shared_total",
			Help: "Total number of submits collapsed onto an in-flight call",
		},
	)

	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "haltwatch_dispatch_duration_seconds",
			Help:    "Duration of logical mutation operations including retries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action"},
	)

	// Journal
	JournalRows = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "haltwatch_journal_rows_total",
			Help: "Total number of halt events written to the audit journal",
		},
	)

	JournalErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "haltwatch_journal_errors_total",
			Help: "Total number of failed journal batch inserts",
		},
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
