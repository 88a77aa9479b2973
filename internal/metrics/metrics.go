package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationDuration tracks the latency of engine operations
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "groupbuy_operation_duration_seconds",
			Help: "Duration of group-buy engine operations in seconds",
			Buckets: []float64{
				0.001, // 1ms
				0.005, // 5ms
				0.01,  // 10ms
				0.025, // 25ms
				0.05,  // 50ms
				0.1,   // 100ms
				0.25,  // 250ms
				0.5,   // 500ms
				1.0,   // 1s
				2.5,   // 2.5s
				5.0,   // 5s
			},
		},
		[]string{"operation", "status"}, // status: success, rejected or failure
	)

	// OfferStatusTransitions counts threshold-driven offer status changes
	OfferStatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groupbuy_offer_status_transitions_total",
			Help: "Number of offer status transitions driven by confirmed quantity",
		},
		[]string{"from", "to"},
	)

	// InsertConflicts counts first-time orders that lost the insert race and were retried as updates
	InsertConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "groupbuy_insert_conflicts_total",
			Help: "Number of concurrent first-time orders retried as updates",
		},
	)
)

// RecordOperationDuration records the duration of an engine operation
func RecordOperationDuration(operation, status string, duration float64) {
	OperationDuration.WithLabelValues(operation, status).Observe(duration)
}

// RecordOfferTransition records an offer status change
func RecordOfferTransition(from, to string) {
	OfferStatusTransitions.WithLabelValues(from, to).Inc()
}

// RecordInsertConflict records an insert race retried as an update
func RecordInsertConflict() {
	InsertConflicts.Inc()
}
