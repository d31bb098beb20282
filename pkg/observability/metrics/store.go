package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

var (
	// storeOperationsTotal counts document store operations.
	// Labels: operation, table, outcome
	storeOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docgate_store_operations_total",
			Help: "Total number of document store operations",
		},
		[]string{"operation", "table", "outcome"},
	)

	// storeOperationDuration tracks document store operation duration in seconds.
	// Labels: operation, table
	storeOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docgate_store_operation_duration_seconds",
			Help:    "Document store operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	// queryFiltersDropped counts filters removed by normalization before a query ran.
	// Labels: table
	queryFiltersDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docgate_query_filters_dropped_total",
			Help: "Total number of query filters dropped because their value was empty",
		},
		[]string{"table"},
	)
)

// RecordStoreOperation records one store operation. A nil err counts as success.
func RecordStoreOperation(operation, table string, err error, duration time.Duration) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	storeOperationsTotal.WithLabelValues(operation, table, outcome).Inc()
	storeOperationDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// RecordDroppedFilters adds n to the dropped filter counter for table.
func RecordDroppedFilters(table string, n int) {
	if n <= 0 {
		return
	}
	queryFiltersDropped.WithLabelValues(table).Add(float64(n))
}
