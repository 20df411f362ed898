package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	aggregationQueryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "aggregation_service",
		Subsystem: "engine",
		Name:      "query_duration_seconds",
		Help:      "Duration of aggregation engine queries by operation.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
	aggregationQueryErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aggregation_service",
		Subsystem: "engine",
		Name:      "query_errors_total",
		Help:      "Engine queries that returned an error, by operation.",
	}, []string{"operation"})
	candidateRowsDiscarded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "aggregation_service",
		Subsystem: "fetch",
		Name:      "padded_rows_discarded_total",
		Help:      "Rows fetched by the padded window query and discarded by the exact zone filter.",
	})
)

func init() {
	prometheus.MustRegister(aggregationQueryDuration, aggregationQueryErrors, candidateRowsDiscarded)
}

// ObserveQuery records one engine query's duration and outcome.
func ObserveQuery(operation string, started time.Time, err error) {
	aggregationQueryDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
	if err != nil {
		aggregationQueryErrors.WithLabelValues(operation).Inc()
	}
}

// RecordDiscardedCandidates counts over-fetched rows rejected by the exact
// filter. A persistently high rate suggests callers far from UTC.
func RecordDiscardedCandidates(count int) {
	if count <= 0 {
		return
	}
	candidateRowsDiscarded.Add(float64(count))
}
