package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	sessionPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "training",
		Subsystem: "persistence",
		Name:      "last_session_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent session written to the store.",
	})
	storeDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "training",
		Subsystem: "persistence",
		Name:      "operation_duration_seconds",
		Help:      "Latency of session store operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"backend", "operation"})
	storeErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "training",
		Subsystem: "persistence",
		Name:      "operation_errors_total",
		Help:      "Failed session store operations.",
	}, []string{"backend", "operation"})
)

func init() {
	prometheus.MustRegister(sessionPersistGauge, storeDuration, storeErrors)
}

// RecordSessionPersisted updates the persistence watermark gauge.
func RecordSessionPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	sessionPersistGauge.Set(float64(ts.Unix()))
}

// ObserveStoreOperation records the latency of one store call and counts it as
// failed when err is non-nil.
func ObserveStoreOperation(backend, operation string, started time.Time, err error) {
	storeDuration.WithLabelValues(backend, operation).Observe(time.Since(started).Seconds())
	if err != nil {
		storeErrors.WithLabelValues(backend, operation).Inc()
	}
}
