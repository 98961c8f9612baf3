package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Session metrics
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "arenasql_active_sessions",
			Help: "Number of authenticated wire-protocol sessions currently open",
		},
	)

	SessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arenasql_sessions_total",
			Help: "Total number of sessions authenticated, by outcome",
		},
		[]string{"outcome"},
	)

	// Transaction metrics
	ActiveTransactions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "arenasql_active_transactions",
			Help: "Number of transactions currently open across all catalogs",
		},
	)

	TransactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arenasql_transactions_total",
			Help: "Total number of transactions completed, by outcome (commit, rollback)",
		},
		[]string{"outcome"},
	)

	WriteConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "arenasql_write_conflicts_total",
			Help: "Total number of write-write conflicts detected at commit time",
		},
	)

	// Scan / DML metrics
	ScanRowsReturned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "arenasql_scan_rows_returned",
			Help:    "Number of rows a single scan (heap or index) returned",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		},
	)

	ScanDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "arenasql_scan_duration_seconds",
			Help:    "Time taken by a scan, by iterator kind (heap, unique_index)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"iterator"},
	)

	DMLRowsAffected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arenasql_dml_rows_affected_total",
			Help: "Total number of rows affected by DML statements, by operation",
		},
		[]string{"operation"},
	)

	// Storage metrics
	KVGroupBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "arenasql_kv_group_bytes",
			Help: "Approximate bytes stored per KV group (rows, indexes, schemas)",
		},
		[]string{"group"},
	)
)

func init() {
	prometheus.MustRegister(ActiveSessions)
	prometheus.MustRegister(SessionsTotal)
	prometheus.MustRegister(ActiveTransactions)
	prometheus.MustRegister(TransactionsTotal)
	prometheus.MustRegister(WriteConflictsTotal)
	prometheus.MustRegister(ScanRowsReturned)
	prometheus.MustRegister(ScanDuration)
	prometheus.MustRegister(DMLRowsAffected)
	prometheus.MustRegister(KVGroupBytes)
}

// Handler returns the Prometheus HTTP handler serving /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing an operation and recording its duration to
// a histogram once it completes.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time to histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time to a labeled histogram vec.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
