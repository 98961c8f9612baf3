/*
Package metrics provides Prometheus metrics collection and exposition for
ArenaSQL.

It registers gauges, counters, and histograms covering session lifecycle,
transaction lifecycle, scan performance, and DML throughput, and exposes
them over HTTP for scraping.

# Metrics Catalog

Session metrics:

  - arenasql_active_sessions (gauge): sessions currently authenticated
  - arenasql_sessions_total{outcome} (counter): authentication attempts by
    outcome ("ok", "bad_user", "bad_password")

Transaction metrics:

  - arenasql_active_transactions (gauge): transactions currently open
  - arenasql_transactions_total{outcome} (counter): completed transactions
    by outcome ("commit", "rollback")
  - arenasql_write_conflicts_total (counter): write-write conflicts
    detected at commit time

Scan / DML metrics:

  - arenasql_scan_rows_returned (histogram): rows a single scan returned
  - arenasql_scan_duration_seconds{iterator} (histogram): scan latency by
    iterator kind ("heap", "unique_index")
  - arenasql_dml_rows_affected_total{operation} (counter): rows affected by
    "insert"/"update"/"delete"

Storage metrics:

  - arenasql_kv_group_bytes{group} (gauge): approximate bytes per KV group

# Usage

	timer := metrics.NewTimer()
	it, err := scan.Scan(tx, table, filters)
	timer.ObserveDurationVec(metrics.ScanDuration, "heap")

	metrics.DMLRowsAffected.WithLabelValues("insert").Add(float64(n))

	http.Handle("/metrics", metrics.Handler())

Collector periodically samples a pkg/session.Cluster's session and
transaction counts into the gauges above:

	collector := metrics.NewCollector(cluster)
	collector.Start()
	defer collector.Stop()
*/
package metrics
