/*
Package log provides the structured logger shared by every ArenaSQL
package, wrapping zerolog with a single global instance plus a set of
With* helpers that attach the contextual fields used across the engine:
component, catalog, schema, session, transaction, and table.

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
	txnLog := log.WithTransaction(txn.ID())
	txnLog.Debug().Str("table", "orders").Msg("row inserted")

Debug carries transaction commits and rollbacks, schema loads, and
per-statement detail; Info covers session authentication and server
startup; Warn covers listener, handshake and metrics-server failures.
*/
package log
