// Package qe defines the provider contracts an external columnar query
// engine is assumed to call into (spec.md §1, §2): lookups into the
// catalog and a sink for rows a planned INSERT produces. No planner or
// executor lives in this module — pkg/catalog, pkg/scan, and pkg/dml are
// the concrete implementations these interfaces are satisfied by.
package qe

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/arenasql/arenasql/pkg/cell"
)

// CatalogProvider resolves a catalog name to the SchemaProvider for one of
// its schemas, the entry point a query engine uses to bind an unqualified
// table reference to a concrete relation.
type CatalogProvider interface {
	Schema(ctx context.Context, catalogName, schemaName string) (SchemaProvider, error)
}

// SchemaProvider resolves table names within one (catalog, schema) pair.
type SchemaProvider interface {
	Table(ctx context.Context, name string) (TableProvider, bool, error)
	Tables(ctx context.Context) ([]TableProvider, error)
}

// TableProvider exposes a relation's schema and a row source to the query
// engine's scan operator. Scan returns a closure the engine calls
// repeatedly to pull the next batch (as an Arrow RecordBatch) until it
// returns ok=false.
type TableProvider interface {
	Name() string
	Columns() []cell.ColumnSpec
	Scan(ctx context.Context, projection []string, filters []ScanFilter) (RowBatchSource, error)
}

// ScanFilter is a provider-agnostic predicate handed down from the query
// engine's planner; concrete TableProviders translate it into
// pkg/scan.Filter against their own column ordinals.
type ScanFilter struct {
	Column string
	Op     string
	Value  cell.Cell
}

// RowBatchSource yields successive Arrow record batches; Next returns
// ok=false once the underlying scan is exhausted.
type RowBatchSource interface {
	Next() (batch arrow.Record, ok bool, err error)
	Close() error
}

// InsertSink is the write-side counterpart TableProvider.Scan mirrors on
// read: the query engine hands it completed Arrow record batches to
// persist, one statement's rows at a time.
type InsertSink interface {
	InsertBatch(ctx context.Context, batch arrow.Record) (rowsInserted uint64, err error)
	Flush(ctx context.Context) error
}
