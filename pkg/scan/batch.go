package scan

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/arenasql/arenasql/pkg/catalog"
	"github.com/arenasql/arenasql/pkg/cell"
)

// DefaultBatchSize is the row cap a BatchReader flushes at, absent end of
// scan (spec.md §4.6: "Arrow batches are flushed in capped batches (default
// 5,000 rows) or at end of scan").
const DefaultBatchSize = 5000

// BatchReader materializes a RowIterator's rows into capped-size Arrow
// record batches, building only the columns named in Projection; other
// table columns get no builder and are left out of the batch.
type BatchReader struct {
	it           RowIterator
	table        *catalog.Table
	projection   []int // table-column ordinals to materialize, in output order
	includeRowID bool
	batchSize    int
	mem          memory.Allocator
}

// NewBatchReader builds a BatchReader over it. projection lists the
// table-column ordinals to include in each output batch, in order;
// includeRowID appends a trailing Int64 ctid column (spec.md §9) built
// from each Row's RowID, used by Delete/Update plans that need the row
// identity flowing through the QE pipeline.
func NewBatchReader(it RowIterator, table *catalog.Table, projection []int, includeRowID bool) *BatchReader {
	return &BatchReader{
		it:           it,
		table:        table,
		projection:   projection,
		includeRowID: includeRowID,
		batchSize:    DefaultBatchSize,
		mem:          memory.NewGoAllocator(),
	}
}

// WithBatchSize overrides the default 5,000-row cap, mainly for tests.
func (b *BatchReader) WithBatchSize(n int) *BatchReader {
	b.batchSize = n
	return b
}

// Next returns the next batch of up to BatchSize rows, or ok=false once the
// underlying scan is exhausted with nothing left to flush.
func (b *BatchReader) Next() (arrow.Record, bool, error) {
	builders := make([]cell.ColumnArrayBuilder, len(b.projection))
	fields := make([]arrow.Field, len(b.projection))
	for i, ordinal := range b.projection {
		col := b.table.Columns[ordinal]
		builders[i] = cell.NewColumnArrayBuilder(b.mem, col.Type, true)
		fields[i] = arrow.Field{Name: col.Name, Type: cell.ArrowType(col.Type), Nullable: col.Nullable}
	}
	var rowIDBuilder *array.Int64Builder
	if b.includeRowID {
		rowIDBuilder = array.NewInt64Builder(b.mem)
		fields = append(fields, arrow.Field{Name: "ctid", Type: arrow.PrimitiveTypes.Int64})
	}

	count := 0
	for count < b.batchSize {
		row, ok, err := b.it.Next()
		if err != nil {
			return nil, false, err
		}
		if !ok {
			break
		}
		for i, ordinal := range b.projection {
			if err := builders[i].Append(row.Cells[ordinal]); err != nil {
				return nil, false, err
			}
		}
		if rowIDBuilder != nil {
			rowIDBuilder.Append(int64(row.RowID))
		}
		count++
	}

	if count == 0 {
		for _, builder := range builders {
			builder.Release()
		}
		if rowIDBuilder != nil {
			rowIDBuilder.Release()
		}
		return nil, false, nil
	}

	arrays := make([]arrow.Array, len(builders))
	for i, builder := range builders {
		arrays[i] = builder.NewArray()
		builder.Release()
	}
	if rowIDBuilder != nil {
		arrays = append(arrays, rowIDBuilder.NewArray())
		rowIDBuilder.Release()
	}

	schema := arrow.NewSchema(fields, nil)
	batch := array.NewRecord(schema, arrays, int64(count))
	return batch, true, nil
}

// Close releases the underlying RowIterator.
func (b *BatchReader) Close() error { return b.it.Close() }
