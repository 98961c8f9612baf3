// Package dml implements the storage-level data-manipulation operations
// (spec.md §4.7-§4.10): INSERT, DELETE, UPDATE, and CREATE INDEX, each
// operating under a single held txn.StorageHandler and keeping the heap
// and every secondary index entry for a row in lockstep.
package dml

import (
	"github.com/arenasql/arenasql/pkg/arenaerrors"
	"github.com/arenasql/arenasql/pkg/catalog"
	"github.com/arenasql/arenasql/pkg/cell"
	"github.com/arenasql/arenasql/pkg/kv"
	"github.com/arenasql/arenasql/pkg/serializer"
	"github.com/arenasql/arenasql/pkg/txn"
)

// InsertPlan inserts rows into table one at a time, all under the one
// StorageHandler the caller passes to Execute.
type InsertPlan struct {
	Table *catalog.Table
}

// Execute inserts len(rows) rows, each a full-width, table-column-ordered
// slice of cells, and returns the number of rows successfully inserted.
// Execute stops and returns an error (with n giving the count committed
// before the failure) on the first constraint violation.
func (p *InsertPlan) Execute(handler *txn.StorageHandler, rows [][]cell.Cell) (n uint64, err error) {
	for _, row := range rows {
		if err := p.insertOne(handler, row); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (p *InsertPlan) insertOne(handler *txn.StorageHandler, values []cell.Cell) error {
	row, err := buildRow(p.Table, values)
	if err != nil {
		return err
	}

	tx := handler.KV()
	rowID, err := catalog.AllocateRowID(tx, p.Table.ID)
	if err != nil {
		return err
	}
	return writeRowAt(tx, p.Table, rowID, row)
}

// buildRow validates values against table's column widths, substitutes
// column defaults for omitted (null) values, and rejects a null landing in
// a non-nullable column.
func buildRow(table *catalog.Table, values []cell.Cell) ([]cell.Cell, error) {
	if len(values) != len(table.Columns) {
		return nil, arenaerrors.UnsupportedOperation("insert: column count does not match table width")
	}
	row := make([]cell.Cell, len(values))
	for i, col := range table.Columns {
		v := values[i]
		if v.Null && col.Default != nil {
			v = *col.Default
		}
		if v.Null && !col.Nullable {
			return nil, arenaerrors.NullConstraintViolation(table.Name, col.Name)
		}
		row[i] = v
	}
	return row, nil
}

// writeRowAt persists row's index entries and heap entry under the given
// rowID, rolling back any index entry already written if a later step
// fails (spec.md §4.7). Used directly by insert (fresh RowID) and by
// UpdatePlan (the original row's RowID, so an update never changes a row's
// identity, spec.md §8 property 7).
func writeRowAt(tx kv.Tx, table *catalog.Table, rowID uint64, row []cell.Cell) error {
	rowIDBytes := serializer.EncodeVarUint64(rowID)

	written := make([]catalog.TableIndex, 0, len(table.Indexes))
	for _, idx := range table.Indexes {
		if err := putIndexEntry(tx, table, idx, row, rowID, rowIDBytes); err != nil {
			rollbackIndexEntries(tx, table, written, row, rowID, rowIDBytes)
			return err
		}
		written = append(written, idx)
	}

	heapKey := catalog.TableRowKey(uint16(table.ID), rowIDBytes)
	if err := tx.Put(kv.Rows, heapKey, cell.SerializeCells(row)); err != nil {
		rollbackIndexEntries(tx, table, written, row, rowID, rowIDBytes)
		return err
	}
	return nil
}

// putIndexEntry writes idx's entry for row. A unique index (AllowDuplicates
// == false) rejects the write if the projection already maps to a
// different row; a non-unique index disambiguates same-valued entries by
// appending the row ID to the key (spec.md §9 open question: non-unique
// index entries are keyed by projection⧺row_id so duplicates coexist).
func putIndexEntry(tx kv.Tx, table *catalog.Table, idx catalog.TableIndex, row []cell.Cell, rowID uint64, rowIDBytes []byte) error {
	projection := indexProjection(table, idx, row)
	serialized := cell.SerializeCells(projection)

	if !idx.AllowDuplicates {
		key := catalog.IndexRowKey(uint32(idx.ID), serialized)
		existing, err := tx.GetForUpdate(kv.Indexes, key, true)
		if err != nil {
			return err
		}
		if existing != nil {
			return arenaerrors.UniqueConstraintViolated(idx.Name, indexColumnNames(table, idx), projectionStrings(projection))
		}
		return tx.Put(kv.Indexes, key, rowIDBytes)
	}

	key := catalog.IndexRowKey(uint32(idx.ID), append(serialized, rowIDBytes...))
	return tx.Put(kv.Indexes, key, rowIDBytes)
}

// indexKeyForRow reconstructs the exact key putIndexEntry would have
// written for row, so Delete and Update can remove it without re-deriving
// the uniqueness check.
func indexKeyForRow(table *catalog.Table, idx catalog.TableIndex, row []cell.Cell, rowIDBytes []byte) []byte {
	projection := indexProjection(table, idx, row)
	serialized := cell.SerializeCells(projection)
	if !idx.AllowDuplicates {
		return catalog.IndexRowKey(uint32(idx.ID), serialized)
	}
	return catalog.IndexRowKey(uint32(idx.ID), append(serialized, rowIDBytes...))
}

func indexProjection(table *catalog.Table, idx catalog.TableIndex, row []cell.Cell) []cell.Cell {
	projection := make([]cell.Cell, len(idx.Columns))
	for i, colID := range idx.Columns {
		projection[i] = row[columnOrdinalByID(table, colID)]
	}
	return projection
}

func columnOrdinalByID(table *catalog.Table, id catalog.ColumnID) int {
	for i, c := range table.Columns {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func indexColumnNames(table *catalog.Table, idx catalog.TableIndex) []string {
	names := make([]string, len(idx.Columns))
	for i, colID := range idx.Columns {
		if c, ok := table.ColumnByID(colID); ok {
			names[i] = c.Name
		}
	}
	return names
}

func projectionStrings(cells []cell.Cell) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		if c.Null {
			out[i] = "NULL"
			continue
		}
		if s, err := c.AsText(); err == nil {
			out[i] = s
			continue
		}
		out[i] = string(c.Raw)
	}
	return out
}

// rollbackIndexEntries removes index entries already written for a row
// whose insert failed partway through, so a failed insert never leaves a
// dangling index reference (spec.md §8 property 6's delete-consistency
// guarantee also bounds partial-insert cleanup).
func rollbackIndexEntries(tx kv.Tx, table *catalog.Table, written []catalog.TableIndex, row []cell.Cell, rowID uint64, rowIDBytes []byte) {
	for _, idx := range written {
		key := indexKeyForRow(table, idx, row, rowIDBytes)
		tx.Delete(kv.Indexes, key)
	}
}
