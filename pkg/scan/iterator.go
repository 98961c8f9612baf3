package scan

import (
	"fmt"

	"github.com/arenasql/arenasql/pkg/catalog"
	"github.com/arenasql/arenasql/pkg/cell"
	"github.com/arenasql/arenasql/pkg/kv"
	"github.com/arenasql/arenasql/pkg/serializer"
)

// Row is one heap row with its row ID, decoded into table-column order.
type Row struct {
	RowID uint64
	Cells []cell.Cell
}

// RowIterator yields Rows that have already passed any residual filter.
type RowIterator interface {
	Next() (Row, bool, error)
	Close() error
}

// HeapIterator performs a full scan of a table's Rows keyspace (spec.md
// §4.6 step 5, the no-index fallback).
type HeapIterator struct {
	kvIter  kv.Iterator
	table   *catalog.Table
	filters []Filter
}

// NewHeapIterator scans every row of table directly, applying filters as
// residual (post-decode) predicates.
func NewHeapIterator(tx kv.Tx, table *catalog.Table, filters []Filter) (*HeapIterator, error) {
	prefix := catalog.TableRowsPrefix(uint16(table.ID))
	it, err := tx.ScanWithPrefix(kv.Rows, prefix)
	if err != nil {
		return nil, err
	}
	return &HeapIterator{kvIter: it, table: table, filters: filters}, nil
}

func (h *HeapIterator) Next() (Row, bool, error) {
	prefix := catalog.TableRowsPrefix(uint16(h.table.ID))
	for h.kvIter.Next() {
		entry := h.kvIter.Item()
		rowIDBytes := entry.Key[len(prefix):]
		rowID, _, err := serializer.DecodeVarUint64(rowIDBytes)
		if err != nil {
			return Row{}, false, fmt.Errorf("scan: decoding row id: %w", err)
		}
		types := columnTypes(h.table)
		cells, err := cell.DeserializeCells(entry.Value, types)
		if err != nil {
			return Row{}, false, fmt.Errorf("scan: decoding row %d: %w", rowID, err)
		}
		if !ApplyResidual(cells, h.filters) {
			continue
		}
		return Row{RowID: rowID, Cells: cells}, true, nil
	}
	return Row{}, false, h.kvIter.Err()
}

func (h *HeapIterator) Close() error { return h.kvIter.Close() }

// UniqueIndexIterator scans a composite-index key prefix and, for each
// hit, point-looks-up the corresponding heap row (spec.md §4.6 steps 2-3).
type UniqueIndexIterator struct {
	kvIter  kv.Iterator
	tx      kv.Tx
	table   *catalog.Table
	filters []Filter
}

// NewUniqueIndexIterator scans idx's Indexes-group prefix built from
// eqFilters (the equality literals covering idx's leading columns),
// applying the remaining filters as residual predicates after the heap
// point-lookup.
func NewUniqueIndexIterator(tx kv.Tx, table *catalog.Table, idx catalog.TableIndex, eqFilters []Filter, residual []Filter) (*UniqueIndexIterator, error) {
	prefix := BuildIndexPrefix(idx, eqFilters)
	it, err := tx.ScanWithPrefix(kv.Indexes, prefix)
	if err != nil {
		return nil, err
	}
	return &UniqueIndexIterator{kvIter: it, tx: tx, table: table, filters: residual}, nil
}

// BuildIndexPrefix serializes the equality projection for idx's leading
// columns and patches the cell-count byte to idx's full column count, so
// the prefix matches keys written by full-width index entries (spec.md
// §4.6 step 2; see cell.PatchPrefixCount).
func BuildIndexPrefix(idx catalog.TableIndex, eqFilters []Filter) []byte {
	cells := make([]cell.Cell, len(eqFilters))
	for i, f := range eqFilters {
		cells[i] = f.Value
	}
	serialized := cell.SerializeCells(cells)
	patched := cell.PatchPrefixCount(serialized, len(idx.Columns))
	return catalog.IndexRowKey(uint32(idx.ID), patched)
}

func (u *UniqueIndexIterator) Next() (Row, bool, error) {
	rowsPrefix := catalog.TableRowsPrefix(uint16(u.table.ID))
	for u.kvIter.Next() {
		entry := u.kvIter.Item()
		rowID, _, err := serializer.DecodeVarUint64(entry.Value)
		if err != nil {
			return Row{}, false, fmt.Errorf("scan: decoding index row id: %w", err)
		}
		rowKey := append(append([]byte(nil), rowsPrefix...), entry.Value...)
		rowBytes, err := u.tx.Get(kv.Rows, rowKey)
		if err != nil {
			return Row{}, false, err
		}
		if rowBytes == nil {
			// The index entry outlived its heap row (a concurrent
			// delete not yet reflected in the index); skip it.
			continue
		}
		types := columnTypes(u.table)
		cells, err := cell.DeserializeCells(rowBytes, types)
		if err != nil {
			return Row{}, false, fmt.Errorf("scan: decoding row %d: %w", rowID, err)
		}
		if !ApplyResidual(cells, u.filters) {
			continue
		}
		return Row{RowID: rowID, Cells: cells}, true, nil
	}
	return Row{}, false, u.kvIter.Err()
}

func (u *UniqueIndexIterator) Close() error { return u.kvIter.Close() }

func columnTypes(table *catalog.Table) []cell.DataType {
	types := make([]cell.DataType, len(table.Columns))
	for i, c := range table.Columns {
		types[i] = c.Type
	}
	return types
}

// Scan performs index selection and returns the appropriate RowIterator
// (spec.md §4.6): a UniqueIndexIterator when an index prefix qualifies,
// otherwise a HeapIterator over the full table.
func Scan(tx kv.Tx, table *catalog.Table, filters []Filter) (RowIterator, error) {
	idx, eqFilters, ok := SelectIndex(table, filters)
	if !ok {
		return NewHeapIterator(tx, table, filters)
	}

	residual := make([]Filter, 0, len(filters))
	covered := make(map[int]bool, len(eqFilters))
	for _, f := range eqFilters {
		covered[f.ColumnOrdinal] = true
	}
	for _, f := range filters {
		if !covered[f.ColumnOrdinal] {
			residual = append(residual, f)
		} else if f.Op != Eq {
			residual = append(residual, f)
		}
	}

	return NewUniqueIndexIterator(tx, table, idx, eqFilters, residual)
}
