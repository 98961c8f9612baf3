package dml

import (
	"github.com/arenasql/arenasql/pkg/catalog"
	"github.com/arenasql/arenasql/pkg/kv"
	"github.com/arenasql/arenasql/pkg/scan"
	"github.com/arenasql/arenasql/pkg/serializer"
	"github.com/arenasql/arenasql/pkg/txn"
)

// DeletePlan removes every row of Table matching Filters: its secondary
// index entries first, then its heap entry (spec.md §4.8), so a crash
// between the two steps never leaves a live heap row an index still
// claims exists.
type DeletePlan struct {
	Table   *catalog.Table
	Filters []scan.Filter
}

// Execute scans matching rows via pkg/scan, deletes each one's index and
// heap entries, and returns the count of rows removed.
func (p *DeletePlan) Execute(handler *txn.StorageHandler) (uint64, error) {
	tx := handler.KV()
	it, err := scan.Scan(tx, p.Table, p.Filters)
	if err != nil {
		return 0, err
	}
	defer it.Close()

	var matched []scan.Row
	for {
		row, ok, err := it.Next()
		if err != nil {
			return 0, err
		}
		if !ok {
			break
		}
		matched = append(matched, row)
	}

	var count uint64
	for _, row := range matched {
		if err := deleteRow(tx, p.Table, row); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func deleteRow(tx kv.Tx, table *catalog.Table, row scan.Row) error {
	rowIDBytes := serializer.EncodeVarUint64(row.RowID)
	for _, idx := range table.Indexes {
		key := indexKeyForRow(table, idx, row.Cells, rowIDBytes)
		if err := tx.Delete(kv.Indexes, key); err != nil {
			return err
		}
	}
	heapKey := catalog.TableRowKey(uint16(table.ID), rowIDBytes)
	return tx.Delete(kv.Rows, heapKey)
}
