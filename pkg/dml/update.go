package dml

import (
	"github.com/arenasql/arenasql/pkg/catalog"
	"github.com/arenasql/arenasql/pkg/cell"
	"github.com/arenasql/arenasql/pkg/kv"
	"github.com/arenasql/arenasql/pkg/scan"
	"github.com/arenasql/arenasql/pkg/serializer"
	"github.com/arenasql/arenasql/pkg/txn"
)

// SetExpr assigns the column at ColumnOrdinal a new value for every row an
// UpdatePlan matches.
type SetExpr struct {
	ColumnOrdinal int
	Value         cell.Cell
}

// UpdatePlan applies Sets to every row of Table matching Filters,
// implemented as a delete of the old index/heap entries followed by a
// re-insert of the new cell values under the same RowID (spec.md §4.9),
// which is why a row's RowID survives an UPDATE even though every column
// may change (spec.md §8 property 7).
type UpdatePlan struct {
	Table   *catalog.Table
	Filters []scan.Filter
	Sets    []SetExpr
}

// Execute returns the number of rows updated.
func (p *UpdatePlan) Execute(handler *txn.StorageHandler) (uint64, error) {
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
		if err := p.updateRow(tx, row); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func (p *UpdatePlan) updateRow(tx kv.Tx, row scan.Row) error {
	newValues := make([]cell.Cell, len(row.Cells))
	copy(newValues, row.Cells)
	for _, set := range p.Sets {
		newValues[set.ColumnOrdinal] = set.Value
	}

	newRow, err := buildRow(p.Table, newValues)
	if err != nil {
		return err
	}

	rowIDBytes := serializer.EncodeVarUint64(row.RowID)
	for _, idx := range p.Table.Indexes {
		key := indexKeyForRow(p.Table, idx, row.Cells, rowIDBytes)
		if err := tx.Delete(kv.Indexes, key); err != nil {
			return err
		}
	}

	return writeRowAt(tx, p.Table, row.RowID, newRow)
}
