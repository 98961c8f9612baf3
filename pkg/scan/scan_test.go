package scan

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arenasql/arenasql/pkg/catalog"
	"github.com/arenasql/arenasql/pkg/cell"
	"github.com/arenasql/arenasql/pkg/kv"
	"github.com/arenasql/arenasql/pkg/kv/memkv"
	"github.com/arenasql/arenasql/pkg/serializer"
)

func buildTestTable() *catalog.Table {
	return &catalog.Table{
		ID:   7,
		Name: "accounts",
		Columns: []catalog.Column{
			{ID: 0, Name: "id", Type: cell.NewI64()},
			{ID: 1, Name: "email", Type: cell.NewText()},
			{ID: 2, Name: "balance", Type: cell.NewI64()},
		},
		Indexes: []catalog.TableIndex{
			{ID: 1, Name: "accounts_email_idx", Columns: []catalog.ColumnID{1}, AllowDuplicates: false},
		},
	}
}

// writeRow inserts one heap row and its index entry directly, bypassing the
// DML layer, to exercise the scan engine in isolation.
func writeRow(t *testing.T, tx kv.Tx, table *catalog.Table, rowID uint64, id int64, email string, balance int64) {
	t.Helper()
	cells := []cell.Cell{cell.NewI64Cell(id), cell.NewTextCell(email), cell.NewI64Cell(balance)}
	rowIDBytes := serializer.EncodeVarUint64(rowID)
	require.NoError(t, tx.Put(kv.Rows, catalog.TableRowKey(uint16(table.ID), rowIDBytes), cell.SerializeCells(cells)))

	idx := table.Indexes[0]
	projection := cell.SerializeCells([]cell.Cell{cells[1]})
	key := catalog.IndexRowKey(uint32(idx.ID), projection)
	require.NoError(t, tx.Put(kv.Indexes, key, rowIDBytes))
}

func drain(t *testing.T, it RowIterator) []Row {
	t.Helper()
	var rows []Row
	for {
		row, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		rows = append(rows, row)
	}
	require.NoError(t, it.Close())
	return rows
}

func TestHeapScanNoFilter(t *testing.T) {
	store := memkv.New()
	defer store.Close()
	tx, err := store.Begin(context.Background(), true)
	require.NoError(t, err)

	table := buildTestTable()
	writeRow(t, tx, table, 1, 1, "a@example.com", 100)
	writeRow(t, tx, table, 2, 2, "b@example.com", 200)
	writeRow(t, tx, table, 3, 3, "c@example.com", 300)

	it, err := Scan(tx, table, nil)
	require.NoError(t, err)
	rows := drain(t, it)
	assert.Len(t, rows, 3)
}

func TestIndexScanSelectedOnEqFilter(t *testing.T) {
	store := memkv.New()
	defer store.Close()
	tx, err := store.Begin(context.Background(), true)
	require.NoError(t, err)

	table := buildTestTable()
	writeRow(t, tx, table, 1, 1, "a@example.com", 100)
	writeRow(t, tx, table, 2, 2, "b@example.com", 200)

	filters := []Filter{{ColumnOrdinal: 1, Op: Eq, Value: cell.NewTextCell("b@example.com")}}
	idx, eqFilters, ok := SelectIndex(table, filters)
	require.True(t, ok)
	assert.Equal(t, "accounts_email_idx", idx.Name)
	assert.Len(t, eqFilters, 1)

	it, err := Scan(tx, table, filters)
	require.NoError(t, err)
	rows := drain(t, it)
	require.Len(t, rows, 1)
	assert.EqualValues(t, 2, rows[0].RowID)

	balance, err := rows[0].Cells[2].AsI64()
	require.NoError(t, err)
	assert.EqualValues(t, 200, balance)
}

func TestHeapScanFallbackWithoutIndexMatch(t *testing.T) {
	store := memkv.New()
	defer store.Close()
	tx, err := store.Begin(context.Background(), true)
	require.NoError(t, err)

	table := buildTestTable()
	writeRow(t, tx, table, 1, 1, "a@example.com", 100)
	writeRow(t, tx, table, 2, 2, "b@example.com", 200)

	filters := []Filter{{ColumnOrdinal: 2, Op: Gt, Value: cell.NewI64Cell(150)}}
	_, _, ok := SelectIndex(table, filters)
	assert.False(t, ok, "balance column has no covering index")

	it, err := Scan(tx, table, filters)
	require.NoError(t, err)
	rows := drain(t, it)
	require.Len(t, rows, 1)
	assert.EqualValues(t, 2, rows[0].RowID)
}

func TestResidualFilterAppliedAfterIndexLookup(t *testing.T) {
	store := memkv.New()
	defer store.Close()
	tx, err := store.Begin(context.Background(), true)
	require.NoError(t, err)

	table := buildTestTable()
	writeRow(t, tx, table, 1, 1, "a@example.com", 100)

	filters := []Filter{
		{ColumnOrdinal: 1, Op: Eq, Value: cell.NewTextCell("a@example.com")},
		{ColumnOrdinal: 2, Op: Gt, Value: cell.NewI64Cell(500)},
	}
	it, err := Scan(tx, table, filters)
	require.NoError(t, err)
	rows := drain(t, it)
	assert.Empty(t, rows, "residual balance filter should exclude the only matching row")
}

func TestIndexPrefixPatchedToFullColumnCount(t *testing.T) {
	idx := catalog.TableIndex{ID: 9, Columns: []catalog.ColumnID{0, 1}}
	eqFilters := []Filter{{Value: cell.NewI64Cell(42)}}
	prefix := BuildIndexPrefix(idx, eqFilters)

	rowsPrefix := catalog.IndexRowsPrefix(9)
	require.True(t, len(prefix) > len(rowsPrefix))
	cellCountByte := prefix[len(rowsPrefix)]
	assert.EqualValues(t, len(idx.Columns), cellCountByte)
}

func TestBatchReaderCapsBatchSizeAndIncludesRowID(t *testing.T) {
	store := memkv.New()
	defer store.Close()
	tx, err := store.Begin(context.Background(), true)
	require.NoError(t, err)

	table := buildTestTable()
	for i := int64(1); i <= 5; i++ {
		writeRow(t, tx, table, uint64(i), i, fmt.Sprintf("u%d@example.com", i), i*10)
	}

	it, err := Scan(tx, table, nil)
	require.NoError(t, err)
	reader := NewBatchReader(it, table, []int{0, 2}, true).WithBatchSize(2)
	defer reader.Close()

	var totalRows int64
	var batches int
	for {
		batch, ok, err := reader.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		batches++
		totalRows += batch.NumRows()
		assert.Equal(t, 3, len(batch.Schema().Fields()), "2 projected columns + ctid")
		assert.LessOrEqual(t, batch.NumRows(), int64(2))
		batch.Release()
	}
	assert.EqualValues(t, 5, totalRows)
	assert.Equal(t, 3, batches, "5 rows capped at 2 per batch yields 3 batches")
}
