package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arenasql/arenasql/pkg/cell"
	"github.com/arenasql/arenasql/pkg/kv"
	"github.com/arenasql/arenasql/pkg/kv/memkv"
)

func TestKeyLayout(t *testing.T) {
	assert.Equal(t, "m_last_table_id", string(LastTableIDKey()))
	assert.Equal(t, "m_last_table_index_id", string(LastTableIndexIDKey()))
	assert.Equal(t, "m_t7_last_rowid", string(LastRowIDOfTableKey(7)))
	assert.Equal(t, "m_schema_cfoo_sbar_t", string(TableSchemasPrefix("foo", "bar")))
	assert.Equal(t, "m_schema_cfoo_sbar_t5", string(TableSchemaKey("foo", "bar", 5)))
	assert.Equal(t, "t", string(TableRowsPrefix(0)[:1]))
	assert.True(t, len(TableRowsPrefix(1)) == 4)
}

func TestTableRoundTrip(t *testing.T) {
	table := &Table{
		ID:   3,
		Name: "orders",
		Columns: []Column{
			{ID: 0, Name: "id", Type: cell.NewI64()},
			{ID: 1, Name: "customer", Type: cell.NewVarchar(64), Nullable: true},
		},
		Constraints: []Constraint{{Kind: PrimaryKey, Projection: []ColumnID{0}}},
		Indexes: []TableIndex{
			{ID: 1, Name: "orders_pkey", Columns: []ColumnID{0}, AllowDuplicates: false},
		},
	}

	buf := SerializeTable(table)
	got, err := DeserializeTable(buf)
	require.NoError(t, err)

	assert.Equal(t, table.ID, got.ID)
	assert.Equal(t, table.Name, got.Name)
	require.Len(t, got.Columns, 2)
	assert.Equal(t, "id", got.Columns[0].Name)
	assert.True(t, got.Columns[1].Nullable)
	assert.True(t, got.Columns[1].Type.Equal(cell.NewVarchar(64)))
	require.Len(t, got.Constraints, 1)
	assert.Equal(t, PrimaryKey, got.Constraints[0].Kind)
	require.Len(t, got.Indexes, 1)
	assert.Equal(t, "orders_pkey", got.Indexes[0].Name)
}

func TestAllocateIDsMonotonic(t *testing.T) {
	store := memkv.New()
	ctx := context.Background()
	tx, err := store.Begin(ctx, true)
	require.NoError(t, err)

	id1, err := AllocateTableID(tx)
	require.NoError(t, err)
	id2, err := AllocateTableID(tx)
	require.NoError(t, err)
	assert.Equal(t, TableID(1), id1)
	assert.Equal(t, TableID(2), id2)

	rid1, err := AllocateRowID(tx, id1)
	require.NoError(t, err)
	rid2, err := AllocateRowID(tx, id1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), rid1)
	assert.Equal(t, uint64(2), rid2)

	require.NoError(t, tx.Commit())
}

func TestSchemaFactoryDDLVisibility(t *testing.T) {
	store := memkv.New()
	sfFactory := NewStorageFactory("test", store)
	ctx := context.Background()

	txA, schemaA, err := sfFactory.BeginTransaction(ctx, "public", true)
	require.NoError(t, err)

	lock, err := schemaA.AcquireTableSchemaWriteLock("widgets", true)
	require.NoError(t, err)
	schemaA.HoldTableSchemaLock(lock)

	id, err := AllocateTableID(txA)
	require.NoError(t, err)
	table := &Table{ID: id, Name: "widgets"}
	lock.SetTable(table)

	// The owning transaction, passing its own lock, sees its uncommitted
	// DDL.
	got, ok := schemaA.GetTable("widgets", lock)
	require.True(t, ok)
	assert.Equal(t, "widgets", got.Name)

	// A caller with no lock of its own never sees the override, even
	// though it shares the same SchemaFactory and the DDL is still
	// in-flight.
	_, ok = schemaA.GetTable("widgets", nil)
	assert.False(t, ok)

	require.NoError(t, txA.Put(kv.Schemas, TableSchemaKey("test", "public", uint16(id)), SerializeTable(table)))
	schemaA.CommitTable(lock, table)
	require.NoError(t, txA.Commit())

	// A fresh factory (simulating a new transaction in another session)
	// must load the committed table from the store.
	fresh := NewStorageFactory("test", store)
	_, schemaB, err := fresh.BeginTransaction(ctx, "public", false)
	require.NoError(t, err)
	got2, ok := schemaB.GetTable("widgets", nil)
	require.True(t, ok)
	assert.Equal(t, id, got2.ID)
}

// TestSchemaFactoryDDLNotVisibleToConcurrentTransaction runs two
// transactions against the same SchemaFactory, as two sessions on the
// same catalog/schema would. Transaction A takes widgets' write lock and
// publishes an uncommitted column addition; transaction B, which holds no
// lock of its own, must never observe it until A commits (spec.md §4.4,
// §8 Testable Property 9, scenario S5).
func TestSchemaFactoryDDLNotVisibleToConcurrentTransaction(t *testing.T) {
	store := memkv.New()
	sfFactory := NewStorageFactory("test", store)
	ctx := context.Background()

	txSetup, schemaSetup, err := sfFactory.BeginTransaction(ctx, "public", true)
	require.NoError(t, err)
	setupLock, err := schemaSetup.AcquireTableSchemaWriteLock("widgets", true)
	require.NoError(t, err)
	schemaSetup.HoldTableSchemaLock(setupLock)
	id, err := AllocateTableID(txSetup)
	require.NoError(t, err)
	original := &Table{ID: id, Name: "widgets", Columns: []Column{{ID: 0, Name: "id", Type: cell.NewI64()}}}
	setupLock.SetTable(original)
	schemaSetup.CommitTable(setupLock, original)
	require.NoError(t, txSetup.Commit())

	txA, schemaA, err := sfFactory.BeginTransaction(ctx, "public", true)
	require.NoError(t, err)
	txB, schemaB, err := sfFactory.BeginTransaction(ctx, "public", false)
	require.NoError(t, err)
	require.Same(t, schemaA, schemaB, "both transactions share one SchemaFactory for (catalog, schema)")

	lockA, err := schemaA.AcquireTableSchemaWriteLock("widgets", false)
	require.NoError(t, err)
	schemaA.HoldTableSchemaLock(lockA)
	mutated := lockA.Table().Clone()
	mutated.Columns = append(mutated.Columns, Column{ID: 1, Name: "sku", Type: cell.NewVarchar(32)})
	lockA.SetTable(mutated)

	// B holds no lock on widgets: it must see the pre-DDL, committed
	// definition, never A's in-flight column addition.
	gotB, ok := schemaB.GetTable("widgets", nil)
	require.True(t, ok)
	assert.Len(t, gotB.Columns, 1)

	// A, passing its own lock, sees its own uncommitted change.
	gotA, ok := schemaA.GetTable("widgets", lockA)
	require.True(t, ok)
	assert.Len(t, gotA.Columns, 2)

	schemaA.CommitTable(lockA, mutated)
	require.NoError(t, txA.Commit())

	// Now that A has committed, B sees the new column too.
	gotB2, ok := schemaB.GetTable("widgets", nil)
	require.True(t, ok)
	assert.Len(t, gotB2.Columns, 2)

	require.NoError(t, txB.Commit())
}

func TestNewTableMarksPrimaryKeyColumnsNonNullable(t *testing.T) {
	columns := []Column{
		{ID: 0, Name: "id", Type: cell.NewI64(), Nullable: true},
		{ID: 1, Name: "name", Type: cell.NewVarchar(64), Nullable: true},
	}
	constraints := []Constraint{{Kind: PrimaryKey, Projection: []ColumnID{0}}}

	table := NewTable(1, "widgets", columns, constraints, []TableIndexID{1})

	assert.False(t, table.Columns[0].Nullable)
	assert.True(t, table.Columns[1].Nullable)
	require.Len(t, table.Indexes, 1)
	assert.Equal(t, "widgets_pkey", table.Indexes[0].Name)
	assert.False(t, table.Indexes[0].AllowDuplicates)
}
