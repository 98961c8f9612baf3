package dml

import (
	"github.com/arenasql/arenasql/pkg/arenaerrors"
	"github.com/arenasql/arenasql/pkg/catalog"
	"github.com/arenasql/arenasql/pkg/kv"
	"github.com/arenasql/arenasql/pkg/scan"
	"github.com/arenasql/arenasql/pkg/serializer"
	"github.com/arenasql/arenasql/pkg/txn"
)

// CreateIndexPlan adds a new secondary index to an existing table and
// backfills it from the current heap contents (spec.md §4.10). Unlike
// Insert/Delete/Update, which run under one StorageHandler supplied by the
// caller, CreateIndex is a schema change: it holds the table's schema
// write lock for the whole operation and acquires a StorageHandler of its
// own for each row it backfills.
type CreateIndexPlan struct {
	TableName       string
	IndexName       string
	Columns         []string
	AllowDuplicates bool
	// Modifiers holds any unrecognized index-creation clauses (e.g. a
	// partial-index WHERE predicate, a storage method hint); ArenaSQL
	// supports neither, so a non-empty Modifiers rejects the statement
	// with UnsupportedQuery rather than silently ignoring it.
	Modifiers []string
}

// Execute acquires TableName's schema write lock, allocates a new
// TableIndexID, publishes the updated Table definition to the owning
// transaction, persists it, and backfills the index from every existing
// heap row before releasing the lock.
func (p *CreateIndexPlan) Execute(transaction *txn.Transaction) error {
	if len(p.Modifiers) > 0 {
		return arenaerrors.UnsupportedQuery("index modifiers are not supported: " + p.Modifiers[0])
	}

	lock, err := transaction.AcquireTableSchemaWriteLock(p.TableName, false)
	if err != nil {
		return err
	}

	table := lock.Table().Clone()
	if _, ok := table.IndexByName(p.IndexName); ok {
		return arenaerrors.RelationAlreadyExists(p.IndexName)
	}

	columnIDs := make([]catalog.ColumnID, len(p.Columns))
	for i, name := range p.Columns {
		col, ok := table.ColumnByName(name)
		if !ok {
			return arenaerrors.ColumnDoesntExist(table.Name, name)
		}
		columnIDs[i] = col.ID
	}

	handler, err := transaction.Lock()
	if err != nil {
		return err
	}
	tx := handler.KV()

	indexID, err := catalog.AllocateTableIndexID(tx)
	if err != nil {
		handler.Release()
		return err
	}

	newIndex := catalog.TableIndex{
		ID:              indexID,
		Name:            p.IndexName,
		Columns:         columnIDs,
		AllowDuplicates: p.AllowDuplicates,
	}
	table.Indexes = append(table.Indexes, newIndex)

	if err := tx.Put(kv.Schemas, catalog.TableSchemaKey(transaction.SchemaFactory().Catalog, transaction.SchemaFactory().Schema, uint16(table.ID)), catalog.SerializeTable(table)); err != nil {
		handler.Release()
		return err
	}
	if err := handler.Release(); err != nil {
		return err
	}

	lock.SetTable(table)
	transaction.SchemaFactory().HoldTableSchemaLock(lock)

	if err := p.backfill(transaction, table, newIndex); err != nil {
		return err
	}

	transaction.SchemaFactory().CommitTable(lock, table)
	return nil
}

// backfill scans every existing heap row and writes newIndex's entry for
// it, one StorageHandler acquisition per row so the backfill of a large
// table never holds the lock continuously (spec.md §5).
func (p *CreateIndexPlan) backfill(transaction *txn.Transaction, table *catalog.Table, newIndex catalog.TableIndex) error {
	handler, err := transaction.Lock()
	if err != nil {
		return err
	}
	tx := handler.KV()
	it, err := scan.NewHeapIterator(tx, table, nil)
	if err != nil {
		handler.Release()
		return err
	}

	var rows []scan.Row
	for {
		row, ok, nextErr := it.Next()
		if nextErr != nil {
			it.Close()
			handler.Release()
			return nextErr
		}
		if !ok {
			break
		}
		rows = append(rows, row)
	}
	it.Close()
	if err := handler.Release(); err != nil {
		return err
	}

	for _, row := range rows {
		rowIDBytes := serializer.EncodeVarUint64(row.RowID)
		h, err := transaction.Lock()
		if err != nil {
			return err
		}
		err = putIndexEntry(h.KV(), table, newIndex, row.Cells, row.RowID, rowIDBytes)
		if relErr := h.Release(); err == nil {
			err = relErr
		}
		if err != nil {
			return err
		}
	}
	return nil
}
