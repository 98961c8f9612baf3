package catalog

import (
	"context"
	"sync"

	"github.com/arenasql/arenasql/pkg/kv"
	"github.com/arenasql/arenasql/pkg/serializer"
)

const defaultSchema = "public"

// StorageFactory owns one catalog name, one kv.Store, and a
// schema-name → SchemaFactory map (spec.md §4.4).
type StorageFactory struct {
	CatalogName string
	Store       kv.Store

	mu      sync.Mutex
	schemas map[string]*SchemaFactory
}

func NewStorageFactory(catalogName string, store kv.Store) *StorageFactory {
	return &StorageFactory{
		CatalogName: catalogName,
		Store:       store,
		schemas:     make(map[string]*SchemaFactory),
	}
}

// SchemaFactoryFor returns the cached SchemaFactory for schema, creating
// (but not yet loading) it on first use. The default schema is always
// present.
func (f *StorageFactory) SchemaFactoryFor(schema string) *SchemaFactory {
	if schema == "" {
		schema = defaultSchema
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	sf, ok := f.schemas[schema]
	if !ok {
		sf = newSchemaFactory(f.CatalogName, schema)
		f.schemas[schema] = sf
	}
	return sf
}

// BeginTransaction opens a fresh KV transaction and lazily loads schema's
// SchemaFactory from the Schemas keyspace the first time it is touched
// (spec.md §4.4's being_transaction). Returns the KV transaction and the
// SchemaFactory a pkg/txn.Transaction should bind to.
func (f *StorageFactory) BeginTransaction(ctx context.Context, schema string, writable bool) (kv.Tx, *SchemaFactory, error) {
	sf := f.SchemaFactoryFor(schema)

	tx, err := f.Store.Begin(ctx, writable)
	if err != nil {
		return nil, nil, err
	}

	sf.mu.Lock()
	loaded := len(sf.tables) > 0 || sf.loadedEmpty
	sf.mu.Unlock()
	if !loaded {
		if err := sf.loadFromStore(tx); err != nil {
			tx.Rollback()
			return nil, nil, err
		}
		sf.mu.Lock()
		sf.loadedEmpty = true
		sf.mu.Unlock()
	}

	return tx, sf, nil
}

// AllocateTableID atomically increments and returns the next TableID.
func AllocateTableID(tx kv.Tx) (TableID, error) {
	v, err := tx.AtomicUpdate(kv.Locks, LastTableIDKey(), incrementUint16)
	if err != nil {
		return 0, err
	}
	n, _ := serializer.DecodeFixedUint16(v)
	return TableID(n), nil
}

// AllocateTableIndexID atomically increments and returns the next
// TableIndexID.
func AllocateTableIndexID(tx kv.Tx) (TableIndexID, error) {
	v, err := tx.AtomicUpdate(kv.Locks, LastTableIndexIDKey(), incrementUint32)
	if err != nil {
		return 0, err
	}
	n, _ := serializer.DecodeFixedUint32(v)
	return TableIndexID(n), nil
}

// AllocateRowID atomically increments and returns the next RowID for
// tableID.
func AllocateRowID(tx kv.Tx, tableID TableID) (uint64, error) {
	v, err := tx.AtomicUpdate(kv.Locks, LastRowIDOfTableKey(uint16(tableID)), incrementUint64)
	if err != nil {
		return 0, err
	}
	n, _, _ := serializer.DecodeVarUint64(v)
	return n, nil
}

func incrementUint16(cur []byte) ([]byte, error) {
	var n uint16
	if cur != nil {
		n, _ = serializer.DecodeFixedUint16(cur)
	}
	return serializer.EncodeFixedUint16(n + 1), nil
}

func incrementUint32(cur []byte) ([]byte, error) {
	var n uint32
	if cur != nil {
		n, _ = serializer.DecodeFixedUint32(cur)
	}
	return serializer.EncodeFixedUint32(n + 1), nil
}

func incrementUint64(cur []byte) ([]byte, error) {
	var n uint64
	if cur != nil {
		n, _, _ = serializer.DecodeVarUint64(cur)
	}
	return serializer.EncodeVarUint64(n + 1), nil
}
