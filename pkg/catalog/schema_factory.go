package catalog

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/arenasql/arenasql/pkg/arenaerrors"
	"github.com/arenasql/arenasql/pkg/kv"
	"github.com/arenasql/arenasql/pkg/log"
)

// TableSchemaWriteLock represents an exclusive hold on one table's schema,
// taken for the duration of a DDL statement (spec.md §4.4). table is the
// in-transaction override visible only to the owning transaction until it
// commits.
type TableSchemaWriteLock struct {
	tableName string
	table     *Table
	mu        *sync.Mutex
	released  bool
}

// Table returns the lock's in-transaction table override.
func (l *TableSchemaWriteLock) Table() *Table { return l.table }

// TableName returns the name of the table this lock guards.
func (l *TableSchemaWriteLock) TableName() string { return l.tableName }

// SetTable replaces the in-transaction override (used by CREATE INDEX /
// ALTER TABLE to publish the mutated schema to the owning transaction
// before commit).
func (l *TableSchemaWriteLock) SetTable(t *Table) { l.table = t }

// Release drops the write lock and increments the schema factory's reload
// generation (readable through Generation). No schema cache is rebuilt on
// that signal: committed DDL reaches other transactions because
// CommitTable writes it into the factory's shared table map.
func (l *TableSchemaWriteLock) Release(f *SchemaFactory) {
	if l.released {
		return
	}
	l.released = true
	f.mu.Lock()
	delete(f.locks, l.tableName)
	f.mu.Unlock()
	l.mu.Unlock()
	atomic.AddUint64(&f.reloadGeneration, 1)
}

// SchemaFactory caches one (catalog, schema)'s committed tables and
// tracks in-flight DDL write locks (spec.md §4.4).
type SchemaFactory struct {
	Catalog string
	Schema  string

	mu          sync.RWMutex
	tables      map[string]*Table
	locks       map[string]*TableSchemaWriteLock
	tableMus    map[string]*sync.Mutex
	loadedEmpty bool

	// reloadGeneration increments every time a schema write lock is
	// released. Generation exposes it; StorageFactory.BeginTransaction
	// does not consult it.
	reloadGeneration uint64
}

func newSchemaFactory(catalog, schema string) *SchemaFactory {
	return &SchemaFactory{
		Catalog:  catalog,
		Schema:   schema,
		tables:   make(map[string]*Table),
		locks:    make(map[string]*TableSchemaWriteLock),
		tableMus: make(map[string]*sync.Mutex),
	}
}

// Generation returns the current reload generation, for callers deciding
// whether to discard a cached SchemaFactory reference.
func (f *SchemaFactory) Generation() uint64 { return atomic.LoadUint64(&f.reloadGeneration) }

// GetTable returns name's table. ownLock, if non-nil, is a write lock the
// caller itself holds (returned by its own AcquireTableSchemaWriteLock
// call); only then, and only when ownLock is still the table's live lock,
// does the caller see that lock's uncommitted override. Every other
// caller — including a concurrent transaction that holds no lock on name,
// or one that holds a lock on a different table — always falls back to
// the last committed definition, never another transaction's in-flight
// DDL (spec.md §4.4, §8 Testable Property 9).
func (f *SchemaFactory) GetTable(name string, ownLock *TableSchemaWriteLock) (*Table, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if ownLock != nil && ownLock.table != nil {
		if lock, ok := f.locks[name]; ok && lock == ownLock {
			return ownLock.table, true
		}
	}
	t, ok := f.tables[name]
	return t, ok
}

// ListTables returns every committed table, sorted by nothing in
// particular (callers sort as needed). In-flight write-lock overrides are
// never included here: unlike GetTable, ListTables has no caller identity
// to check ownership against, so showing any lock's override would leak
// uncommitted DDL to whoever calls it (spec.md §4.4).
func (f *SchemaFactory) ListTables() []*Table {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]*Table, 0, len(f.tables))
	for _, t := range f.tables {
		out = append(out, t)
	}
	return out
}

// AcquireTableSchemaWriteLock blocks until name's per-table lock is free,
// then returns a TableSchemaWriteLock seeded with the table's last
// committed definition.
// newTableOK allows acquiring a lock for a table that does not exist yet
// (CREATE TABLE).
func (f *SchemaFactory) AcquireTableSchemaWriteLock(name string, newTableOK bool) (*TableSchemaWriteLock, error) {
	f.mu.Lock()
	mu, ok := f.tableMus[name]
	if !ok {
		mu = &sync.Mutex{}
		f.tableMus[name] = mu
	}
	f.mu.Unlock()

	mu.Lock()

	f.mu.RLock()
	table, exists := f.tables[name]
	f.mu.RUnlock()
	if !exists && !newTableOK {
		mu.Unlock()
		return nil, arenaerrors.RelationDoesntExist(name)
	}

	return &TableSchemaWriteLock{tableName: name, table: table, mu: mu}, nil
}

// HoldTableSchemaLock publishes lock into the factory's locked list, so
// the owning transaction (and only it) sees the override immediately.
func (f *SchemaFactory) HoldTableSchemaLock(lock *TableSchemaWriteLock) {
	f.mu.Lock()
	f.locks[lock.tableName] = lock
	f.mu.Unlock()
}

// CommitTable publishes table as the new committed definition and
// releases its write lock, making the change visible to transactions
// begun after this point.
func (f *SchemaFactory) CommitTable(lock *TableSchemaWriteLock, table *Table) {
	f.mu.Lock()
	f.tables[table.Name] = table
	f.mu.Unlock()
	lock.Release(f)
}

// DropTable removes name from the committed map and releases its lock,
// without publishing a replacement (used by DROP TABLE, not yet
// exercised by DML plans but kept for CREATE/DROP symmetry).
func (f *SchemaFactory) DropTable(lock *TableSchemaWriteLock, name string) {
	f.mu.Lock()
	delete(f.tables, name)
	f.mu.Unlock()
	lock.Release(f)
}

// loadFromStore prefix-scans the Schemas group for every table belonging
// to this (catalog, schema) and populates the committed map. Called once
// per SchemaFactory lazily, from StorageFactory.BeginTransaction.
func (f *SchemaFactory) loadFromStore(tx kv.Tx) error {
	prefix := TableSchemasPrefix(f.Catalog, f.Schema)
	it, err := tx.ScanWithPrefix(kv.Schemas, prefix)
	if err != nil {
		return err
	}
	defer it.Close()

	f.mu.Lock()
	defer f.mu.Unlock()
	for it.Next() {
		kvEntry := it.Item()
		table, err := DeserializeTable(kvEntry.Value)
		if err != nil {
			return fmt.Errorf("catalog: decoding table at key %q: %w", kvEntry.Key, err)
		}
		f.tables[table.Name] = table
	}
	if err := it.Err(); err != nil {
		return err
	}
	log.WithSchema(f.Catalog, f.Schema).Debug().Int("tables", len(f.tables)).Msg("schema loaded")
	return nil
}
