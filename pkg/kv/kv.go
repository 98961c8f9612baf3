// Package kv defines the ordered key-value store contract ArenaSQL's
// catalog, transaction, scan, and DML layers are built on (spec.md §4.1):
// grouped keyspaces, prefix iteration, atomic read-modify-write, and
// transactional commit/rollback. Concrete backends live in subpackages:
// memkv (in-memory, google/btree, for tests), boltkv (go.etcd.io/bbolt,
// single-file embedded), and pebblekv (cockroachdb/pebble, production LSM).
package kv

import (
	"context"
	"errors"
)

// Group names one of the store's independent ordered keyspaces.
type Group string

const (
	// Locks holds frequently-updated counters and locks: table/index ID
	// allocators and per-table row-ID counters. Exempt from backup.
	Locks Group = "locks"
	// Schemas holds serialized Table structs keyed by table_schema_key.
	Schemas Group = "schemas"
	// Indexes holds secondary-index entries keyed by index_row_key.
	Indexes Group = "indexes"
	// Rows holds heap row data keyed by table_row_key.
	Rows Group = "rows"
)

// AllGroups lists every keyspace a Store implementation must provision.
var AllGroups = []Group{Locks, Schemas, Indexes, Rows}

var (
	// ErrTransactionFinished is returned by any operation attempted on a
	// transaction that has already committed or rolled back.
	ErrTransactionFinished = errors.New("kv: transaction already finished")
	// ErrWriteConflict is returned when AtomicUpdate cannot converge
	// because of a concurrent conflicting writer; the caller may retry.
	ErrWriteConflict = errors.New("kv: write conflict")
	// ErrInvalidTransactionState reports a protocol violation such as a
	// double commit or a commit attempted while the transaction is locked.
	ErrInvalidTransactionState = errors.New("kv: invalid transaction state")
	// ErrKeyNotFound is returned by operations that require an existing key.
	ErrKeyNotFound = errors.New("kv: key not found")
)

// UpdateFn is the read-modify-write function passed to AtomicUpdate. cur is
// nil when the key does not yet exist; the returned bytes become the new
// value. Returning an error aborts the update without writing.
type UpdateFn func(cur []byte) ([]byte, error)

// KeyValue is one entry yielded by an Iterator.
type KeyValue struct {
	Key   []byte
	Value []byte
}

// Iterator walks (key, value) pairs in ascending key order within a single
// prefix, honoring "prefix_same_as_start" semantics: iteration stops as
// soon as a key no longer carries the scanned prefix, so a heap or index
// scan of one table can never leak rows belonging to the next.
type Iterator interface {
	// Next advances to the next entry, returning false at end of range or
	// on error (check Err after Next returns false).
	Next() bool
	Item() KeyValue
	Err() error
	Close() error
}

// Tx is a single transaction's view of the store. All methods return
// ErrTransactionFinished once Commit or Rollback has been called.
type Tx interface {
	// Get returns the value for key, or nil if it does not exist.
	Get(group Group, key []byte) ([]byte, error)

	// GetForUpdate behaves like Get but additionally acquires a row-level
	// lock on key for the remainder of the transaction; exclusive
	// requests a write lock, otherwise a shared lock is taken.
	GetForUpdate(group Group, key []byte, exclusive bool) ([]byte, error)

	// AtomicUpdate loops a read-modify-write of key under fn until it
	// converges, returning the final stored value. Implementations must
	// detect conflicting concurrent writers and return ErrWriteConflict
	// if the update cannot converge.
	AtomicUpdate(group Group, key []byte, fn UpdateFn) ([]byte, error)

	// Put writes a single key/value pair.
	Put(group Group, key, value []byte) error

	// PutAll writes multiple key/value pairs as one batch.
	PutAll(group Group, kvs []KeyValue) error

	// Delete removes key, if present.
	Delete(group Group, key []byte) error

	// ScanWithPrefix returns an Iterator over all keys in group that start
	// with prefix, in ascending order.
	ScanWithPrefix(group Group, prefix []byte) (Iterator, error)

	// Commit finalizes the transaction. Commit and Rollback are each
	// final and idempotent-at-most-once: calling either a second time
	// returns ErrTransactionFinished.
	Commit() error

	// Rollback discards the transaction's writes.
	Rollback() error
}

// Store is a pluggable ordered KV backend. Implementations: memkv (tests),
// boltkv (embedded single-file), pebblekv (production LSM).
type Store interface {
	// Begin starts a new transaction. writable transactions take an
	// exclusive slot against conflicting writers per the backend's
	// concurrency model; read-only transactions may run concurrently.
	Begin(ctx context.Context, writable bool) (Tx, error)

	// Close releases all resources held by the store.
	Close() error
}
