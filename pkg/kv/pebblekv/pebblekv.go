// Package pebblekv is the production kv.Store backend: a RocksDB-like LSM
// engine (cockroachdb/pebble) supporting MVCC-style transactions via
// indexed batches and snapshots, and configurable block compression
// (spec.md §4.1, §9). Every value is stored inline in the LSM; Config
// carries a blob size threshold, but nothing in this module reads it.
package pebblekv

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/arenasql/arenasql/pkg/kv"
)

// Config tunes the underlying pebble.DB.
type Config struct {
	// Compression selects pebble's block compression algorithm.
	Compression pebble.Compression
	// TargetFileSize bounds the size of a single sstable; pebble splits
	// new files once they cross this threshold.
	TargetFileSize int64
	// BlobThresholdBytes is a value-size threshold for large Text/Binary
	// cells. pebblekv stores whatever bytes it is given inline, and no
	// other package in this module reads the threshold.
	BlobThresholdBytes int64
}

func DefaultConfig() Config {
	return Config{
		Compression:        pebble.SnappyCompression,
		TargetFileSize:     64 << 20,
		BlobThresholdBytes: 1 << 20,
	}
}

// Store wraps a single pebble.DB. Groups are namespaced by a one-byte
// prefix so every group occupies a disjoint, non-overlapping key range.
type Store struct {
	db    *pebble.DB
	cfg   Config
	locks keyLockTable
}

var groupPrefix = map[kv.Group]byte{
	kv.Locks:   0x00,
	kv.Schemas: 0x01,
	kv.Indexes: 0x02,
	kv.Rows:    0x03,
}

func namespacedKey(group kv.Group, key []byte) []byte {
	out := make([]byte, 1+len(key))
	out[0] = groupPrefix[group]
	copy(out[1:], key)
	return out
}

func Open(dir string, cfg Config) (*Store, error) {
	opts := &pebble.Options{
		L0CompactionThreshold: 2,
	}
	for i := range opts.Levels {
		opts.Levels[i].Compression = func() pebble.Compression { return cfg.Compression }
		opts.Levels[i].TargetFileSize = cfg.TargetFileSize
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("pebblekv: opening %s: %w", dir, err)
	}
	return &Store{db: db, cfg: cfg, locks: newKeyLockTable()}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Config returns the configuration the store was opened with.
func (s *Store) Config() Config { return s.cfg }

func (s *Store) Begin(_ context.Context, writable bool) (kv.Tx, error) {
	if writable {
		return &writeTx{store: s, batch: s.db.NewIndexedBatch(), held: make(map[string]bool)}, nil
	}
	return &readTx{store: s, snapshot: s.db.NewSnapshot()}, nil
}

// readTx is a read-only transaction pinned to a pebble snapshot, giving it
// a consistent view that never observes writes committed after Begin.
type readTx struct {
	store    *Store
	snapshot *pebble.Snapshot
	held     []string
	done     bool
}

func (t *readTx) finished() error {
	if t.done {
		return kv.ErrTransactionFinished
	}
	return nil
}

func (t *readTx) Get(group kv.Group, key []byte) ([]byte, error) {
	if err := t.finished(); err != nil {
		return nil, err
	}
	v, closer, err := t.snapshot.Get(namespacedKey(group, key))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// writeOnReadOnly is what a write-side call on a read-only transaction
// returns: ErrTransactionFinished once it has ended, otherwise
// ErrInvalidTransactionState.
func (t *readTx) writeOnReadOnly() error {
	if err := t.finished(); err != nil {
		return err
	}
	return kv.ErrInvalidTransactionState
}

func (t *readTx) GetForUpdate(group kv.Group, key []byte, exclusive bool) ([]byte, error) {
	if exclusive {
		return nil, t.writeOnReadOnly()
	}
	return t.Get(group, key)
}

func (t *readTx) Put(kv.Group, []byte, []byte) error   { return t.writeOnReadOnly() }
func (t *readTx) PutAll(kv.Group, []kv.KeyValue) error { return t.writeOnReadOnly() }
func (t *readTx) Delete(kv.Group, []byte) error        { return t.writeOnReadOnly() }
func (t *readTx) AtomicUpdate(kv.Group, []byte, kv.UpdateFn) ([]byte, error) {
	return nil, t.writeOnReadOnly()
}

func (t *readTx) ScanWithPrefix(group kv.Group, prefix []byte) (kv.Iterator, error) {
	if err := t.finished(); err != nil {
		return nil, err
	}
	full := namespacedKey(group, prefix)
	it, err := t.snapshot.NewIter(&pebble.IterOptions{LowerBound: full})
	if err != nil {
		return nil, err
	}
	return &pebbleIterator{iter: it, prefix: full, first: true}, nil
}

func (t *readTx) Commit() error {
	if err := t.finished(); err != nil {
		return err
	}
	t.done = true
	return t.snapshot.Close()
}

func (t *readTx) Rollback() error { return t.Commit() }

// writeTx is a writable transaction backed by an indexed pebble.Batch,
// which can read back its own uncommitted writes (pebble's equivalent of
// read-your-own-writes within a chained transaction).
type writeTx struct {
	store *Store
	batch *pebble.Batch
	held  map[string]bool
	done  bool
	mu    sync.Mutex
}

func (t *writeTx) finished() error {
	if t.done {
		return kv.ErrTransactionFinished
	}
	return nil
}

func (t *writeTx) Get(group kv.Group, key []byte) ([]byte, error) {
	if err := t.finished(); err != nil {
		return nil, err
	}
	v, closer, err := t.batch.Get(namespacedKey(group, key))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// GetForUpdate takes a process-wide advisory lock on (group, key) for the
// lifetime of the transaction when exclusive is true, since pebble's
// batch/snapshot model has no native per-key row lock. The lock is
// per-transaction reentrant: a transaction that already holds lockKey
// (e.g. a multi-row INSERT repeating the same unique-indexed value) skips
// re-locking it, since t.store.locks.lock is a plain non-reentrant mutex
// and locking it twice from the same transaction would self-deadlock
// rather than surface as a duplicate-key error further up the stack.
func (t *writeTx) GetForUpdate(group kv.Group, key []byte, exclusive bool) ([]byte, error) {
	if err := t.finished(); err != nil {
		return nil, err
	}
	if exclusive {
		lockKey := string(namespacedKey(group, key))
		t.mu.Lock()
		alreadyHeld := t.held[lockKey]
		t.mu.Unlock()
		if !alreadyHeld {
			t.store.locks.lock(lockKey)
			t.mu.Lock()
			t.held[lockKey] = true
			t.mu.Unlock()
		}
	}
	return t.Get(group, key)
}

func (t *writeTx) Put(group kv.Group, key, value []byte) error {
	if err := t.finished(); err != nil {
		return err
	}
	return t.batch.Set(namespacedKey(group, key), value, nil)
}

func (t *writeTx) PutAll(group kv.Group, kvs []kv.KeyValue) error {
	for _, e := range kvs {
		if err := t.Put(group, e.Key, e.Value); err != nil {
			return err
		}
	}
	return nil
}

func (t *writeTx) Delete(group kv.Group, key []byte) error {
	if err := t.finished(); err != nil {
		return err
	}
	return t.batch.Delete(namespacedKey(group, key), nil)
}

// AtomicUpdate reads key under its exclusive per-key lock (see
// GetForUpdate), so a concurrent transaction updating the same key blocks
// until this one commits or rolls back and then reads the committed value.
func (t *writeTx) AtomicUpdate(group kv.Group, key []byte, fn kv.UpdateFn) ([]byte, error) {
	if err := t.finished(); err != nil {
		return nil, err
	}
	cur, err := t.GetForUpdate(group, key, true)
	if err != nil {
		return nil, err
	}
	next, err := fn(cur)
	if err != nil {
		return nil, err
	}
	if err := t.Put(group, key, next); err != nil {
		return nil, err
	}
	return next, nil
}

func (t *writeTx) ScanWithPrefix(group kv.Group, prefix []byte) (kv.Iterator, error) {
	if err := t.finished(); err != nil {
		return nil, err
	}
	full := namespacedKey(group, prefix)
	it, err := t.batch.NewIter(&pebble.IterOptions{LowerBound: full})
	if err != nil {
		return nil, err
	}
	return &pebbleIterator{iter: it, prefix: full, first: true}, nil
}

func (t *writeTx) Commit() error {
	if err := t.finished(); err != nil {
		return err
	}
	t.done = true
	t.releaseLocks()
	if err := t.batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("pebblekv: commit: %w", err)
	}
	return t.batch.Close()
}

func (t *writeTx) Rollback() error {
	if err := t.finished(); err != nil {
		return err
	}
	t.done = true
	t.releaseLocks()
	return t.batch.Close()
}

func (t *writeTx) releaseLocks() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k := range t.held {
		t.store.locks.unlock(k)
	}
	t.held = nil
}

type pebbleIterator struct {
	iter   *pebble.Iterator
	prefix []byte
	first  bool
	err    error
}

func (it *pebbleIterator) Next() bool {
	var valid bool
	if it.first {
		it.first = false
		valid = it.iter.First()
	} else {
		valid = it.iter.Next()
	}
	if !valid || !bytes.HasPrefix(it.iter.Key(), it.prefix) {
		return false
	}
	return true
}

// Item strips the one-byte group tag so callers see the same key they
// passed to ScanWithPrefix, matching the other kv.Store backends.
func (it *pebbleIterator) Item() kv.KeyValue {
	k := append([]byte(nil), it.iter.Key()...)
	v := append([]byte(nil), it.iter.Value()...)
	return kv.KeyValue{Key: k[1:], Value: v}
}

func (it *pebbleIterator) Err() error   { return it.iter.Error() }
func (it *pebbleIterator) Close() error { return it.iter.Close() }

// keyLockTable is a process-wide table of advisory per-key mutexes used
// by writeTx.GetForUpdate to emulate row-level exclusive locks on top of
// pebble's batch/snapshot model.
type keyLockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyLockTable() keyLockTable {
	return keyLockTable{locks: make(map[string]*sync.Mutex)}
}

func (t *keyLockTable) lock(key string) {
	t.mu.Lock()
	l, ok := t.locks[key]
	if !ok {
		l = &sync.Mutex{}
		t.locks[key] = l
	}
	t.mu.Unlock()
	l.Lock()
}

func (t *keyLockTable) unlock(key string) {
	t.mu.Lock()
	l, ok := t.locks[key]
	t.mu.Unlock()
	if ok {
		l.Unlock()
	}
}
