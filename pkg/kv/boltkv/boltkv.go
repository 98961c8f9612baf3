// Package boltkv is a kv.Store backend over go.etcd.io/bbolt, adapted
// from the teacher repo's pkg/storage bbolt store: each kv.Group becomes
// a bucket, bbolt's own single-writer/many-readers transaction model
// supplies the commit/rollback and concurrency semantics the spec
// requires, and its Cursor.Seek gives prefix scans for free.
package boltkv

import (
	"bytes"
	"context"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/arenasql/arenasql/pkg/kv"
)

type Store struct {
	db *bolt.DB
}

// Open opens (creating if absent) a bbolt database file at path and
// provisions a bucket for every kv.Group.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("boltkv: opening %s: %w", path, err)
	}
	err = db.Update(func(btx *bolt.Tx) error {
		for _, g := range kv.AllGroups {
			if _, err := btx.CreateBucketIfNotExists(bucketName(g)); err != nil {
				return fmt.Errorf("boltkv: creating bucket %s: %w", g, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func bucketName(g kv.Group) []byte { return []byte(g) }

func (s *Store) Begin(_ context.Context, writable bool) (kv.Tx, error) {
	btx, err := s.db.Begin(writable)
	if err != nil {
		return nil, fmt.Errorf("boltkv: begin: %w", err)
	}
	return &tx{btx: btx, writable: writable}, nil
}

func (s *Store) Close() error { return s.db.Close() }

type tx struct {
	btx      *bolt.Tx
	writable bool
	done     bool
}

func (t *tx) finished() error {
	if t.done {
		return kv.ErrTransactionFinished
	}
	return nil
}

func (t *tx) bucket(group kv.Group) *bolt.Bucket {
	return t.btx.Bucket(bucketName(group))
}

func (t *tx) Get(group kv.Group, key []byte) ([]byte, error) {
	if err := t.finished(); err != nil {
		return nil, err
	}
	v := t.bucket(group).Get(key)
	if v == nil {
		return nil, nil
	}
	// bbolt values are only valid for the lifetime of the transaction;
	// copy so callers may retain them past Commit/Rollback.
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (t *tx) GetForUpdate(group kv.Group, key []byte, _ bool) ([]byte, error) {
	// bbolt permits only one writable transaction at a time, which already
	// gives any writer exclusive access to every key; a finer per-key lock
	// would buy nothing here.
	return t.Get(group, key)
}

func (t *tx) Put(group kv.Group, key, value []byte) error {
	if err := t.finished(); err != nil {
		return err
	}
	if !t.writable {
		return kv.ErrInvalidTransactionState
	}
	return t.bucket(group).Put(key, value)
}

func (t *tx) PutAll(group kv.Group, kvs []kv.KeyValue) error {
	if err := t.finished(); err != nil {
		return err
	}
	if !t.writable {
		return kv.ErrInvalidTransactionState
	}
	b := t.bucket(group)
	for _, e := range kvs {
		if err := b.Put(e.Key, e.Value); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) Delete(group kv.Group, key []byte) error {
	if err := t.finished(); err != nil {
		return err
	}
	if !t.writable {
		return kv.ErrInvalidTransactionState
	}
	return t.bucket(group).Delete(key)
}

func (t *tx) AtomicUpdate(group kv.Group, key []byte, fn kv.UpdateFn) ([]byte, error) {
	if err := t.finished(); err != nil {
		return nil, err
	}
	if !t.writable {
		return nil, kv.ErrInvalidTransactionState
	}
	cur, err := t.Get(group, key)
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

func (t *tx) ScanWithPrefix(group kv.Group, prefix []byte) (kv.Iterator, error) {
	if err := t.finished(); err != nil {
		return nil, err
	}
	c := t.bucket(group).Cursor()
	return &cursorIterator{cursor: c, prefix: prefix, started: false}, nil
}

func (t *tx) Commit() error {
	if err := t.finished(); err != nil {
		return err
	}
	t.done = true
	if err := t.btx.Commit(); err != nil {
		return fmt.Errorf("boltkv: commit: %w", err)
	}
	return nil
}

func (t *tx) Rollback() error {
	if err := t.finished(); err != nil {
		return err
	}
	t.done = true
	if err := t.btx.Rollback(); err != nil {
		return fmt.Errorf("boltkv: rollback: %w", err)
	}
	return nil
}

type cursorIterator struct {
	cursor  *bolt.Cursor
	prefix  []byte
	started bool
	key     []byte
	value   []byte
	done    bool
}

func (it *cursorIterator) Next() bool {
	if it.done {
		return false
	}
	var k, v []byte
	if !it.started {
		it.started = true
		k, v = it.cursor.Seek(it.prefix)
	} else {
		k, v = it.cursor.Next()
	}
	if k == nil || !bytes.HasPrefix(k, it.prefix) {
		it.done = true
		return false
	}
	it.key = append([]byte(nil), k...)
	it.value = append([]byte(nil), v...)
	return true
}

func (it *cursorIterator) Item() kv.KeyValue { return kv.KeyValue{Key: it.key, Value: it.value} }
func (it *cursorIterator) Err() error        { return nil }
func (it *cursorIterator) Close() error      { return nil }
