// Package memkv is the in-memory kv.Store backend used by tests and by
// the default configuration when no production store is configured
// (spec.md §4.1: "the default implementation is an in-memory B-tree per
// group for tests"). Snapshot isolation is copy-on-write over
// google/btree's O(1) BTree.Clone, the same approach used by
// kasuganosora-sqlexec's MVCCDataSource/COWTableSnapshot for its
// in-memory transaction manager: a transaction pins a clone of the
// committed tree at Begin time and never sees writes made by other
// transactions that commit afterward.
package memkv

import (
	"bytes"
	"context"
	"sync"

	"github.com/google/btree"

	"github.com/arenasql/arenasql/pkg/kv"
)

const btreeDegree = 32

type item struct {
	key   []byte
	value []byte
}

func (a item) Less(than btree.Item) bool {
	return bytes.Compare(a.key, than.(item).key) < 0
}

// Store is an in-memory kv.Store. One writable transaction may be open at
// a time (enforced by writerMu); any number of read-only transactions may
// run concurrently against the committed snapshot at the time they began.
type Store struct {
	mu       sync.RWMutex
	writerMu sync.Mutex
	trees    map[kv.Group]*btree.BTree
}

func New() *Store {
	s := &Store{trees: make(map[kv.Group]*btree.BTree, len(kv.AllGroups))}
	for _, g := range kv.AllGroups {
		s.trees[g] = btree.New(btreeDegree)
	}
	return s
}

func (s *Store) Begin(_ context.Context, writable bool) (kv.Tx, error) {
	if writable {
		s.writerMu.Lock()
	}

	s.mu.RLock()
	clones := make(map[kv.Group]*btree.BTree, len(s.trees))
	for g, t := range s.trees {
		clones[g] = t.Clone()
	}
	s.mu.RUnlock()

	return &tx{store: s, writable: writable, trees: clones}, nil
}

func (s *Store) Close() error { return nil }

type tx struct {
	store    *Store
	writable bool
	trees    map[kv.Group]*btree.BTree
	done     bool
	mu       sync.Mutex
}

func (t *tx) finished() error {
	if t.done {
		return kv.ErrTransactionFinished
	}
	return nil
}

func (t *tx) Get(group kv.Group, key []byte) ([]byte, error) {
	if err := t.finished(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	found := t.trees[group].Get(item{key: key})
	if found == nil {
		return nil, nil
	}
	return found.(item).value, nil
}

func (t *tx) GetForUpdate(group kv.Group, key []byte, _ bool) ([]byte, error) {
	// memkv serializes all writable transactions behind Store.writerMu,
	// so a row-level lock is implied by holding the writer slot at all;
	// GetForUpdate degrades to Get.
	return t.Get(group, key)
}

func (t *tx) Put(group kv.Group, key, value []byte) error {
	if err := t.finished(); err != nil {
		return err
	}
	if !t.writable {
		return kv.ErrInvalidTransactionState
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.trees[group].ReplaceOrInsert(item{key: append([]byte(nil), key...), value: append([]byte(nil), value...)})
	return nil
}

func (t *tx) PutAll(group kv.Group, kvs []kv.KeyValue) error {
	for _, e := range kvs {
		if err := t.Put(group, e.Key, e.Value); err != nil {
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
	t.mu.Lock()
	defer t.mu.Unlock()
	t.trees[group].Delete(item{key: key})
	return nil
}

// AtomicUpdate loops a read-modify-write until it converges. Because
// memkv admits only one writable transaction at a time, the first
// attempt always converges; the loop shape is kept so the contract
// (and WriteConflict path) matches backends with real concurrent writers.
func (t *tx) AtomicUpdate(group kv.Group, key []byte, fn kv.UpdateFn) ([]byte, error) {
	if err := t.finished(); err != nil {
		return nil, err
	}
	if !t.writable {
		return nil, kv.ErrInvalidTransactionState
	}
	for {
		cur, err := t.Get(group, key)
		if err != nil {
			return nil, err
		}
		next, err := fn(cur)
		if err != nil {
			return nil, err
		}
		if err := t.Put(group, key, next); err != nil {
			if err == kv.ErrWriteConflict {
				continue
			}
			return nil, err
		}
		return next, nil
	}
}

func (t *tx) ScanWithPrefix(group kv.Group, prefix []byte) (kv.Iterator, error) {
	if err := t.finished(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	var matches []kv.KeyValue
	t.trees[group].AscendGreaterOrEqual(item{key: prefix}, func(i btree.Item) bool {
		it := i.(item)
		if !bytes.HasPrefix(it.key, prefix) {
			return false
		}
		matches = append(matches, kv.KeyValue{
			Key:   append([]byte(nil), it.key...),
			Value: append([]byte(nil), it.value...),
		})
		return true
	})
	return &sliceIterator{items: matches, pos: -1}, nil
}

func (t *tx) Commit() error {
	if err := t.finished(); err != nil {
		return err
	}
	t.done = true
	if t.writable {
		t.store.mu.Lock()
		t.store.trees = t.trees
		t.store.mu.Unlock()
		t.store.writerMu.Unlock()
	}
	return nil
}

func (t *tx) Rollback() error {
	if err := t.finished(); err != nil {
		return err
	}
	t.done = true
	if t.writable {
		t.store.writerMu.Unlock()
	}
	return nil
}

type sliceIterator struct {
	items []kv.KeyValue
	pos   int
}

func (it *sliceIterator) Next() bool {
	it.pos++
	return it.pos < len(it.items)
}

func (it *sliceIterator) Item() kv.KeyValue { return it.items[it.pos] }
func (it *sliceIterator) Err() error        { return nil }
func (it *sliceIterator) Close() error      { return nil }
