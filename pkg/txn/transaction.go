package txn

import (
	"fmt"
	"sync"

	"github.com/arenasql/arenasql/pkg/arenaerrors"
	"github.com/arenasql/arenasql/pkg/catalog"
	"github.com/arenasql/arenasql/pkg/kv"
	"github.com/arenasql/arenasql/pkg/log"
)

// Transaction is a session-scoped, chained transaction bound to one KV
// transaction and one catalog.SchemaFactory (spec.md §4.4, §4.5). It is
// single-owner: concurrent use from more than one goroutine is forbidden
// and surfaces as InvalidTransactionState, matching the spec's "per-
// transaction state is single-owner" policy.
type Transaction struct {
	ID int64

	kvTx          kv.Tx
	schemaFactory *catalog.SchemaFactory
	state         *stateMachine
	counter       *ActiveCounter

	mu         sync.Mutex
	heldLocks  []*catalog.TableSchemaWriteLock
	finished   bool
}

// New wraps kvTx and schemaFactory into a fresh Transaction, registering
// it with counter for graceful-shutdown tracking. Callers should call
// Commit or Rollback exactly once.
func New(id int64, kvTx kv.Tx, schemaFactory *catalog.SchemaFactory, counter *ActiveCounter) *Transaction {
	counter.Inc()
	return &Transaction{
		ID:            id,
		kvTx:          kvTx,
		schemaFactory: schemaFactory,
		state:         newStateMachine(),
		counter:       counter,
	}
}

// SchemaFactory returns the schema cache this transaction reads/mutates
// table definitions through.
func (t *Transaction) SchemaFactory() *catalog.SchemaFactory { return t.schemaFactory }

// Lock acquires the transaction's exclusive StorageHandler. Callers must
// call Release on the returned handle before the next suspension point —
// no network I/O, channel receive, or further await should happen while a
// StorageHandler is held (spec.md §5): the lock is meant to be short-
// lived, guarding one KV read-modify-write, not a whole statement.
func (t *Transaction) Lock() (*StorageHandler, error) {
	if err := t.state.lock(); err != nil {
		return nil, err
	}
	return &StorageHandler{txn: t}, nil
}

// KV returns the underlying kv.Tx. Only valid while a StorageHandler for
// this Transaction is held by the caller.
func (t *Transaction) KV() kv.Tx { return t.kvTx }

// GetTable looks up name in the transaction's SchemaFactory. If this
// transaction itself holds name's schema write lock, it sees its own
// uncommitted DDL; otherwise it only ever sees the last committed
// definition, never another transaction's in-flight change (spec.md
// §4.4).
func (t *Transaction) GetTable(name string) (*catalog.Table, bool) {
	t.mu.Lock()
	var own *catalog.TableSchemaWriteLock
	for _, lock := range t.heldLocks {
		if lock.TableName() == name {
			own = lock
			break
		}
	}
	t.mu.Unlock()
	return t.schemaFactory.GetTable(name, own)
}

// AcquireTableSchemaWriteLock takes name's exclusive schema write lock
// through this transaction's SchemaFactory and records it so Rollback can
// release any lock this transaction never committed.
func (t *Transaction) AcquireTableSchemaWriteLock(name string, newTableOK bool) (*catalog.TableSchemaWriteLock, error) {
	lock, err := t.schemaFactory.AcquireTableSchemaWriteLock(name, newTableOK)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.heldLocks = append(t.heldLocks, lock)
	t.mu.Unlock()
	return lock, nil
}

// Commit flushes the underlying KV transaction and transitions Free to
// Closed. Final and idempotent-at-most-once: a second call fails with
// InvalidTransactionState.
func (t *Transaction) Commit() error {
	if err := t.state.close(); err != nil {
		return err
	}
	defer t.finish()
	if err := t.kvTx.Commit(); err != nil {
		return arenaerrors.IOError(fmt.Errorf("committing transaction %d: %w", t.ID, err))
	}
	log.WithTransaction(uint64(t.ID)).Debug().Msg("transaction committed")
	return nil
}

// Rollback discards the underlying KV transaction's writes, releases any
// table-schema write locks this transaction acquired but never
// committed, and transitions Free to Closed.
func (t *Transaction) Rollback() error {
	if err := t.state.close(); err != nil {
		return err
	}
	defer t.finish()

	t.mu.Lock()
	locks := t.heldLocks
	t.heldLocks = nil
	t.mu.Unlock()
	for _, lock := range locks {
		lock.Release(t.schemaFactory)
	}

	if err := t.kvTx.Rollback(); err != nil {
		return arenaerrors.IOError(fmt.Errorf("rolling back transaction %d: %w", t.ID, err))
	}
	log.WithTransaction(uint64(t.ID)).Debug().Msg("transaction rolled back")
	return nil
}

// finish decrements the process-wide active-transaction counter exactly
// once, mirroring Transaction::drop in the original design (spec.md §4.1,
// §5): a session's implicit rollback on disconnect goes through the same
// path as an explicit Rollback call.
func (t *Transaction) finish() {
	t.mu.Lock()
	already := t.finished
	t.finished = true
	t.mu.Unlock()
	if !already {
		t.counter.Dec()
	}
}

// StorageHandler is the RAII guard for the transaction's Locked state. It
// deliberately exposes only Release (no context-carrying methods), so
// implementers are encouraged to keep the handle on the stack of a single
// synchronous code path — the Go analogue of the spec's "non-Send handle
// type" guidance, since Go has no type-level Send bound to enforce this.
type StorageHandler struct {
	txn      *Transaction
	released bool
}

// KV returns the transaction's KV handle for use while the lock is held.
func (h *StorageHandler) KV() kv.Tx { return h.txn.kvTx }

// Release transitions the transaction back to Free. Safe to call multiple
// times; only the first call has effect.
func (h *StorageHandler) Release() error {
	if h.released {
		return nil
	}
	h.released = true
	return h.txn.state.unlock()
}
