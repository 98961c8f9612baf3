// Package txn implements ArenaSQL's transaction manager: a per-transaction
// state machine, the StorageHandler RAII lock guard, table-schema write
// locks, process-wide advisory locks, and graceful-shutdown coordination
// (spec.md §4.5, §5).
package txn

import (
	"sync/atomic"

	"github.com/arenasql/arenasql/pkg/arenaerrors"
)

// State is the transaction-lifecycle state, an atomic integer over
// {Free, Locked, Closed} transitioned only via CAS (spec.md §4.5):
//
//	Free --lock(shared|exclusive)--> Locked --(StorageHandler released)--> Free
//	Free --commit|rollback--> Closed
//	Locked --*--> ERROR (InvalidTransactionState)
//	Closed --*--> ERROR
type State int32

const (
	Free State = iota + 1
	Locked
	Closed
)

func (s State) String() string {
	switch s {
	case Free:
		return "Free"
	case Locked:
		return "Locked"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// stateMachine wraps an atomic State with the CAS transitions the spec
// requires.
type stateMachine struct {
	v int32
}

func newStateMachine() *stateMachine {
	return &stateMachine{v: int32(Free)}
}

func (m *stateMachine) current() State {
	return State(atomic.LoadInt32(&m.v))
}

// lock transitions Free->Locked. Fails if the transaction is not Free.
func (m *stateMachine) lock() error {
	if !atomic.CompareAndSwapInt32(&m.v, int32(Free), int32(Locked)) {
		return arenaerrors.InvalidTransactionState(m.current().String(), Locked.String())
	}
	return nil
}

// unlock transitions Locked->Free. Only StorageHandler.Release calls this.
func (m *stateMachine) unlock() error {
	if !atomic.CompareAndSwapInt32(&m.v, int32(Locked), int32(Free)) {
		return arenaerrors.InvalidTransactionState(m.current().String(), Free.String())
	}
	return nil
}

// close transitions Free->Closed; used by commit/rollback, which are
// final and idempotent-at-most-once.
func (m *stateMachine) close() error {
	if !atomic.CompareAndSwapInt32(&m.v, int32(Free), int32(Closed)) {
		return arenaerrors.InvalidTransactionState(m.current().String(), Closed.String())
	}
	return nil
}
