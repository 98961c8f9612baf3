package pebblekv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arenasql/arenasql/pkg/kv"
)

func TestPutGetCommit(t *testing.T) {
	store, err := Open(t.TempDir(), DefaultConfig())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	tx, err := store.Begin(ctx, true)
	require.NoError(t, err)
	require.NoError(t, tx.Put(kv.Rows, []byte("k1"), []byte("v1")))
	require.NoError(t, tx.Commit())

	ro, err := store.Begin(ctx, false)
	require.NoError(t, err)
	defer ro.Rollback()
	v, err := ro.Get(kv.Rows, []byte("k1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), v)
}

func TestGroupsAreDisjoint(t *testing.T) {
	store, err := Open(t.TempDir(), DefaultConfig())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	tx, err := store.Begin(ctx, true)
	require.NoError(t, err)
	require.NoError(t, tx.Put(kv.Rows, []byte("shared"), []byte("rows-value")))
	require.NoError(t, tx.Put(kv.Indexes, []byte("shared"), []byte("indexes-value")))
	require.NoError(t, tx.Commit())

	ro, err := store.Begin(ctx, false)
	require.NoError(t, err)
	defer ro.Rollback()
	v1, err := ro.Get(kv.Rows, []byte("shared"))
	require.NoError(t, err)
	v2, err := ro.Get(kv.Indexes, []byte("shared"))
	require.NoError(t, err)
	assert.Equal(t, []byte("rows-value"), v1)
	assert.Equal(t, []byte("indexes-value"), v2)
}

func TestWriteTxReadsItsOwnWrites(t *testing.T) {
	store, err := Open(t.TempDir(), DefaultConfig())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	tx, err := store.Begin(ctx, true)
	require.NoError(t, err)
	require.NoError(t, tx.Put(kv.Locks, []byte("counter"), []byte{1}))
	v, err := tx.Get(kv.Locks, []byte("counter"))
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, v)
	require.NoError(t, tx.Rollback())
}

// TestGetForUpdateIsReentrantWithinOneTransaction makes sure a writeTx
// locking the same key twice (e.g. a statement touching one row's unique
// index entry more than once) never blocks on its own already-held lock.
func TestGetForUpdateIsReentrantWithinOneTransaction(t *testing.T) {
	store, err := Open(t.TempDir(), DefaultConfig())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	tx, err := store.Begin(ctx, true)
	require.NoError(t, err)
	defer tx.Rollback()

	done := make(chan struct{})
	go func() {
		_, err1 := tx.GetForUpdate(kv.Rows, []byte("k"), true)
		assert.NoError(t, err1)
		_, err2 := tx.GetForUpdate(kv.Rows, []byte("k"), true)
		assert.NoError(t, err2)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("second GetForUpdate on an already-held key deadlocked")
	}
}

// TestGetForUpdateExclusiveBlocksAcrossTransactions makes sure reentrancy
// is scoped to one transaction: a second, distinct writeTx must still
// block until the first releases the key at Commit/Rollback.
func TestGetForUpdateExclusiveBlocksAcrossTransactions(t *testing.T) {
	store, err := Open(t.TempDir(), DefaultConfig())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	tx1, err := store.Begin(ctx, true)
	require.NoError(t, err)
	_, err = tx1.GetForUpdate(kv.Rows, []byte("k"), true)
	require.NoError(t, err)

	tx2, err := store.Begin(ctx, true)
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		_, _ = tx2.GetForUpdate(kv.Rows, []byte("k"), true)
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second transaction should block while the first holds the key")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, tx1.Rollback())
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second transaction never acquired the key after the first released it")
	}
	require.NoError(t, tx2.Rollback())
}
