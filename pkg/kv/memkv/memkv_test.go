package memkv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arenasql/arenasql/pkg/kv"
)

func TestPutGetCommitVisibility(t *testing.T) {
	s := New()
	ctx := context.Background()

	tx1, err := s.Begin(ctx, true)
	require.NoError(t, err)
	require.NoError(t, tx1.Put(kv.Rows, []byte("a"), []byte("1")))
	require.NoError(t, tx1.Commit())

	tx2, err := s.Begin(ctx, false)
	require.NoError(t, err)
	v, err := tx2.Get(kv.Rows, []byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)
	require.NoError(t, tx2.Rollback())
}

func TestSnapshotIsolation(t *testing.T) {
	s := New()
	ctx := context.Background()

	txA, err := s.Begin(ctx, true)
	require.NoError(t, err)
	require.NoError(t, txA.Put(kv.Rows, []byte("k"), []byte("v1")))
	require.NoError(t, txA.Commit())

	txB, err := s.Begin(ctx, false)
	require.NoError(t, err)

	txC, err := s.Begin(ctx, true)
	require.NoError(t, err)
	require.NoError(t, txC.Put(kv.Rows, []byte("k"), []byte("v2")))
	require.NoError(t, txC.Commit())

	v, err := txB.Get(kv.Rows, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), v, "reader must not observe writes committed after it began")
	require.NoError(t, txB.Rollback())
}

func TestRollbackDiscardsWrites(t *testing.T) {
	s := New()
	ctx := context.Background()

	tx, err := s.Begin(ctx, true)
	require.NoError(t, err)
	require.NoError(t, tx.Put(kv.Rows, []byte("x"), []byte("1")))
	require.NoError(t, tx.Rollback())

	tx2, err := s.Begin(ctx, false)
	require.NoError(t, err)
	v, err := tx2.Get(kv.Rows, []byte("x"))
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestScanWithPrefixStopsAtBoundary(t *testing.T) {
	s := New()
	ctx := context.Background()

	tx, err := s.Begin(ctx, true)
	require.NoError(t, err)
	require.NoError(t, tx.Put(kv.Rows, []byte("t1_a"), []byte("1")))
	require.NoError(t, tx.Put(kv.Rows, []byte("t1_b"), []byte("2")))
	require.NoError(t, tx.Put(kv.Rows, []byte("t2_a"), []byte("3")))
	require.NoError(t, tx.Commit())

	ro, err := s.Begin(ctx, false)
	require.NoError(t, err)
	it, err := ro.ScanWithPrefix(kv.Rows, []byte("t1_"))
	require.NoError(t, err)
	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Item().Key))
	}
	require.NoError(t, it.Err())
	assert.Equal(t, []string{"t1_a", "t1_b"}, keys)
}

func TestAtomicUpdateIncrement(t *testing.T) {
	s := New()
	ctx := context.Background()
	tx, err := s.Begin(ctx, true)
	require.NoError(t, err)

	inc := func(cur []byte) ([]byte, error) {
		if cur == nil {
			return []byte{1}, nil
		}
		return []byte{cur[0] + 1}, nil
	}
	v1, err := tx.AtomicUpdate(kv.Locks, []byte("counter"), inc)
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, v1)

	v2, err := tx.AtomicUpdate(kv.Locks, []byte("counter"), inc)
	require.NoError(t, err)
	assert.Equal(t, []byte{2}, v2)
	require.NoError(t, tx.Commit())
}

func TestOperationsAfterFinishFail(t *testing.T) {
	s := New()
	ctx := context.Background()
	tx, err := s.Begin(ctx, true)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	_, err = tx.Get(kv.Rows, []byte("k"))
	assert.ErrorIs(t, err, kv.ErrTransactionFinished)

	err = tx.Commit()
	assert.ErrorIs(t, err, kv.ErrTransactionFinished)
}
