package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arenasql/arenasql/pkg/arenaerrors"
	"github.com/arenasql/arenasql/pkg/session/wire"
)

func newTestExecutor(t *testing.T) (*Executor, *Context) {
	c := testCluster()
	result, err := c.Authenticate(context.Background(), "root", "root", "app")
	require.NoError(t, err)
	ctx, ok := c.Session(result.SessionID)
	require.True(t, ok)
	return NewExecutor(ctx, nil, nil), ctx
}

func TestExecutorBeginCommitRollback(t *testing.T) {
	exec, ctx := newTestExecutor(t)

	res, err := exec.Execute(context.Background(), "BEGIN")
	require.NoError(t, err)
	assert.Equal(t, wire.StartTransaction, res.Tag)
	require.NotNil(t, ctx.CurrentTransaction())

	res, err = exec.Execute(context.Background(), "COMMIT")
	require.NoError(t, err)
	assert.Equal(t, wire.Commit, res.Tag)
	assert.Nil(t, ctx.CurrentTransaction())

	_, err = exec.Execute(context.Background(), "BEGIN")
	require.NoError(t, err)
	res, err = exec.Execute(context.Background(), "ROLLBACK")
	require.NoError(t, err)
	assert.Equal(t, wire.Rollback, res.Tag)
	assert.Nil(t, ctx.CurrentTransaction())
}

func TestExecutorCommitWithoutBeginFails(t *testing.T) {
	exec, _ := newTestExecutor(t)
	_, err := exec.Execute(context.Background(), "COMMIT")
	require.Error(t, err)
	assert.True(t, arenaerrors.IsKind(err, arenaerrors.KindInvalidTransactionState))
}

func TestExecutorSetIsNoopAndAutoCommits(t *testing.T) {
	exec, ctx := newTestExecutor(t)
	res, err := exec.Execute(context.Background(), "SET TIMEZONE 'UTC'")
	require.NoError(t, err)
	assert.Equal(t, wire.Set, res.Tag)
	assert.Nil(t, ctx.CurrentTransaction())
}

func TestExecutorSetInsideExplicitTransactionDoesNotCommit(t *testing.T) {
	exec, ctx := newTestExecutor(t)
	_, err := exec.Execute(context.Background(), "BEGIN")
	require.NoError(t, err)

	_, err = exec.Execute(context.Background(), "SET search_path = public")
	require.NoError(t, err)
	require.NotNil(t, ctx.CurrentTransaction())

	_, err = exec.Execute(context.Background(), "COMMIT")
	require.NoError(t, err)
}

func TestExecutorUnrecognizedStatementFailsUnsupportedQuery(t *testing.T) {
	exec, _ := newTestExecutor(t)
	_, err := exec.Execute(context.Background(), "SELECT 1")
	require.Error(t, err)
	assert.True(t, arenaerrors.IsKind(err, arenaerrors.KindUnsupportedQuery))
}

func TestExecutorEmptyStatementIsNoop(t *testing.T) {
	exec, _ := newTestExecutor(t)
	res, err := exec.Execute(context.Background(), "  ")
	require.NoError(t, err)
	assert.Equal(t, wire.Query, res.Tag)
}
