package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arenasql/arenasql/pkg/arenaerrors"
	"github.com/arenasql/arenasql/pkg/kv"
	"github.com/arenasql/arenasql/pkg/kv/memkv"
	"github.com/arenasql/arenasql/pkg/manifest"
)

func testManifest() *manifest.Manifest {
	return &manifest.Manifest{
		CatalogsDir: "/tmp/unused",
		CacheSizeMB: 10,
		Users: []manifest.User{
			{Name: "root", Password: "root", Privilege: manifest.SuperUser},
			{Name: "reader", Password: "secret", Privilege: manifest.NoPrivilege},
		},
	}
}

func testCluster() *Cluster {
	return NewCluster(testManifest(), func(catalogName string) (kv.Store, error) {
		return memkv.New(), nil
	})
}

func TestAuthenticateSucceedsAndRegistersSession(t *testing.T) {
	c := testCluster()
	result, err := c.Authenticate(context.Background(), "root", "root", "app")
	require.NoError(t, err)
	require.NotEmpty(t, result.SessionID)

	ctx, ok := c.Session(result.SessionID)
	require.True(t, ok)
	assert.Equal(t, "root", ctx.User)
	assert.Equal(t, SuperUser, ctx.Priv)
	assert.Equal(t, "app", ctx.Catalog)
}

func TestAuthenticateRejectsUnknownUser(t *testing.T) {
	c := testCluster()
	_, err := c.Authenticate(context.Background(), "ghost", "x", "app")
	require.Error(t, err)
	assert.True(t, arenaerrors.IsKind(err, arenaerrors.KindUserDoesntExist))
}

func TestAuthenticateRejectsWrongPassword(t *testing.T) {
	c := testCluster()
	_, err := c.Authenticate(context.Background(), "reader", "wrong", "app")
	require.Error(t, err)
	assert.True(t, arenaerrors.IsKind(err, arenaerrors.KindInvalidPassword))
}

func TestBeginTransactionRejectsNestedBegin(t *testing.T) {
	c := testCluster()
	result, err := c.Authenticate(context.Background(), "root", "root", "app")
	require.NoError(t, err)
	ctx, _ := c.Session(result.SessionID)

	_, err = ctx.BeginTransaction(context.Background(), true)
	require.NoError(t, err)

	_, err = ctx.BeginTransaction(context.Background(), true)
	require.Error(t, err)
	assert.True(t, arenaerrors.IsKind(err, arenaerrors.KindInvalidTransactionState))
}

func TestEndTransactionAllowsNextBegin(t *testing.T) {
	c := testCluster()
	result, err := c.Authenticate(context.Background(), "root", "root", "app")
	require.NoError(t, err)
	ctx, _ := c.Session(result.SessionID)

	tx1, err := ctx.BeginTransaction(context.Background(), true)
	require.NoError(t, err)
	require.NoError(t, tx1.Commit())
	ctx.EndTransaction()

	_, err = ctx.BeginTransaction(context.Background(), true)
	require.NoError(t, err)
}

func TestRequireSuperUserRejectsNonPrivilegedSession(t *testing.T) {
	c := testCluster()
	result, err := c.Authenticate(context.Background(), "reader", "secret", "app")
	require.NoError(t, err)
	ctx, _ := c.Session(result.SessionID)

	assert.NoError(t, RequireSuperUser(&Context{Priv: SuperUser}))
	assert.Error(t, RequireSuperUser(ctx))
}
