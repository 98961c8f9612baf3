package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitThenLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "cluster.toml")
	catalogsDir := filepath.Join(dir, "catalogs")

	require.NoError(t, Init(manifestPath, catalogsDir))

	info, err := os.Stat(catalogsDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	m, err := Load(manifestPath)
	require.NoError(t, err)
	assert.Equal(t, catalogsDir, m.CatalogsDir)
	assert.EqualValues(t, defaultCacheSizeMB, m.CacheSizeMB)

	root, ok := m.UserByName("root")
	require.True(t, ok)
	assert.Equal(t, SuperUser, root.Privilege)
}

func TestInitRefusesToOverwrite(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "cluster.toml")
	catalogsDir := filepath.Join(dir, "catalogs")

	require.NoError(t, Init(manifestPath, catalogsDir))
	err := Init(manifestPath, catalogsDir)
	assert.Error(t, err)
}

func TestLoadJWTSecretFallsBackToEnv(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "cluster.toml")
	require.NoError(t, os.WriteFile(manifestPath, []byte(`catalogs_dir = "`+dir+`"`), 0o600))

	t.Setenv("ARENA_JWT_SECRET", "from-env")
	m, err := Load(manifestPath)
	require.NoError(t, err)
	assert.Equal(t, "from-env", m.JWTSecret)
}

func TestLoadRequiresCatalogsDir(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "cluster.toml")
	require.NoError(t, os.WriteFile(manifestPath, []byte(`cache_size_mb = 20`), 0o600))

	_, err := Load(manifestPath)
	assert.Error(t, err)
}
