// Package manifest loads and writes the on-disk TOML cluster manifest
// (spec.md §6.4): the catalogs directory, optional backup/checkpoint
// directories, the page-cache budget, and the static user list the
// wire-protocol authenticator checks against.
package manifest

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Privilege is a manifest user's access level (spec.md §C, carried forward
// from original_source's two-level privilege model even though spec.md §6.1
// only specifies auth failure modes, not the privilege enum itself).
type Privilege string

const (
	SuperUser   Privilege = "SUPER_USER"
	NoPrivilege Privilege = "NONE"
)

// User is one [[users]] entry.
type User struct {
	Name      string    `toml:"name"`
	Password  string    `toml:"password"`
	Privilege Privilege `toml:"privilege"`
}

// Manifest is the fully decoded cluster manifest.
type Manifest struct {
	CatalogsDir   string `toml:"catalogs_dir"`
	BackupDir     string `toml:"backup_dir"`
	CheckpointDir string `toml:"checkpoint_dir"`
	CacheSizeMB   uint64 `toml:"cache_size_mb"`
	JWTSecret     string `toml:"jwt_secret"`
	Users         []User `toml:"users"`
}

const defaultCacheSizeMB = 10

// jwtSecretEnvVar is the fallback read when jwt_secret is absent from the
// manifest file (spec.md §A.3).
const jwtSecretEnvVar = "ARENA_JWT_SECRET"

// Load decodes the TOML manifest at path, applying the cache-size default
// and the JWT-secret environment fallback.
func Load(path string) (*Manifest, error) {
	var m Manifest
	if _, err := toml.DecodeFile(path, &m); err != nil {
		return nil, fmt.Errorf("manifest: decoding %s: %w", path, err)
	}
	if m.CatalogsDir == "" {
		return nil, fmt.Errorf("manifest: catalogs_dir is required")
	}
	if m.CacheSizeMB == 0 {
		m.CacheSizeMB = defaultCacheSizeMB
	}
	if m.JWTSecret == "" {
		m.JWTSecret = os.Getenv(jwtSecretEnvVar)
	}
	return &m, nil
}

// UserByName returns the manifest user with the given name, or false if
// none exists.
func (m *Manifest) UserByName(name string) (User, bool) {
	for _, u := range m.Users {
		if u.Name == name {
			return u, true
		}
	}
	return User{}, false
}

// Init writes a starter manifest to path, creating catalogsDir if it does
// not already exist. It refuses to overwrite an existing manifest file
// (spec.md §6.4, §A.3/A.4).
func Init(path, catalogsDir string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("manifest: %s already exists or cannot be created: %w", path, err)
	}
	defer f.Close()

	if err := os.MkdirAll(catalogsDir, 0o755); err != nil {
		return fmt.Errorf("manifest: creating catalogs_dir %s: %w", catalogsDir, err)
	}

	m := Manifest{
		CatalogsDir: catalogsDir,
		CacheSizeMB: defaultCacheSizeMB,
		Users: []User{
			{Name: "root", Password: "root", Privilege: SuperUser},
		},
	}
	return toml.NewEncoder(f).Encode(m)
}
