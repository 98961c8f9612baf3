// Package session ties together pkg/manifest, pkg/catalog, pkg/txn, and
// pkg/session/wire into the per-connection object a client actually talks
// to: authenticate once against the manifest's user list, then open and
// close transactions against the authenticated catalog for the lifetime of
// the wire connection (spec.md §6.1, §C's original_source grounding note on
// `crates/arenasql-cluster/src/schema/cluster.rs`).
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/arenasql/arenasql/pkg/arenaerrors"
	"github.com/arenasql/arenasql/pkg/catalog"
	"github.com/arenasql/arenasql/pkg/kv"
	"github.com/arenasql/arenasql/pkg/log"
	"github.com/arenasql/arenasql/pkg/manifest"
	"github.com/arenasql/arenasql/pkg/session/wire"
	"github.com/arenasql/arenasql/pkg/txn"
)

// Privilege mirrors manifest.Privilege inside pkg/session so callers that
// only import pkg/session (not pkg/manifest) still get a typed privilege
// value on AuthenticatedSession.
type Privilege = manifest.Privilege

const (
	SuperUser   = manifest.SuperUser
	NoPrivilege = manifest.NoPrivilege
)

// Context is the mutable per-connection state a wire handler reads and
// mutates as it serves one client: which catalog/schema it is bound to,
// which user opened it, and the currently open transaction (nil between
// statements run outside an explicit BEGIN).
type Context struct {
	ID      string
	Catalog string
	Schema  string
	User    string
	Priv    Privilege

	storage *StorageFactory

	mu  sync.Mutex
	txn *txn.Transaction
}

// StorageFactory is the per-catalog bundle a Context's transactions are
// opened against: the KV store, the catalog.StorageFactory built on top of
// it, and the shutdown-aware active-transaction counter.
type StorageFactory struct {
	CatalogStorage *catalog.StorageFactory
	Counter        *txn.ActiveCounter
	nextTxnID      int64
	mu             sync.Mutex
}

func newStorageFactory(catalogName string, store kv.Store) *StorageFactory {
	return &StorageFactory{
		CatalogStorage: catalog.NewStorageFactory(catalogName, store),
		Counter:        txn.NewActiveCounter(),
	}
}

func (f *StorageFactory) allocateTxnID() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextTxnID++
	return f.nextTxnID
}

// BeginTransaction opens a fresh transaction bound to ctx's schema,
// failing if the session already has one open (spec.md §6.2: nested BEGIN
// is InvalidTransactionState).
func (ctx *Context) BeginTransaction(parent context.Context, writable bool) (*txn.Transaction, error) {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	if ctx.txn != nil {
		return nil, arenaerrors.InvalidTransactionState("open", "begin")
	}

	kvTx, schemaFactory, err := ctx.storage.CatalogStorage.BeginTransaction(parent, ctx.Schema, writable)
	if err != nil {
		return nil, err
	}

	t := txn.New(ctx.storage.allocateTxnID(), kvTx, schemaFactory, ctx.storage.Counter)
	ctx.txn = t
	return t, nil
}

// CurrentTransaction returns the session's open transaction, or nil.
func (ctx *Context) CurrentTransaction() *txn.Transaction {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	return ctx.txn
}

// EndTransaction clears the session's open-transaction slot after a commit
// or rollback so the next BEGIN can succeed.
func (ctx *Context) EndTransaction() {
	ctx.mu.Lock()
	ctx.txn = nil
	ctx.mu.Unlock()
}

// Cluster owns the manifest-driven user list and one StorageFactory per
// catalog (database), and implements wire.Authenticator so a handshake can
// validate credentials without pkg/session/wire depending on pkg/session
// (which would cycle back through pkg/catalog/pkg/txn).
type Cluster struct {
	Manifest *manifest.Manifest

	mu       sync.Mutex
	catalogs map[string]*StorageFactory
	sessions map[string]*Context
	newStore func(catalogName string) (kv.Store, error)
}

// NewCluster builds a Cluster from m. newStore opens (or creates) the
// backing kv.Store for a catalog name the first time a session asks for
// it — callers wire this to whichever pkg/kv backend the manifest's
// catalogs_dir is configured for (pebblekv in production, memkv in tests).
func NewCluster(m *manifest.Manifest, newStore func(catalogName string) (kv.Store, error)) *Cluster {
	return &Cluster{
		Manifest: m,
		catalogs: make(map[string]*StorageFactory),
		sessions: make(map[string]*Context),
		newStore: newStore,
	}
}

var _ wire.Authenticator = (*Cluster)(nil)

// Authenticate implements wire.Authenticator: it validates user/password
// against the manifest's user list, resolves database to a StorageFactory,
// and registers a fresh Context under a new session id. The checks run in
// that order: an unknown user is reported first, then a wrong password,
// and only an authenticated user gets as far as resolving the catalog
// (CatalogNotFound).
func (c *Cluster) Authenticate(ctx context.Context, user, password, database string) (wire.AuthResult, error) {
	u, ok := c.Manifest.UserByName(user)
	if !ok {
		return wire.AuthResult{}, arenaerrors.UserDoesntExist(user)
	}
	if u.Password != password {
		return wire.AuthResult{}, arenaerrors.InvalidPassword(user)
	}

	storage, err := c.storageFactoryFor(database)
	if err != nil {
		return wire.AuthResult{}, err
	}

	sessionID := uuid.NewString()

	c.mu.Lock()
	if _, exists := c.sessions[sessionID]; exists {
		c.mu.Unlock()
		return wire.AuthResult{}, arenaerrors.New(arenaerrors.KindSessionAlreadyExists,
			"session %q already exists", sessionID)
	}
	session := &Context{
		ID:      sessionID,
		Catalog: database,
		Schema:  "public",
		User:    user,
		Priv:    u.Privilege,
		storage: storage,
	}
	c.sessions[sessionID] = session
	c.mu.Unlock()

	log.WithComponent("session").Info().
		Str("session", sessionID).
		Str("user", user).
		Str("catalog", database).
		Msg("session authenticated")

	return wire.AuthResult{SessionID: sessionID}, nil
}

// Session returns the Context registered under id, or false.
func (c *Cluster) Session(id string) (*Context, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[id]
	return s, ok
}

// CloseSession drops id's Context from the active-session map. Callers
// must ensure any open transaction was already rolled back.
func (c *Cluster) CloseSession(id string) {
	c.mu.Lock()
	delete(c.sessions, id)
	c.mu.Unlock()
}

// ActiveSessionCount returns the number of currently registered sessions,
// for pkg/metrics' periodic collector.
func (c *Cluster) ActiveSessionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

// ActiveTransactionCount sums the active-transaction counters across every
// catalog this cluster has opened a StorageFactory for.
func (c *Cluster) ActiveTransactionCount() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total int64
	for _, sf := range c.catalogs {
		total += sf.Counter.Count()
	}
	return total
}

func (c *Cluster) storageFactoryFor(catalogName string) (*StorageFactory, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if sf, ok := c.catalogs[catalogName]; ok {
		return sf, nil
	}

	store, err := c.newStore(catalogName)
	if err != nil {
		return nil, arenaerrors.CatalogNotFound(catalogName)
	}

	sf := newStorageFactory(catalogName, store)
	c.catalogs[catalogName] = sf
	return sf, nil
}

// RequireSuperUser returns an UnsupportedOperation error when ctx's session
// is not a super user, for statements gated to administrators (CREATE
// DATABASE, cluster-level DDL).
func RequireSuperUser(ctx *Context) error {
	if ctx.Priv != SuperUser {
		return arenaerrors.New(arenaerrors.KindUnsupportedOperation,
			"user %q lacks SUPER_USER privilege", ctx.User)
	}
	return nil
}

// Shutdown drains all catalogs' active-transaction counters and closes
// their stores, for graceful process shutdown (spec.md §5).
func (c *Cluster) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	factories := make([]*StorageFactory, 0, len(c.catalogs))
	for _, sf := range c.catalogs {
		factories = append(factories, sf)
	}
	c.mu.Unlock()

	for _, sf := range factories {
		sf.Counter.TriggerShutdown()
		select {
		case <-sf.Counter.Done():
		case <-ctx.Done():
			return fmt.Errorf("session: shutdown deadline exceeded waiting for active transactions")
		}
		if err := sf.CatalogStorage.Store.Close(); err != nil {
			return fmt.Errorf("session: closing catalog %q: %w", sf.CatalogStorage.CatalogName, err)
		}
	}
	return nil
}
