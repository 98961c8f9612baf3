package boltkv

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/arenasql/arenasql/pkg/kv"
)

func TestPutGetCommit(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	tx, err := store.Begin(ctx, true)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := tx.Put(kv.Rows, []byte("k1"), []byte("v1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	ro, err := store.Begin(ctx, false)
	if err != nil {
		t.Fatalf("begin ro: %v", err)
	}
	defer ro.Rollback()
	v, err := ro.Get(kv.Rows, []byte("k1"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(v) != "v1" {
		t.Fatalf("expected v1, got %q", v)
	}
}

func TestScanWithPrefixBoundary(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	tx, err := store.Begin(ctx, true)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	for _, k := range []string{"t1_a", "t1_b", "t2_a"} {
		if err := tx.Put(kv.Indexes, []byte(k), []byte("x")); err != nil {
			t.Fatalf("put %s: %v", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	ro, err := store.Begin(ctx, false)
	if err != nil {
		t.Fatalf("begin ro: %v", err)
	}
	defer ro.Rollback()
	it, err := ro.ScanWithPrefix(kv.Indexes, []byte("t1_"))
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	var got []string
	for it.Next() {
		got = append(got, string(it.Item().Key))
	}
	if len(got) != 2 || got[0] != "t1_a" || got[1] != "t1_b" {
		t.Fatalf("unexpected scan result: %v", got)
	}
}

func TestOperationsAfterCommitFail(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	tx, err := store.Begin(ctx, true)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := tx.Commit(); err != kv.ErrTransactionFinished {
		t.Fatalf("expected ErrTransactionFinished, got %v", err)
	}
}
