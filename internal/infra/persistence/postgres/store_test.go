package postgres

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"flockcore/internal/infra/persistence/postgres/testutil"
)

func openStub(t *testing.T) (*Store, *testutil.StubConn) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	t.Cleanup(restore)
	store, err := NewStore(context.Background(), "")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store, conn
}

func TestNewStoreEnsuresTable(t *testing.T) {
	_, conn := openStub(t)
	var sawDDL bool
	for _, stmt := range conn.Execs {
		if strings.Contains(strings.ToUpper(stmt), "CREATE TABLE IF NOT EXISTS KV_STORE") {
			sawDDL = true
		}
	}
	if !sawDDL {
		t.Fatalf("expected kv_store DDL, got execs: %v", conn.Execs)
	}
}

func TestStoreSetGet(t *testing.T) {
	ctx := context.Background()
	store, conn := openStub(t)
	if _, found, err := store.Get(ctx, "chicken_tracker_v2"); err != nil || found {
		t.Fatalf("expected missing key, found=%v err=%v", found, err)
	}
	if err := store.Set(ctx, "chicken_tracker_v1", "legacy"); err != nil {
		t.Fatalf("set legacy: %v", err)
	}
	if err := store.Set(ctx, "chicken_tracker_v2", "first"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Set(ctx, "chicken_tracker_v2", "second"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if got := len(conn.Tables["kv_store"]); got != 2 {
		t.Fatalf("expected two rows, got %d", got)
	}
	v, found, err := store.Get(ctx, "chicken_tracker_v2")
	if err != nil || !found || v != "second" {
		t.Fatalf("unexpected get: %q %v %v", v, found, err)
	}
}

func TestStoreErrorsWrapKey(t *testing.T) {
	ctx := context.Background()
	store, conn := openStub(t)
	conn.FailExec = true
	if err := store.Set(ctx, "k", "v"); err == nil || !strings.Contains(err.Error(), "upsert k") {
		t.Fatalf("expected wrapped exec error, got %v", err)
	}
	conn.FailQuery = true
	if _, _, err := store.Get(ctx, "k"); err == nil || !strings.Contains(err.Error(), "select k") {
		t.Fatalf("expected wrapped query error, got %v", err)
	}
}

func TestNewStorePingFailure(t *testing.T) {
	db, conn := testutil.NewStubDB()
	conn.FailPing = true
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()
	if _, err := NewStore(context.Background(), "postgres://example"); err == nil {
		t.Fatalf("expected ping failure")
	}
}
