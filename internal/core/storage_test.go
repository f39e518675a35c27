package core

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"quantumcore/internal/infra/persistence/memory"
	"quantumcore/internal/infra/persistence/postgres"
	"quantumcore/internal/infra/persistence/postgres/testutil"
	"quantumcore/internal/infra/persistence/sqlite"
)

func TestOpenPersistentStoreMemory(t *testing.T) {
	t.Setenv(EnvStorageDriver, "memory")
	store, err := OpenPersistentStore(NewDefaultRulesEngine())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := store.(*memory.Store); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}
}

func TestOpenPersistentStoreDefaultsToSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.db")
	t.Setenv(EnvStorageDriver, "")
	t.Setenv(EnvSQLitePath, path)
	store, err := OpenPersistentStore(NewDefaultRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	sq, ok := store.(*sqlite.Store)
	if !ok {
		t.Fatalf("expected sqlite store, got %T", store)
	}
	t.Cleanup(func() { _ = sq.Close() })
	if sq.Path() != path {
		t.Fatalf("expected path %s, got %s", path, sq.Path())
	}
}

func TestOpenPersistentStorePostgres(t *testing.T) {
	db, conn := testutil.NewStubDB()
	restore := postgres.OverrideSQLOpen(func(driver, dsn string) (*sql.DB, error) {
		if driver != "pgx" || dsn != "postgres://example/quantum" {
			t.Fatalf("unexpected open %s %s", driver, dsn)
		}
		return db, nil
	})
	t.Cleanup(restore)
	t.Setenv(EnvStorageDriver, "Postgres")
	t.Setenv(EnvPostgresDSN, "postgres://example/quantum")
	store, err := OpenPersistentStore(NewDefaultRulesEngine())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := store.(*postgres.Store); !ok {
		t.Fatalf("expected postgres store, got %T", store)
	}
	svc := NewService(store)
	if _, _, err := svc.CreateEntanglement(context.Background(), 60, 70); err != nil {
		t.Fatalf("entangle: %v", err)
	}
	if rows := conn.Tables["entanglements"]; len(rows) != 1 {
		t.Fatalf("expected entanglement row, got %v", rows)
	}
}

func TestOpenPersistentStorePostgresFailure(t *testing.T) {
	db, conn := testutil.NewStubDB()
	conn.FailPing = true
	t.Cleanup(postgres.OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil }))
	t.Setenv(EnvStorageDriver, "postgres")
	store, err := OpenPersistentStore(nil)
	if err == nil {
		t.Fatalf("expected ping failure")
	}
	if store != nil {
		t.Fatalf("expected nil interface on failure, got %T", store)
	}
}

func TestOpenPersistentStoreUnknownDriver(t *testing.T) {
	t.Setenv(EnvStorageDriver, "cassandra")
	if _, err := OpenPersistentStore(nil); err == nil || !strings.Contains(err.Error(), "unknown storage driver") {
		t.Fatalf("expected unknown driver error, got %v", err)
	}
}
