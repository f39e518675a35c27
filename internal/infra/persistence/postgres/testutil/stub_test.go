package testutil

import (
	"context"
	"database/sql/driver"
	"testing"
)

func TestStubDBStoresAndQueriesRows(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()

	if err := conn.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	_, err := conn.ExecContext(ctx, "INSERT INTO entanglements (id, strength) VALUES ($1,$2)", []driver.NamedValue{
		{Value: int64(1)},
		{Value: int64(30)},
	})
	if err != nil {
		t.Fatalf("ExecContext insert: %v", err)
	}
	if len(conn.Tables["entanglements"]) != 1 {
		t.Fatalf("expected entanglements row to be stored, got %v", conn.Tables["entanglements"])
	}

	rows, err := conn.QueryContext(ctx, "SELECT strength, id FROM entanglements", nil)
	if err != nil {
		t.Fatalf("QueryContext: %v", err)
	}
	defer func() { _ = rows.Close() }()
	dest := make([]driver.Value, 2)
	if err := rows.Next(dest); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if dest[0] != int64(30) || dest[1] != int64(1) {
		t.Fatalf("unexpected row values: %v", dest)
	}
}

func TestStubDBTruncateClearsListedTables(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()
	conn.Tables["a"] = []map[string]any{{"id": 1}}
	conn.Tables["b"] = []map[string]any{{"id": 2}}
	conn.Tables["c"] = []map[string]any{{"id": 3}}
	if _, err := conn.ExecContext(ctx, "TRUNCATE TABLE a, b", nil); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	if len(conn.Tables["a"]) != 0 || len(conn.Tables["b"]) != 0 {
		t.Fatalf("expected a and b cleared, got %v", conn.Tables)
	}
	if len(conn.Tables["c"]) != 1 {
		t.Fatalf("expected c untouched")
	}
}

func TestStubDBFailureSwitches(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()
	conn.FailPing = true
	if err := conn.Ping(ctx); err == nil {
		t.Fatalf("expected ping failure")
	}
	conn.FailBegin = true
	if _, err := conn.Begin(); err == nil {
		t.Fatalf("expected begin failure")
	}
	conn.FailTables = map[string]bool{"t": true}
	if _, err := conn.QueryContext(ctx, "SELECT id FROM t", nil); err == nil {
		t.Fatalf("expected query failure")
	}
	if _, err := conn.ExecContext(ctx, "INSERT INTO t (id) VALUES ($1)", []driver.NamedValue{{Value: int64(1)}}); err == nil {
		t.Fatalf("expected insert failure")
	}
	if _, err := conn.QueryContext(ctx, "UPDATE t SET id = 1", nil); err == nil {
		t.Fatalf("expected parse failure")
	}
}

func TestStubDBStagesWritesUntilCommit(t *testing.T) {
	ctx := context.Background()
	db, conn := NewStubDB()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO entanglements (id) VALUES ($1)", int64(1)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !conn.InTx() || len(conn.Tables["entanglements"]) != 0 {
		t.Fatalf("expected staged row to stay invisible before commit, tables=%v", conn.Tables)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if len(conn.Tables["entanglements"]) != 1 {
		t.Fatalf("expected committed row, got %v", conn.Tables)
	}
}

func TestStubDBFailedCommitDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	db, conn := NewStubDB()
	conn.Tables["entanglements"] = []Row{{"id": int64(1)}}
	conn.FailCommit = true
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	if _, err := tx.ExecContext(ctx, "TRUNCATE TABLE entanglements"); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	if err := tx.Commit(); err == nil {
		t.Fatalf("expected commit failure")
	}
	if conn.InTx() || len(conn.Tables["entanglements"]) != 1 {
		t.Fatalf("expected committed rows untouched, got %v", conn.Tables)
	}
}
