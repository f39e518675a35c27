package sqlbundle

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPostgresBundleSplitsIntoTables(t *testing.T) {
	stmts := SplitStatements(Postgres())
	var tables []string
	for _, stmt := range stmts {
		if strings.HasPrefix(stmt, "--") {
			t.Fatalf("statement unexpectedly starts with comment: %q", stmt)
		}
		if !strings.HasSuffix(stmt, ";") {
			t.Fatalf("statement missing semicolon terminator: %q", stmt)
		}
		fields := strings.Fields(stmt)
		if len(fields) < 6 || fields[0] != "CREATE" {
			t.Fatalf("unexpected statement %q", stmt)
		}
		tables = append(tables, strings.TrimSuffix(fields[5], "("))
	}
	want := []string{"particle_allocations", "superposition_states", "entanglements", "registry_counters"}
	if diff := cmp.Diff(want, tables); diff != "" {
		t.Fatalf("tables mismatch (-want +got):\n%s", diff)
	}
}

func TestSplitStatementsKeepsUnterminatedTail(t *testing.T) {
	got := SplitStatements("-- header\nSELECT 1;\n\nSELECT\n  2")
	want := []string{"SELECT 1;", "SELECT 2"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("statements mismatch (-want +got):\n%s", diff)
	}
}
