// Package testutil fakes just enough of Postgres for the registry store: DDL
// is recorded, TRUNCATE and INSERT mutate per-table rows, and single-table
// SELECTs read them back. Writes inside a transaction stay staged until commit.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	_ driver.Conn           = (*StubConn)(nil)
	_ driver.Pinger         = (*StubConn)(nil)
	_ driver.ConnBeginTx    = (*StubConn)(nil)
	_ driver.ExecerContext  = (*StubConn)(nil)
	_ driver.QueryerContext = (*StubConn)(nil)
)

// Row is one stored record keyed by lower-case column name.
type Row = map[string]any

// StubConn is the single connection behind a stub sql.DB. Tables holds
// committed rows; the Fail* switches inject errors at each step.
type StubConn struct {
	Execs      []string
	Tables     map[string][]Row
	FailPing   bool
	FailExec   bool
	FailBegin  bool
	FailCommit bool
	RowsErr    error
	FailTables map[string]bool

	staged map[string][]Row
}

// NewStubDB returns a sql.DB whose every connection is the returned StubConn.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{Tables: make(map[string][]Row)}
	return sql.OpenDB(connector{conn: conn}), conn
}

type connector struct {
	conn *StubConn
}

func (c connector) Connect(context.Context) (driver.Conn, error) { return c.conn, nil }
func (c connector) Driver() driver.Driver                        { return c }
func (c connector) Open(string) (driver.Conn, error)             { return c.conn, nil }

// InTx reports whether a transaction is open.
func (c *StubConn) InTx() bool { return c.staged != nil }

func (c *StubConn) Prepare(query string) (driver.Stmt, error) {
	return nil, fmt.Errorf("stub: prepared statements unsupported: %s", query)
}

func (c *StubConn) Close() error { return nil }

func (c *StubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *StubConn) Ping(context.Context) error {
	if c.FailPing {
		return errors.New("ping fail")
	}
	return nil
}

// BeginTx snapshots the committed tables into a staging area.
func (c *StubConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	if c.FailBegin {
		return nil, errors.New("begin fail")
	}
	if c.staged != nil {
		return nil, errors.New("stub: nested transaction")
	}
	c.staged = make(map[string][]Row, len(c.Tables))
	for table, rows := range c.Tables {
		c.staged[table] = append([]Row(nil), rows...)
	}
	return stubTx{conn: c}, nil
}

func (c *StubConn) target() map[string][]Row {
	if c.staged != nil {
		return c.staged
	}
	if c.Tables == nil {
		c.Tables = make(map[string][]Row)
	}
	return c.Tables
}

func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.Execs = append(c.Execs, query)
	if c.FailExec {
		return nil, errors.New("exec fail")
	}
	verb, rest := splitVerb(query)
	switch verb {
	case "TRUNCATE":
		tables := c.target()
		for _, name := range columnList(strings.TrimPrefix(strings.TrimSpace(rest), "TABLE")) {
			delete(tables, name)
		}
		return driver.RowsAffected(0), nil
	case "INSERT":
		table, cols, err := parseInsert(rest)
		if err != nil {
			return nil, err
		}
		if c.FailTables[table] {
			return nil, fmt.Errorf("exec fail for %s", table)
		}
		if len(cols) != len(args) {
			return nil, fmt.Errorf("stub: %d columns but %d args for %s", len(cols), len(args), table)
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			row[col] = args[i].Value
		}
		tables := c.target()
		tables[table] = append(tables[table], row)
		return driver.RowsAffected(1), nil
	default:
		return driver.RowsAffected(0), nil
	}
}

func (c *StubConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	verb, rest := splitVerb(query)
	if verb != "SELECT" {
		return nil, fmt.Errorf("stub: unsupported query: %s", query)
	}
	table, cols, err := parseSelect(rest)
	if err != nil {
		return nil, err
	}
	if c.FailTables[table] {
		return nil, fmt.Errorf("query fail for %s", table)
	}
	stored := c.target()[table]
	out := &stubRows{cols: cols, err: c.RowsErr, values: make([][]driver.Value, len(stored))}
	for i, row := range stored {
		out.values[i] = make([]driver.Value, len(cols))
		for j, col := range cols {
			out.values[i][j] = row[col]
		}
	}
	return out, nil
}

type stubTx struct {
	conn *StubConn
}

// Commit publishes staged rows; a failed commit discards them.
func (t stubTx) Commit() error {
	staged := t.conn.staged
	t.conn.staged = nil
	if t.conn.FailCommit {
		return errors.New("commit fail")
	}
	t.conn.Tables = staged
	return nil
}

func (t stubTx) Rollback() error {
	t.conn.staged = nil
	return nil
}

type stubRows struct {
	cols   []string
	values [][]driver.Value
	next   int
	err    error
}

func (r *stubRows) Columns() []string { return r.cols }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.next == len(r.values) {
		if r.err != nil {
			return r.err
		}
		return io.EOF
	}
	copy(dest, r.values[r.next])
	r.next++
	return nil
}

// splitVerb returns the upper-cased leading keyword and the remainder.
func splitVerb(query string) (string, string) {
	query = strings.TrimSpace(query)
	verb, rest, _ := strings.Cut(query, " ")
	return strings.ToUpper(verb), rest
}

// parseInsert reads `INTO table (a, b) VALUES ...`.
func parseInsert(rest string) (string, []string, error) {
	body, ok := cutPrefixFold(strings.TrimSpace(rest), "INTO ")
	if !ok {
		return "", nil, fmt.Errorf("stub: cannot parse insert: %s", rest)
	}
	table, tail, ok := strings.Cut(body, "(")
	if !ok {
		return "", nil, fmt.Errorf("stub: cannot parse insert: %s", rest)
	}
	cols, _, ok := strings.Cut(tail, ")")
	if !ok {
		return "", nil, fmt.Errorf("stub: cannot parse insert: %s", rest)
	}
	return strings.ToLower(strings.TrimSpace(table)), columnList(cols), nil
}

// parseSelect reads `a, b FROM table ...`.
func parseSelect(rest string) (string, []string, error) {
	lower := strings.ToLower(rest)
	cols, from, ok := strings.Cut(lower, " from ")
	if !ok {
		return "", nil, fmt.Errorf("stub: cannot parse select: %s", rest)
	}
	fields := strings.Fields(from)
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("stub: cannot parse select: %s", rest)
	}
	return fields[0], columnList(cols), nil
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return s, false
	}
	return s[len(prefix):], true
}

func columnList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if name := strings.ToLower(strings.TrimSpace(part)); name != "" {
			out = append(out, name)
		}
	}
	return out
}
