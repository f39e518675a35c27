// Package postgres provides a Postgres-backed persistent store that mirrors the
// in-memory semantics while keeping each registry in its own table.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"quantumcore/internal/infra/persistence/memory"
	"quantumcore/internal/schema/sqlbundle"
	"quantumcore/pkg/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	// Default DSN keeps parity with OpenPersistentStore defaults while allowing overrides via env.
	defaultDSN = "postgres://localhost/quantumcore?sslmode=disable"
)

const (
	counterParticles     = "particles"
	counterEntanglements = "entanglements"
)

// schemaDDL creates one table per registry plus the identifier counters.
var schemaDDL = sqlbundle.SplitStatements(sqlbundle.Postgres())

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store persists state to Postgres while reusing the in-memory implementation for transactions.
type Store struct {
	*memory.Store
	db *sql.DB
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back to defaultDSN).
// It applies the registry DDL and hydrates the in-memory store from the tables.
func NewStore(dsn string, engine *domain.RulesEngine) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := applySchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	snapshot, err := loadSnapshot(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	mem := memory.NewStore(engine)
	mem.ImportState(snapshot)
	return &Store{Store: mem, db: db}, nil
}

// RunInTransaction applies fn and writes the registries to Postgres before the
// result becomes visible. A failed write leaves memory and the tables unchanged.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	return s.RunInTransactionWithCommit(ctx, fn, s.persist)
}

// Restore replaces the registries with snapshot once it is written to Postgres.
func (s *Store) Restore(ctx context.Context, snapshot memory.Snapshot) error {
	return s.RestoreWithCommit(ctx, snapshot, s.persist)
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func applySchema(ctx context.Context, db execer) error {
	for _, stmt := range schemaDDL {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute ddl: %w", err)
		}
	}
	return nil
}

func loadSnapshot(ctx context.Context, db *sql.DB) (memory.Snapshot, error) {
	snapshot := memory.Snapshot{
		Allocations:   make(map[domain.ParticleID]domain.ParticleAllocation),
		States:        make(map[domain.ParticleID]domain.SuperpositionState),
		Entanglements: make(map[domain.EntanglementID]domain.Entanglement),
	}
	if err := queryRows(ctx, db, `SELECT id, owner, particle_type, is_active, created_at, updated_at FROM particle_allocations`, func(rows *sql.Rows) error {
		var a domain.ParticleAllocation
		var id int64
		if err := rows.Scan(&id, &a.Owner, &a.ParticleType, &a.Active, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return err
		}
		a.ID = domain.ParticleID(id)
		snapshot.Allocations[a.ID] = a
		return nil
	}); err != nil {
		return memory.Snapshot{}, fmt.Errorf("load particle_allocations: %w", err)
	}
	if err := queryRows(ctx, db, `SELECT particle_id, state, last_measured FROM superposition_states`, func(rows *sql.Rows) error {
		var st domain.SuperpositionState
		var id int64
		if err := rows.Scan(&id, &st.State, &st.LastMeasured); err != nil {
			return err
		}
		st.ParticleID = domain.ParticleID(id)
		snapshot.States[st.ParticleID] = st
		return nil
	}); err != nil {
		return memory.Snapshot{}, fmt.Errorf("load superposition_states: %w", err)
	}
	if err := queryRows(ctx, db, `SELECT id, particle1_id, particle2_id, strength, created_at FROM entanglements`, func(rows *sql.Rows) error {
		var e domain.Entanglement
		var id int64
		if err := rows.Scan(&id, &e.Particle1ID, &e.Particle2ID, &e.Strength, &e.CreatedAt); err != nil {
			return err
		}
		e.ID = domain.EntanglementID(id)
		snapshot.Entanglements[e.ID] = e
		return nil
	}); err != nil {
		return memory.Snapshot{}, fmt.Errorf("load entanglements: %w", err)
	}
	if err := queryRows(ctx, db, `SELECT registry, last_id FROM registry_counters`, func(rows *sql.Rows) error {
		var registry string
		var last int64
		if err := rows.Scan(&registry, &last); err != nil {
			return err
		}
		switch registry {
		case counterParticles:
			snapshot.Counters.LastParticleID = domain.ParticleID(last)
		case counterEntanglements:
			snapshot.Counters.LastEntanglementID = domain.EntanglementID(last)
		}
		return nil
	}); err != nil {
		return memory.Snapshot{}, fmt.Errorf("load registry_counters: %w", err)
	}
	return snapshot, nil
}

func queryRows(ctx context.Context, db *sql.DB, query string, scan func(*sql.Rows) error) error {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
	}
	return rows.Err()
}

// persist runs under the memory store lock and must not call back into it.
func (s *Store) persist(ctx context.Context, snapshot memory.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := writeSnapshot(ctx, tx, snapshot); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

func writeSnapshot(ctx context.Context, tx execer, snapshot memory.Snapshot) error {
	if _, err := tx.ExecContext(ctx, `TRUNCATE TABLE particle_allocations, superposition_states, entanglements, registry_counters`); err != nil {
		return fmt.Errorf("truncate registries: %w", err)
	}
	for _, a := range sortedAllocations(snapshot) {
		if _, err := tx.ExecContext(ctx, `INSERT INTO particle_allocations (id, owner, particle_type, is_active, created_at, updated_at) VALUES ($1,$2,$3,$4,$5,$6)`,
			int64(a.ID), a.Owner, a.ParticleType, a.Active, utc(a.CreatedAt), utc(a.UpdatedAt)); err != nil {
			return fmt.Errorf("insert particle %d: %w", a.ID, err)
		}
	}
	for _, st := range sortedStates(snapshot) {
		if _, err := tx.ExecContext(ctx, `INSERT INTO superposition_states (particle_id, state, last_measured) VALUES ($1,$2,$3)`,
			int64(st.ParticleID), st.State, utc(st.LastMeasured)); err != nil {
			return fmt.Errorf("insert superposition %d: %w", st.ParticleID, err)
		}
	}
	for _, e := range sortedEntanglements(snapshot) {
		if _, err := tx.ExecContext(ctx, `INSERT INTO entanglements (id, particle1_id, particle2_id, strength, created_at) VALUES ($1,$2,$3,$4,$5)`,
			int64(e.ID), e.Particle1ID, e.Particle2ID, e.Strength, utc(e.CreatedAt)); err != nil {
			return fmt.Errorf("insert entanglement %d: %w", e.ID, err)
		}
	}
	counters := []struct {
		name string
		last int64
	}{
		{counterParticles, int64(snapshot.Counters.LastParticleID)},
		{counterEntanglements, int64(snapshot.Counters.LastEntanglementID)},
	}
	for _, c := range counters {
		if _, err := tx.ExecContext(ctx, `INSERT INTO registry_counters (registry, last_id) VALUES ($1,$2)`, c.name, c.last); err != nil {
			return fmt.Errorf("insert counter %s: %w", c.name, err)
		}
	}
	return nil
}

func utc(t time.Time) time.Time { return t.UTC() }

func sortedAllocations(s memory.Snapshot) []domain.ParticleAllocation {
	out := make([]domain.ParticleAllocation, 0, len(s.Allocations))
	for id, a := range s.Allocations {
		a.ID = id
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortedStates(s memory.Snapshot) []domain.SuperpositionState {
	out := make([]domain.SuperpositionState, 0, len(s.States))
	for id, st := range s.States {
		st.ParticleID = id
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ParticleID < out[j].ParticleID })
	return out
}

func sortedEntanglements(s memory.Snapshot) []domain.Entanglement {
	out := make([]domain.Entanglement, 0, len(s.Entanglements))
	for id, e := range s.Entanglements {
		e.ID = id
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
