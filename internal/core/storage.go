package core

import (
	"fmt"
	"os"
	"strings"

	"quantumcore/internal/infra/persistence/memory"
	"quantumcore/internal/infra/persistence/postgres"
	"quantumcore/internal/infra/persistence/sqlite"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// Environment variables consulted by OpenPersistentStore.
const (
	EnvStorageDriver = "QUANTUMCORE_STORAGE_DRIVER"
	EnvSQLitePath    = "QUANTUMCORE_SQLITE_PATH"
	EnvPostgresDSN   = "QUANTUMCORE_POSTGRES_DSN"
)

// NewMemoryStore constructs an in-memory store bound to engine.
func NewMemoryStore(engine *RulesEngine) *memory.Store {
	return memory.NewStore(engine)
}

// NewSQLiteStore constructs a SQLite-backed store at path (empty for the default file).
func NewSQLiteStore(path string, engine *RulesEngine) (*sqlite.Store, error) {
	return sqlite.NewStore(path, engine)
}

// NewPostgresStore constructs a Postgres-backed store from the provided DSN.
func NewPostgresStore(dsn string, engine *RulesEngine) (*postgres.Store, error) {
	return postgres.NewStore(dsn, engine)
}

// OpenPersistentStore selects a backend using environment variables.
// Defaults to sqlite when unset.
//
//	QUANTUMCORE_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	QUANTUMCORE_SQLITE_PATH: path to sqlite file (default ./quantumcore.db)
//	QUANTUMCORE_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenPersistentStore(engine *RulesEngine) (PersistentStore, error) {
	driver := strings.ToLower(strings.TrimSpace(os.Getenv(EnvStorageDriver)))
	if driver == "" {
		driver = string(StorageSQLite)
	}
	switch StorageDriver(driver) {
	case StorageMemory:
		return NewMemoryStore(engine), nil
	case StorageSQLite:
		store, err := NewSQLiteStore(os.Getenv(EnvSQLitePath), engine)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StoragePostgres:
		store, err := NewPostgresStore(os.Getenv(EnvPostgresDSN), engine)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
