package core

import (
	"context"
	"fmt"

	"inventorycore/internal/infra/persistence/memory"
	"inventorycore/internal/infra/persistence/postgres"
	"inventorycore/internal/infra/persistence/sqlite"
	"inventorycore/internal/settings"
)

// StorageDriver identifies a concrete record store implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// PersistentStore is a DataStore holding external resources.
type PersistentStore interface {
	DataStore
	Close() error
}

type memoryStore struct{ *memory.Store }

func (memoryStore) Close() error { return nil }

// OpenStore opens the record store selected by cfg.Driver. An empty driver
// selects sqlite.
func OpenStore(ctx context.Context, cfg settings.Storage) (PersistentStore, error) {
	driver := StorageDriver(cfg.Driver)
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memoryStore{memory.NewStore()}, nil
	case StorageSQLite:
		return sqlite.NewStore(cfg.SQLitePath)
	case StoragePostgres:
		return postgres.NewStore(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
