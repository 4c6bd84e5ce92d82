package core

import (
	"context"
	"fmt"

	"flockcore/internal/infra/persistence/file"
	"flockcore/internal/infra/persistence/memory"
	"flockcore/internal/infra/persistence/postgres"
	"flockcore/internal/infra/persistence/sqlite"
	"flockcore/pkg/domain"
)

// StorageDriver identifies a concrete local persistence implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-process only (tests / dry runs)
	StorageFile     StorageDriver = "file"     // one JSON file per key in a directory
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// StorageOptions selects and locates the key-value backend.
type StorageOptions struct {
	Driver StorageDriver
	// Location is a directory (file), database path (sqlite) or DSN (postgres).
	Location string
	// QuotaBytes caps the memory driver; zero means unlimited.
	QuotaBytes int
}

// OpenKeyValueStore opens the configured backend. The empty driver selects file.
func OpenKeyValueStore(ctx context.Context, opts StorageOptions) (domain.KeyValueStore, error) {
	switch opts.Driver {
	case StorageMemory:
		return memory.NewStore(memory.WithQuota(opts.QuotaBytes)), nil
	case StorageFile, "":
		return file.NewStore(opts.Location)
	case StorageSQLite:
		return sqlite.NewStore(opts.Location)
	case StoragePostgres:
		return postgres.NewStore(ctx, opts.Location)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", opts.Driver)
	}
}
