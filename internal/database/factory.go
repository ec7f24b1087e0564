package database

import (
	"fmt"
	"os"
	"path/filepath"

	"freelanceflow/internal/config"
	"freelanceflow/internal/ff"
)

// DatabaseFileName is the store file inside the configured data directory.
const DatabaseFileName = "freelanceflow.db"

// NewDatabaseFromConfig creates a Database implementation based on the database config type.
// The schema is not applied; callers run EnsureSchema.
func NewDatabaseFromConfig(cfg config.DatabaseConfig, idgen ff.IDGenerator) (ff.Database, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("%w: creating data directory: %w", ff.ErrStorage, err)
		}
		return openSQLite(filepath.Join(cfg.DataDir, DatabaseFileName), idgen)
	case "memory":
		return openSQLite(":memory:", idgen)
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}

// openSQLite keeps a failed open from surfacing as a non-nil interface
// holding a nil pointer.
func openSQLite(path string, idgen ff.IDGenerator) (ff.Database, error) {
	db, err := NewSQLiteDatabase(path, idgen)
	if err != nil {
		return nil, err
	}
	return db, nil
}
