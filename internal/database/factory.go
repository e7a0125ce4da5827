package database

import (
	"fmt"
	"os"
	"path/filepath"

	"filmgov/internal/catalog"
	"filmgov/internal/config"
)

// NewDatabaseFromConfig creates a Database implementation based on the database config type.
func NewDatabaseFromConfig(cfg config.DatabaseConfig, datasetID string) (catalog.Database, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	case "memory":
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}

	db, err := NewSQLiteDatabase(PathFor(cfg, datasetID))
	if err != nil {
		return nil, err
	}
	return db, nil
}

// PathFor returns the database file for datasetID, or ":memory:".
func PathFor(cfg config.DatabaseConfig, datasetID string) string {
	if cfg.Type == "memory" {
		return ":memory:"
	}
	return filepath.Join(cfg.DataDir, datasetID+".db")
}
