package store

import (
	"fmt"
	"os"
	"path/filepath"

	"otodo-go/internal/config"
	"otodo-go/internal/otodo"
)

// NewStoreFromConfig creates a Store implementation based on the store
// config type.
func NewStoreFromConfig(cfg config.StoreConfig) (otodo.Store, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite store")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
		return NewSQLiteStore(filepath.Join(cfg.DataDir, "otodo.db"))
	case "memory":
		return NewSQLiteStore(":memory:")
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}
