package vault

import (
	"context"
	"fmt"

	"otodo-go/internal/config"
	"otodo-go/internal/otodo"
)

// NewVaultFromConfig creates a Vault implementation based on the vault
// config type. An empty type means backups are not configured; callers get
// a nil vault and no error.
func NewVaultFromConfig(cfg config.VaultConfig) (otodo.Vault, error) {
	switch cfg.Type {
	case "":
		return nil, nil
	case "memory":
		return NewMemoryVault(cfg.Name), nil
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("s3 vault requires s3_bucket to be set")
		}
		return NewS3Vault(context.Background(), cfg)
	case "filesystem":
		if cfg.FSVaultRoot == "" {
			return nil, fmt.Errorf("filesystem vault requires fs_vault_root to be set")
		}
		return NewFileSystemVault(cfg.Name, cfg.FSVaultRoot)
	default:
		return nil, fmt.Errorf("unknown vault type: %s", cfg.Type)
	}
}
