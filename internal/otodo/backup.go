package otodo

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// BackupManager pushes snapshots of the local store to a vault and pulls
// them back. Versions are a simple per-device counter kept in the metadata
// area; the vault keeps only the latest snapshot per client.
type BackupManager struct {
	store    Store
	vault    Vault
	identity *IdentityManager
	logger   Logger
}

// NewBackupManager creates a BackupManager.
func NewBackupManager(store Store, vault Vault, identity *IdentityManager, logger Logger) *BackupManager {
	return &BackupManager{store: store, vault: vault, identity: identity, logger: logger}
}

// Backup writes a consistent snapshot of the store to a temporary file and
// uploads it to the vault. Returns the new snapshot version.
func (b *BackupManager) Backup() (int64, error) {
	clientID, err := b.identity.EnsureClientID()
	if err != nil {
		return 0, err
	}

	tmpDir, err := os.MkdirTemp("", "otodo-backup-*")
	if err != nil {
		return 0, fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	snapPath := filepath.Join(tmpDir, "snapshot.db")
	if err := b.store.SnapshotTo(snapPath); err != nil {
		return 0, fmt.Errorf("snapshotting store: %w", err)
	}

	f, err := os.Open(snapPath)
	if err != nil {
		return 0, fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("statting snapshot: %w", err)
	}

	version, err := b.nextVersion()
	if err != nil {
		return 0, err
	}
	if err := b.vault.PutSnapshot(clientID, f, info.Size(), version); err != nil {
		return 0, fmt.Errorf("uploading snapshot: %w", err)
	}

	encoded, err := json.Marshal(version)
	if err != nil {
		return 0, err
	}
	if err := b.store.MetaSet(MetaKeyBackupVersion, encoded); err != nil {
		return 0, fmt.Errorf("recording backup version: %w", err)
	}

	b.logger.Info("backup complete", "version", version, "bytes", info.Size())
	return version, nil
}

// Restore fetches the latest snapshot from the vault and writes it to
// destPath. The running store is not touched; the caller decides when to
// swap files and reopen.
func (b *BackupManager) Restore(destPath string) error {
	clientID, err := b.identity.EnsureClientID()
	if err != nil {
		return err
	}

	version, err := b.vault.SnapshotVersion(clientID)
	if err != nil {
		return fmt.Errorf("checking vault: %w", err)
	}
	if version == 0 {
		return fmt.Errorf("no snapshot stored for this client")
	}

	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("creating destination: %w", err)
	}
	defer f.Close()

	if err := b.vault.GetSnapshot(clientID, f); err != nil {
		return fmt.Errorf("downloading snapshot: %w", err)
	}
	b.logger.Info("restore complete", "version", version, "path", destPath)
	return nil
}

func (b *BackupManager) nextVersion() (int64, error) {
	raw, ok, err := b.store.MetaGet(MetaKeyBackupVersion)
	if err != nil {
		return 0, fmt.Errorf("reading backup version: %w", err)
	}
	var current int64
	if ok && raw != nil {
		if err := json.Unmarshal(raw, &current); err != nil {
			return 0, fmt.Errorf("decoding backup version: %w", err)
		}
	}
	return current + 1, nil
}
