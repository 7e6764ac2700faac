package vault

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"otodo-go/internal/otodo"
)

// FileSystemVault stores snapshots as files in a directory structure:
//
//	<root>/
//	  snapshots/
//	    <clientID>.db       (latest snapshot per client)
//	    <clientID>.version  (version marker)
type FileSystemVault struct {
	name        string
	root        string
	snapshotDir string
}

// NewFileSystemVault creates a filesystem vault rooted at the given path.
func NewFileSystemVault(name, root string) (*FileSystemVault, error) {
	snapshotDir := filepath.Join(root, "snapshots")
	if err := os.MkdirAll(snapshotDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &FileSystemVault{name: name, root: root, snapshotDir: snapshotDir}, nil
}

// PutSnapshot stores a snapshot for a client, replacing any previous one.
// The snapshot is written to a temp file and renamed so a failed upload
// never clobbers the previous snapshot.
func (v *FileSystemVault) PutSnapshot(clientID string, r io.Reader, size int64, version int64) error {
	destPath := filepath.Join(v.snapshotDir, clientID+".db")
	tmp, err := os.CreateTemp(v.snapshotDir, clientID+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	written, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if written != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to move snapshot into place: %w", err)
	}

	versionPath := filepath.Join(v.snapshotDir, clientID+".version")
	return os.WriteFile(versionPath, []byte(strconv.FormatInt(version, 10)), 0644)
}

// GetSnapshot retrieves the stored snapshot for a client.
func (v *FileSystemVault) GetSnapshot(clientID string, w io.Writer) error {
	f, err := os.Open(filepath.Join(v.snapshotDir, clientID+".db"))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no snapshot for client: %s", clientID)
		}
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	return nil
}

// SnapshotVersion returns the stored version, or 0 if none.
func (v *FileSystemVault) SnapshotVersion(clientID string) (int64, error) {
	data, err := os.ReadFile(filepath.Join(v.snapshotDir, clientID+".version"))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read version: %w", err)
	}
	version, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse version: %w", err)
	}
	return version, nil
}

// ValidateSetup verifies the vault root is writable.
func (v *FileSystemVault) ValidateSetup() error {
	info, err := os.Stat(v.snapshotDir)
	if err != nil {
		return fmt.Errorf("vault root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("vault root is not a directory: %s", v.snapshotDir)
	}
	return nil
}

// Compile-time check that FileSystemVault implements otodo.Vault.
var _ otodo.Vault = (*FileSystemVault)(nil)
