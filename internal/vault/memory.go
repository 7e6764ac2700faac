package vault

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"otodo-go/internal/otodo"
)

// MemoryVault is an in-memory implementation of the Vault interface,
// useful for testing. Safe for concurrent use.
type MemoryVault struct {
	name      string
	snapshots map[string][]byte // clientID -> snapshot bytes
	versions  map[string]int64  // clientID -> version
	mu        sync.RWMutex
}

// NewMemoryVault creates a new in-memory vault with the given name.
func NewMemoryVault(name string) *MemoryVault {
	return &MemoryVault{
		name:      name,
		snapshots: make(map[string][]byte),
		versions:  make(map[string]int64),
	}
}

// PutSnapshot stores a snapshot for a client, replacing any previous one.
func (m *MemoryVault) PutSnapshot(clientID string, r io.Reader, size int64, version int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[clientID] = data
	m.versions[clientID] = version
	return nil
}

// GetSnapshot retrieves the stored snapshot for a client.
func (m *MemoryVault) GetSnapshot(clientID string, w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.snapshots[clientID]
	if !ok {
		return fmt.Errorf("no snapshot for client: %s", clientID)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// SnapshotVersion returns the stored version, or 0 if none.
func (m *MemoryVault) SnapshotVersion(clientID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.versions[clientID], nil
}

// ValidateSetup always succeeds for the in-memory vault.
func (m *MemoryVault) ValidateSetup() error { return nil }

// Compile-time check that MemoryVault implements otodo.Vault.
var _ otodo.Vault = (*MemoryVault)(nil)
