package otodo

import (
	"encoding/json"
	"fmt"
)

// IdentityManager produces and persists the stable per-device client id.
// The id is opaque to the authority except as a tag distinguishing the
// originating device, so the authority can avoid treating echoed state as a
// new conflicting edit from the same device.
type IdentityManager struct {
	store Store
	idgen IDGenerator
}

// NewIdentityManager creates an IdentityManager backed by the given store.
func NewIdentityManager(store Store, idgen IDGenerator) *IdentityManager {
	return &IdentityManager{store: store, idgen: idgen}
}

// EnsureClientID returns the persisted client id, generating and persisting
// a new one on first use. Idempotent and safe to call on every start.
func (m *IdentityManager) EnsureClientID() (string, error) {
	raw, ok, err := m.store.MetaGet(MetaKeyClientID)
	if err != nil {
		return "", fmt.Errorf("reading client id: %w", err)
	}
	if ok && raw != nil {
		var id string
		if err := json.Unmarshal(raw, &id); err != nil {
			return "", fmt.Errorf("decoding client id: %w", err)
		}
		if id != "" {
			return id, nil
		}
	}

	id := m.idgen.New()
	encoded, err := json.Marshal(id)
	if err != nil {
		return "", fmt.Errorf("encoding client id: %w", err)
	}
	if err := m.store.MetaSet(MetaKeyClientID, encoded); err != nil {
		return "", fmt.Errorf("persisting client id: %w", err)
	}
	return id, nil
}
