package otodo

import "io"

// Vault is an off-device storage backend for whole-store snapshots. It is
// supporting infrastructure, not part of the sync protocol: a vault failure
// never touches the local store or the outbox.
type Vault interface {
	// PutSnapshot stores a snapshot for a client. size is the number of
	// bytes that will be read from r. version is stored alongside the
	// snapshot; later versions overwrite earlier ones.
	PutSnapshot(clientID string, r io.Reader, size int64, version int64) error

	// GetSnapshot retrieves the latest snapshot for a client and writes it
	// to w.
	GetSnapshot(clientID string, w io.Writer) error

	// SnapshotVersion returns the stored snapshot version for a client.
	// Returns 0 if no snapshot has been stored.
	SnapshotVersion(clientID string) (int64, error)

	// ValidateSetup verifies that the vault is accessible and configured.
	ValidateSetup() error
}
