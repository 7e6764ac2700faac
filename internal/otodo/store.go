package otodo

import "encoding/json"

// Store is the single writer of record for durable client state: the task
// collection, the outbox, and the flat metadata area. All operations are
// durable on return and atomic per record. The store performs no network I/O
// and no business validation; callers always hand it complete snapshots.
//
// Concurrent callers within one process are serialized by the implementation
// ("last full write wins" per record); callers never cache store content
// across calls.
type Store interface {
	// Task operations

	// GetAllTasks returns every task snapshot in the store.
	GetAllTasks() ([]Task, error)

	// GetTask returns a task by id, or nil if absent.
	GetTask(id string) (*Task, error)

	// PutTask upserts a full task snapshot by id.
	PutTask(task *Task) error

	// DeleteTask removes a task by id. Deleting an absent id is a no-op.
	DeleteTask(id string) error

	// Outbox operations

	// EnqueueOp appends an entry to the durable outbox log. When the entry
	// carries a dedupe key matching a pending entry, the new entry replaces
	// the old one's position and content instead of appending.
	EnqueueOp(entry *OutboxEntry) error

	// ListOps returns all pending entries in FIFO enqueue order.
	ListOps() ([]OutboxEntry, error)

	// ClearOps removes acknowledged entries by op id. Unknown op ids are
	// ignored, which is what keeps entries superseded mid-sync pending.
	ClearOps(opIDs []string) error

	// CountOps returns the number of pending entries.
	CountOps() (int, error)

	// Metadata operations

	// MetaGet returns the value stored under key. ok is false when the key
	// was never initialized; an explicitly stored null returns (nil, true).
	MetaGet(key string) (value json.RawMessage, ok bool, err error)

	// MetaSet stores value under key. A nil value stores an explicit null,
	// which is distinct from the key being absent.
	MetaSet(key string, value json.RawMessage) error

	// Sync composite

	// ApplySyncResult atomically replaces the entire task collection with
	// the authority's returned set and clears the acknowledged entries.
	// Either both happen or neither does.
	ApplySyncResult(tasks []Task, opIDs []string) error

	// SnapshotTo writes a consistent copy of the whole store to destPath.
	SnapshotTo(destPath string) error

	// Close releases the underlying storage.
	Close() error
}

// Well-known metadata keys.
const (
	MetaKeyClientID       = "client_id"
	MetaKeyOfflineAuth    = "offline_auth"
	MetaKeyOfflineSession = "offline_session"
	MetaKeyBackupVersion  = "backup_version"
)
