package otodo

// OpType distinguishes the two mutation intents the authority accepts.
type OpType string

const (
	OpUpsert OpType = "upsert"
	OpDelete OpType = "delete"
)

// OutboxEntry is one pending mutation intent awaiting acknowledgment by the
// remote authority. OpID is the idempotency key: replaying the same op
// against the authority is a no-op after the first successful application.
//
// Entries are stored in enqueue order (Seq). Ordering matters only between
// entries for the same task; entries for different tasks are independent.
type OutboxEntry struct {
	Seq      int64  `json:"-"`
	OpID     string `json:"op_id"`
	ClientID string `json:"client_id"`
	Type     OpType `json:"type"`
	Task     *Task  `json:"task,omitempty"`    // full snapshot, upsert only
	TaskID   string `json:"task_id,omitempty"` // bare id, delete only

	// DedupeKey, when non-empty, makes the entry supersede a pending entry
	// with the same key instead of appending a duplicate. Only free-text
	// description edits use this; every other field change appends its own
	// entry that is never silently dropped.
	DedupeKey string `json:"-"`
}

// DescriptionDedupeKey builds the composite supersede key for description
// edits of a task.
func DescriptionDedupeKey(taskID string) string {
	return taskID + ":description"
}

// TaskRef returns the id of the task the entry concerns.
func (e *OutboxEntry) TaskRef() string {
	if e.Type == OpDelete {
		return e.TaskID
	}
	if e.Task != nil {
		return e.Task.ID
	}
	return ""
}

// OpIDs extracts the idempotency keys of a batch of entries, in order.
func OpIDs(entries []OutboxEntry) []string {
	ids := make([]string, len(entries))
	for i := range entries {
		ids[i] = entries[i].OpID
	}
	return ids
}
