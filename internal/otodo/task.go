package otodo

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-date format used for start and due dates.
// Dates carry no time component.
const DateLayout = "2006-01-02"

// Priority is the task priority level.
type Priority string

const (
	PriorityNone Priority = "none"
	PriorityLow  Priority = "low"
	PriorityMed  Priority = "med"
	PriorityHigh Priority = "high"
)

// Valid reports whether p is one of the known priority levels.
func (p Priority) Valid() bool {
	switch p {
	case PriorityNone, PriorityLow, PriorityMed, PriorityHigh:
		return true
	}
	return false
}

// Task is the user-visible unit of work. A Task is always read and written
// as a full snapshot; there are no partial-field updates anywhere in the core.
//
// ID never changes after creation. UpdatedAt is stamped on every mutation and
// is the sole recency signal the authority uses to resolve conflicts.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Priority    Priority  `json:"priority"`
	StartDate   string    `json:"start_date,omitempty"` // DateLayout, empty = unset
	DueDate     string    `json:"due_date,omitempty"`   // DateLayout, empty = unset
	Completed   bool      `json:"completed"`
	Starred     bool      `json:"starred"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ErrInvalidTask is the base error for validation failures.
// Validation failures are rejected before any state is mutated.
var ErrInvalidTask = errors.New("invalid task")

// Validate checks the task snapshot before it reaches the store.
func (t *Task) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidTask)
	}
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("%w: title must not be empty", ErrInvalidTask)
	}
	if !t.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", ErrInvalidTask, t.Priority)
	}
	for _, d := range []string{t.StartDate, t.DueDate} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(DateLayout, d); err != nil {
			return fmt.Errorf("%w: bad date %q", ErrInvalidTask, d)
		}
	}
	return nil
}

// Clone returns a copy of the task. Tasks contain no reference fields, so a
// shallow copy is a full copy.
func (t *Task) Clone() *Task {
	c := *t
	return &c
}

// TaskField names identify user-editable fields for change detection.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldPriority    = "priority"
	FieldStartDate   = "start_date"
	FieldDueDate     = "due_date"
	FieldCompleted   = "completed"
	FieldStarred     = "starred"
)

// ChangedFields compares t against base field by field and returns the names
// of user-editable fields that differ. Timestamps are excluded: two snapshots
// that differ only in updated_at are considered unchanged, which is what the
// autosave no-op guard needs.
func (t *Task) ChangedFields(base *Task) []string {
	if base == nil {
		return []string{FieldTitle, FieldDescription, FieldPriority,
			FieldStartDate, FieldDueDate, FieldCompleted, FieldStarred}
	}
	var changed []string
	if t.Title != base.Title {
		changed = append(changed, FieldTitle)
	}
	if t.Description != base.Description {
		changed = append(changed, FieldDescription)
	}
	if t.Priority != base.Priority {
		changed = append(changed, FieldPriority)
	}
	if t.StartDate != base.StartDate {
		changed = append(changed, FieldStartDate)
	}
	if t.DueDate != base.DueDate {
		changed = append(changed, FieldDueDate)
	}
	if t.Completed != base.Completed {
		changed = append(changed, FieldCompleted)
	}
	if t.Starred != base.Starred {
		changed = append(changed, FieldStarred)
	}
	return changed
}
