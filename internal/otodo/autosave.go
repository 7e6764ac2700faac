package otodo

import (
	"fmt"
	"sync"
	"time"
)

// DefaultDebounce is the delay between the last observed field change and
// the debounced save.
const DefaultDebounce = 400 * time.Millisecond

// SaveState is the autosave state machine position for one editing context.
type SaveState int

const (
	StateIdle SaveState = iota
	StateDirty
	StateSaving
)

func (s SaveState) String() string {
	switch s {
	case StateDirty:
		return "dirty"
	case StateSaving:
		return "saving"
	default:
		return "idle"
	}
}

// AutosaveController observes in-progress edits to a single task, debounces
// them into store writes and outbox entries, and guarantees a final flush
// before the editing context is abandoned. It is the sole source of
// mutations while a task is being edited; rapid intermediate edits collapse
// into exactly one outbox entry per save.
//
// The owner must call Flush before navigating away from the task, before
// teardown, and on any explicit save-and-leave action.
type AutosaveController struct {
	service *TaskService
	norm    *Normalizer
	sched   Scheduler
	delay   time.Duration
	logger  Logger

	mu     sync.Mutex
	base   *Task // last-known-saved snapshot
	draft  *Task // current candidate
	state  SaveState
	cancel CancelFunc
}

// NewAutosaveController creates a controller saving through service.
// A nil normalizer skips description normalization; a zero delay uses
// DefaultDebounce.
func NewAutosaveController(service *TaskService, norm *Normalizer, sched Scheduler, delay time.Duration, logger Logger) *AutosaveController {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &AutosaveController{
		service: service,
		norm:    norm,
		sched:   sched,
		delay:   delay,
		logger:  logger,
	}
}

// Track begins an editing context for the given task snapshot. Any pending
// edit from a previous context is discarded; track a context and Flush it
// before starting the next one.
func (c *AutosaveController) Track(task *Task) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelTimerLocked()
	c.base = task.Clone()
	c.draft = nil
	c.state = StateIdle
}

// OnFieldChange records a new candidate snapshot and (re)schedules the
// debounced save. Each call resets the debounce window.
func (c *AutosaveController) OnFieldChange(task *Task) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelTimerLocked()
	c.draft = task.Clone()
	c.state = StateDirty
	c.cancel = c.sched.Schedule(c.delay, c.debounceFired)
}

// Flush cancels any pending debounce and saves the in-progress edit
// synchronously. It is safe to call in any state; with nothing dirty it is
// a no-op. Storage and validation failures are returned to the caller and
// do not propagate further.
func (c *AutosaveController) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelTimerLocked()
	return c.saveLocked()
}

// Cancel discards the pending edit without saving. Used when the task is
// deleted while an autosave is pending.
func (c *AutosaveController) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelTimerLocked()
	c.draft = nil
	c.state = StateIdle
}

// State returns the current state machine position.
func (c *AutosaveController) State() SaveState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Saved returns the last-known-saved snapshot, or nil before Track.
func (c *AutosaveController) Saved() *Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.base == nil {
		return nil
	}
	return c.base.Clone()
}

// debounceFired runs when the debounce window elapses with no further
// changes. Failures here cannot reach a caller, so they are absorbed and
// surfaced through the log; the draft stays dirty for a later Flush.
func (c *AutosaveController) debounceFired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateDirty {
		return
	}
	if err := c.saveLocked(); err != nil {
		c.logger.Error("autosave failed", "error", err)
	}
}

// saveLocked persists the draft if it differs from the last saved snapshot.
// Caller holds c.mu.
func (c *AutosaveController) saveLocked() error {
	if c.draft == nil || c.state == StateIdle {
		return nil
	}

	candidate := c.draft.Clone()
	if c.norm != nil {
		candidate.Description = c.norm.Normalize(candidate.Description)
	}

	changed := candidate.ChangedFields(c.base)
	if len(changed) == 0 {
		// Nothing actually differs: no store write, no outbox entry.
		c.draft = nil
		c.state = StateIdle
		return nil
	}

	// A description-only save goes through the supersede path so rapid
	// typing collapses to one pending entry. Any other changed field gets
	// an independent entry that is never silently dropped.
	dedupeKey := ""
	if len(changed) == 1 && changed[0] == FieldDescription {
		dedupeKey = DescriptionDedupeKey(candidate.ID)
	}

	c.state = StateSaving
	saved, err := c.service.SaveTask(candidate, dedupeKey)
	if err != nil {
		c.state = StateDirty
		return fmt.Errorf("autosave: %w", err)
	}
	c.base = saved.Clone()
	c.draft = nil
	c.state = StateIdle
	return nil
}

func (c *AutosaveController) cancelTimerLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}
