package otodo

import (
	"fmt"
	"strings"
)

// TaskService is the mutation layer used by the editing surface. Every
// mutation is a two-phase write: a durable local apply (store write plus one
// outbox entry) that always succeeds or fails atomically from the caller's
// point of view, followed elsewhere by a best-effort network phase. The local
// apply never depends on network success.
type TaskService struct {
	store    Store
	identity *IdentityManager
	clock    Clock
	idgen    IDGenerator
	logger   Logger
}

// NewTaskService creates a TaskService.
func NewTaskService(store Store, identity *IdentityManager, clock Clock, idgen IDGenerator, logger Logger) *TaskService {
	return &TaskService{
		store:    store,
		identity: identity,
		clock:    clock,
		idgen:    idgen,
		logger:   logger,
	}
}

// Store exposes the underlying store for read-side callers.
func (s *TaskService) Store() Store { return s.store }

// CreateTask creates a new task with the given title, applies it to the
// local store and enqueues an upsert entry. The task is visible immediately
// whether or not any network is available.
func (s *TaskService) CreateTask(title string) (*Task, error) {
	title = strings.TrimSpace(title)
	now := s.clock.Now()
	task := &Task{
		ID:        s.idgen.New(),
		Title:     title,
		Priority:  PriorityNone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := task.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.PutTask(task); err != nil {
		return nil, fmt.Errorf("storing task: %w", err)
	}
	if err := s.enqueueUpsert(task, ""); err != nil {
		return nil, err
	}
	s.logger.Info("task created", "id", task.ID)
	return task, nil
}

// SaveTask writes a full task snapshot and enqueues one outbox entry.
// A non-empty dedupeKey routes the entry through the supersede path;
// an empty key appends an independent entry. UpdatedAt is stamped here so
// it is non-decreasing across the task's local history.
func (s *TaskService) SaveTask(task *Task, dedupeKey string) (*Task, error) {
	saved := task.Clone()
	saved.UpdatedAt = s.clock.Now()
	if err := saved.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.PutTask(saved); err != nil {
		return nil, fmt.Errorf("storing task: %w", err)
	}
	if err := s.enqueueUpsert(saved, dedupeKey); err != nil {
		return nil, err
	}
	s.logger.Debug("task saved", "id", saved.ID, "dedupe_key", dedupeKey)
	return saved, nil
}

// DeleteTask removes the task locally and enqueues a delete entry.
// Deleting an unknown id still enqueues the delete so a remote copy is
// removed on the next sync.
func (s *TaskService) DeleteTask(id string) error {
	if err := s.store.DeleteTask(id); err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}
	clientID, err := s.identity.EnsureClientID()
	if err != nil {
		return err
	}
	entry := &OutboxEntry{
		OpID:     s.idgen.New(),
		ClientID: clientID,
		Type:     OpDelete,
		TaskID:   id,
	}
	if err := s.store.EnqueueOp(entry); err != nil {
		return fmt.Errorf("enqueueing delete: %w", err)
	}
	s.logger.Info("task deleted", "id", id)
	return nil
}

// GetTask returns a task by id, or nil if absent.
func (s *TaskService) GetTask(id string) (*Task, error) {
	return s.store.GetTask(id)
}

// ListTasks returns all tasks in display order. When includeCompleted is
// false, completed tasks are filtered out.
func (s *TaskService) ListTasks(includeCompleted bool) ([]Task, error) {
	tasks, err := s.store.GetAllTasks()
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	if !includeCompleted {
		open := tasks[:0]
		for _, t := range tasks {
			if !t.Completed {
				open = append(open, t)
			}
		}
		tasks = open
	}
	SortTasks(tasks, s.clock.Now())
	return tasks, nil
}

// PendingCount returns the number of not-yet-acknowledged outbox entries.
func (s *TaskService) PendingCount() (int, error) {
	return s.store.CountOps()
}

func (s *TaskService) enqueueUpsert(task *Task, dedupeKey string) error {
	clientID, err := s.identity.EnsureClientID()
	if err != nil {
		return err
	}
	entry := &OutboxEntry{
		OpID:      s.idgen.New(),
		ClientID:  clientID,
		Type:      OpUpsert,
		Task:      task.Clone(),
		DedupeKey: dedupeKey,
	}
	if err := s.store.EnqueueOp(entry); err != nil {
		return fmt.Errorf("enqueueing upsert: %w", err)
	}
	return nil
}
