package authority

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"otodo-go/internal/otodo"
)

// MemoryAuthority is an in-process authority. It applies ops exactly the way
// the real authority does — idempotently by op id, last-writer-wins on
// updated_at with ties kept for the logged op — and always returns the
// complete current collection. Safe for concurrent use.
//
// It doubles as the test double for the sync protocol and supports fault
// injection so failure semantics are testable.
type MemoryAuthority struct {
	mu      sync.Mutex
	tasks   map[string]otodo.Task
	applied map[string]bool // op_id -> seen
	users   map[string]memoryUser

	offline  bool
	syncErr  error // returned by the next Sync, then cleared
	syncGate func() // runs inside Sync before applying, for race tests
}

type memoryUser struct {
	id       string
	password string
}

// NewMemoryAuthority creates an empty in-process authority.
func NewMemoryAuthority() *MemoryAuthority {
	return &MemoryAuthority{
		tasks:   make(map[string]otodo.Task),
		applied: make(map[string]bool),
		users:   make(map[string]memoryUser),
	}
}

// Sync applies each op idempotently and returns the full collection.
func (m *MemoryAuthority) Sync(_ context.Context, clientID string, ops []otodo.OutboxEntry) ([]otodo.Task, error) {
	m.mu.Lock()
	if m.offline {
		m.mu.Unlock()
		return nil, fmt.Errorf("authority unreachable")
	}
	if err := m.syncErr; err != nil {
		m.syncErr = nil
		m.mu.Unlock()
		return nil, err
	}
	gate := m.syncGate
	m.mu.Unlock()

	if gate != nil {
		gate()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range ops {
		op := &ops[i]
		if m.applied[op.OpID] {
			continue // idempotent replay
		}
		m.applied[op.OpID] = true

		switch op.Type {
		case otodo.OpUpsert:
			if op.Task == nil {
				continue
			}
			incoming := *op.Task
			existing, ok := m.tasks[incoming.ID]
			// Last-writer-wins on updated_at; on an exact tie the logged
			// op takes precedence over previously computed state, so a
			// client's acknowledged write is never silently discarded.
			if ok && existing.UpdatedAt.After(incoming.UpdatedAt) {
				continue
			}
			m.tasks[incoming.ID] = incoming
		case otodo.OpDelete:
			delete(m.tasks, op.TaskID)
		}
		_ = clientID // recorded only as the op origin tag
	}

	return m.collection(), nil
}

// Ping reports reachability.
func (m *MemoryAuthority) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offline {
		return fmt.Errorf("authority unreachable")
	}
	return nil
}

// Login verifies credentials against the registered users.
func (m *MemoryAuthority) Login(_ context.Context, email, password string) (*otodo.LoginResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offline {
		return nil, fmt.Errorf("authority unreachable")
	}
	u, ok := m.users[email]
	if !ok || u.password != password {
		return nil, fmt.Errorf("invalid email or password")
	}
	return &otodo.LoginResult{
		User:     otodo.User{ID: u.id, Email: email},
		IssuedAt: time.Now().UTC(),
	}, nil
}

// RegisterUser adds an account that Login will accept.
func (m *MemoryAuthority) RegisterUser(id, email, password string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[email] = memoryUser{id: id, password: password}
}

// SeedTask places a task directly into the authority's collection,
// simulating an edit from another device.
func (m *MemoryAuthority) SeedTask(task otodo.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[task.ID] = task
}

// SetOffline toggles reachability.
func (m *MemoryAuthority) SetOffline(offline bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offline = offline
}

// FailNextSync makes the next Sync call return err before applying anything.
func (m *MemoryAuthority) FailNextSync(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncErr = err
}

// GateSync installs fn to run inside Sync before ops are applied. Used to
// interleave local activity with an in-flight exchange in tests.
func (m *MemoryAuthority) GateSync(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncGate = fn
}

// Tasks returns a snapshot of the authority's current collection.
func (m *MemoryAuthority) Tasks() []otodo.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.collection()
}

// collection returns the tasks in a stable order. Caller holds m.mu.
func (m *MemoryAuthority) collection() []otodo.Task {
	tasks := make([]otodo.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks
}

// Compile-time check that MemoryAuthority implements otodo.Authority.
var _ otodo.Authority = (*MemoryAuthority)(nil)
