package app

import (
	"context"
	"testing"

	"otodo-go/internal/authority"
	"otodo-go/internal/config"
	"otodo-go/internal/otodo"
)

func newTestApp(t *testing.T) (*OtodoApp, *authority.MemoryAuthority) {
	t.Helper()

	cfg := &config.Config{
		LogDir: t.TempDir(),
		Server: config.ServerConfig{Type: "memory"},
		Store:  config.StoreConfig{Type: "memory"},
	}
	a, err := NewOtodoApp(cfg, "test")
	if err != nil {
		t.Fatalf("NewOtodoApp() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })

	return a, a.authority.(*authority.MemoryAuthority)
}

func TestOtodoApp_Online(t *testing.T) {
	t.Run("a successful probe drains the outbox through the hub", func(t *testing.T) {
		a, auth := newTestApp(t)

		task, err := a.AddTask("write release notes")
		if err != nil {
			t.Fatalf("AddTask() error = %v", err)
		}

		if !a.Online(context.Background()) {
			t.Fatal("Online() = false against a reachable authority")
		}

		pending, err := a.PendingCount()
		if err != nil {
			t.Fatalf("PendingCount() error = %v", err)
		}
		if pending != 0 {
			t.Errorf("pending = %d after the probe, want 0", pending)
		}
		remote := auth.Tasks()
		if len(remote) != 1 || remote[0].ID != task.ID {
			t.Errorf("authority collection = %+v, want the created task", remote)
		}
	})

	t.Run("a failed probe leaves the outbox queued", func(t *testing.T) {
		a, auth := newTestApp(t)
		auth.SetOffline(true)

		if _, err := a.AddTask("offline edit"); err != nil {
			t.Fatalf("AddTask() error = %v", err)
		}

		if a.Online(context.Background()) {
			t.Fatal("Online() = true against an unreachable authority")
		}

		pending, err := a.PendingCount()
		if err != nil {
			t.Fatalf("PendingCount() error = %v", err)
		}
		if pending != 1 {
			t.Errorf("pending = %d, want 1", pending)
		}
	})
}

func TestOtodoApp_DeleteTask(t *testing.T) {
	t.Run("discards a pending autosave for the deleted task", func(t *testing.T) {
		a, _ := newTestApp(t)

		task, err := a.AddTask("doomed")
		if err != nil {
			t.Fatalf("AddTask() error = %v", err)
		}

		a.autosave.Track(task)
		draft := task.Clone()
		draft.Description = "half-typed note"
		a.autosave.OnFieldChange(draft)

		if err := a.DeleteTask(task.ID); err != nil {
			t.Fatalf("DeleteTask() error = %v", err)
		}

		if got := a.autosave.State(); got != otodo.StateIdle {
			t.Errorf("autosave state = %v after delete, want idle", got)
		}

		// A later flush must not resurrect the deleted task.
		if err := a.autosave.Flush(); err != nil {
			t.Fatalf("Flush() error = %v", err)
		}
		got, err := a.GetTask(task.ID)
		if err != nil {
			t.Fatalf("GetTask() error = %v", err)
		}
		if got != nil {
			t.Errorf("deleted task came back: %+v", got)
		}

		// Create and delete only; the discarded edit produced no entry.
		pending, err := a.PendingCount()
		if err != nil {
			t.Fatalf("PendingCount() error = %v", err)
		}
		if pending != 2 {
			t.Errorf("pending = %d, want 2", pending)
		}
	})

	t.Run("leaves an unrelated pending autosave alone", func(t *testing.T) {
		a, _ := newTestApp(t)

		edited, err := a.AddTask("keep editing")
		if err != nil {
			t.Fatalf("AddTask() error = %v", err)
		}
		other, err := a.AddTask("doomed")
		if err != nil {
			t.Fatalf("AddTask() error = %v", err)
		}

		a.autosave.Track(edited)
		draft := edited.Clone()
		draft.Description = "still typing"
		a.autosave.OnFieldChange(draft)

		if err := a.DeleteTask(other.ID); err != nil {
			t.Fatalf("DeleteTask() error = %v", err)
		}

		if got := a.autosave.State(); got != otodo.StateDirty {
			t.Errorf("autosave state = %v, want dirty", got)
		}
	})
}
