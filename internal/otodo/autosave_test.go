package otodo_test

import (
	"testing"
	"time"

	"otodo-go/internal/otodo"
	"otodo-go/internal/store"
	"otodo-go/internal/testutil"
)

func newTestAutosave(t *testing.T) (*otodo.AutosaveController, *testutil.StubScheduler, *otodo.TaskService, *store.SQLiteStore) {
	t.Helper()
	svc, st, _ := newTestService(t)
	sched := testutil.NewStubScheduler()
	norm := otodo.NewNormalizer(nil, otodo.DefaultLineRules())
	ctrl := otodo.NewAutosaveController(svc, norm, sched, 400*time.Millisecond, otodo.NewNopLogger())
	return ctrl, sched, svc, st
}

func TestAutosaveController_Debounce(t *testing.T) {
	t.Run("rapid edits collapse into one save", func(t *testing.T) {
		ctrl, sched, svc, st := newTestAutosave(t)

		task, err := svc.CreateTask("notes")
		if err != nil {
			t.Fatalf("CreateTask failed: %v", err)
		}
		before, _ := st.CountOps()

		ctrl.Track(task)
		for _, text := range []string{"d", "dr", "dra", "draft"} {
			draft := task.Clone()
			draft.Description = text
			ctrl.OnFieldChange(draft)
		}
		if ctrl.State() != otodo.StateDirty {
			t.Errorf("state = %s, want dirty", ctrl.State())
		}
		if sched.Delay() != 400*time.Millisecond {
			t.Errorf("debounce delay = %v, want 400ms", sched.Delay())
		}

		sched.Fire()

		if ctrl.State() != otodo.StateIdle {
			t.Errorf("state after save = %s, want idle", ctrl.State())
		}
		after, _ := st.CountOps()
		if after != before+1 {
			t.Errorf("expected exactly 1 new outbox entry, got %d", after-before)
		}

		stored, err := st.GetTask(task.ID)
		if err != nil {
			t.Fatalf("GetTask failed: %v", err)
		}
		if stored.Description != "draft" {
			t.Errorf("only the final candidate should be saved, got %q", stored.Description)
		}
	})

	t.Run("each change resets the debounce window", func(t *testing.T) {
		ctrl, sched, svc, _ := newTestAutosave(t)

		task, err := svc.CreateTask("notes")
		if err != nil {
			t.Fatalf("CreateTask failed: %v", err)
		}
		ctrl.Track(task)

		draft := task.Clone()
		draft.Description = "a"
		ctrl.OnFieldChange(draft)
		draft2 := task.Clone()
		draft2.Description = "ab"
		ctrl.OnFieldChange(draft2)

		if sched.ScheduleCount() != 2 {
			t.Errorf("expected 2 schedule calls, got %d", sched.ScheduleCount())
		}
		if !sched.Pending() {
			t.Error("expected a pending timer after the second change")
		}
	})

	t.Run("a save that changes nothing writes nothing", func(t *testing.T) {
		ctrl, sched, svc, st := newTestAutosave(t)

		task, err := svc.CreateTask("notes")
		if err != nil {
			t.Fatalf("CreateTask failed: %v", err)
		}
		task.Description = "stable"
		task, err = svc.SaveTask(task, "")
		if err != nil {
			t.Fatalf("SaveTask failed: %v", err)
		}
		before, _ := st.CountOps()

		ctrl.Track(task)
		// Trailing whitespace normalizes away, leaving the draft identical
		// to the tracked snapshot.
		draft := task.Clone()
		draft.Description = "stable   "
		ctrl.OnFieldChange(draft)
		sched.Fire()

		after, _ := st.CountOps()
		if after != before {
			t.Errorf("no-op save produced %d outbox entries", after-before)
		}
		if ctrl.State() != otodo.StateIdle {
			t.Errorf("state = %s, want idle", ctrl.State())
		}
	})
}

func TestAutosaveController_Flush(t *testing.T) {
	t.Run("saves synchronously and cancels the timer", func(t *testing.T) {
		ctrl, sched, svc, st := newTestAutosave(t)

		task, err := svc.CreateTask("notes")
		if err != nil {
			t.Fatalf("CreateTask failed: %v", err)
		}
		ctrl.Track(task)

		draft := task.Clone()
		draft.Description = "unsaved typing"
		ctrl.OnFieldChange(draft)

		if err := ctrl.Flush(); err != nil {
			t.Fatalf("Flush failed: %v", err)
		}
		if sched.Pending() {
			t.Error("timer still pending after flush")
		}

		stored, err := st.GetTask(task.ID)
		if err != nil {
			t.Fatalf("GetTask failed: %v", err)
		}
		if stored.Description != "unsaved typing" {
			t.Errorf("flush did not persist the draft: %q", stored.Description)
		}

		// Flushing again with nothing dirty is a no-op.
		if err := ctrl.Flush(); err != nil {
			t.Errorf("idle Flush returned error: %v", err)
		}
	})

	t.Run("returns validation failures and stays dirty", func(t *testing.T) {
		ctrl, _, svc, _ := newTestAutosave(t)

		task, err := svc.CreateTask("notes")
		if err != nil {
			t.Fatalf("CreateTask failed: %v", err)
		}
		ctrl.Track(task)

		draft := task.Clone()
		draft.Title = ""
		ctrl.OnFieldChange(draft)

		if err := ctrl.Flush(); err == nil {
			t.Fatal("expected Flush to surface the validation failure")
		}
		if ctrl.State() != otodo.StateDirty {
			t.Errorf("state = %s, want dirty after failed save", ctrl.State())
		}
	})
}

func TestAutosaveController_Cancel(t *testing.T) {
	ctrl, sched, svc, st := newTestAutosave(t)

	task, err := svc.CreateTask("notes")
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	before, _ := st.CountOps()

	ctrl.Track(task)
	draft := task.Clone()
	draft.Description = "discard me"
	ctrl.OnFieldChange(draft)
	ctrl.Cancel()

	sched.Fire() // a stray timer firing after cancel must do nothing

	after, _ := st.CountOps()
	if after != before {
		t.Errorf("canceled edit still produced %d entries", after-before)
	}
	if ctrl.State() != otodo.StateIdle {
		t.Errorf("state = %s, want idle", ctrl.State())
	}
}

func TestAutosaveController_DedupeRouting(t *testing.T) {
	t.Run("description-only edits supersede the pending entry", func(t *testing.T) {
		ctrl, sched, svc, st := newTestAutosave(t)

		task, err := svc.CreateTask("notes")
		if err != nil {
			t.Fatalf("CreateTask failed: %v", err)
		}
		before, _ := st.CountOps()

		ctrl.Track(task)
		draft := task.Clone()
		draft.Description = "first"
		ctrl.OnFieldChange(draft)
		sched.Fire()

		draft2 := ctrl.Saved().Clone()
		draft2.Description = "second"
		ctrl.OnFieldChange(draft2)
		sched.Fire()

		after, _ := st.CountOps()
		if after != before+1 {
			t.Errorf("expected the second save to supersede, got %d new entries", after-before)
		}

		ops, err := st.ListOps()
		if err != nil {
			t.Fatalf("ListOps failed: %v", err)
		}
		last := ops[len(ops)-1]
		if last.Task.Description != "second" {
			t.Errorf("pending entry carries %q, want the newest text", last.Task.Description)
		}
	})

	t.Run("other field changes append independent entries", func(t *testing.T) {
		ctrl, sched, svc, st := newTestAutosave(t)

		task, err := svc.CreateTask("notes")
		if err != nil {
			t.Fatalf("CreateTask failed: %v", err)
		}
		before, _ := st.CountOps()

		ctrl.Track(task)
		draft := task.Clone()
		draft.Priority = otodo.PriorityHigh
		ctrl.OnFieldChange(draft)
		sched.Fire()

		draft2 := ctrl.Saved().Clone()
		draft2.Starred = true
		ctrl.OnFieldChange(draft2)
		sched.Fire()

		after, _ := st.CountOps()
		if after != before+2 {
			t.Errorf("expected 2 independent entries, got %d", after-before)
		}
	})

	t.Run("a mixed edit does not use the supersede path", func(t *testing.T) {
		ctrl, sched, svc, st := newTestAutosave(t)

		task, err := svc.CreateTask("notes")
		if err != nil {
			t.Fatalf("CreateTask failed: %v", err)
		}

		ctrl.Track(task)
		draft := task.Clone()
		draft.Description = "text"
		ctrl.OnFieldChange(draft)
		sched.Fire()
		before, _ := st.CountOps()

		// Description and title change together: the entry must not replace
		// the pending description-only entry.
		draft2 := ctrl.Saved().Clone()
		draft2.Description = "more text"
		draft2.Title = "renamed"
		ctrl.OnFieldChange(draft2)
		sched.Fire()

		after, _ := st.CountOps()
		if after != before+1 {
			t.Errorf("mixed edit should append one independent entry, got %d", after-before)
		}
	})
}

func TestAutosaveController_NormalizesDescriptions(t *testing.T) {
	ctrl, sched, svc, st := newTestAutosave(t)

	task, err := svc.CreateTask("notes")
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	ctrl.Track(task)

	draft := task.Clone()
	draft.Description = "* buy milk\r\n- [X] call bank  \n"
	ctrl.OnFieldChange(draft)
	sched.Fire()

	stored, err := st.GetTask(task.ID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	want := "- buy milk\n- [X] call bank"
	if stored.Description != want {
		t.Errorf("description = %q, want %q", stored.Description, want)
	}
}
