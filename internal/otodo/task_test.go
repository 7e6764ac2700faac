package otodo_test

import (
	"errors"
	"testing"
	"time"

	"otodo-go/internal/otodo"
)

func validTask() *otodo.Task {
	now := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	return &otodo.Task{
		ID:        "t1",
		Title:     "write report",
		Priority:  otodo.PriorityNone,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestTask_Validate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*otodo.Task)
		ok     bool
	}{
		{"valid", func(*otodo.Task) {}, true},
		{"valid with dates", func(task *otodo.Task) {
			task.StartDate = "2024-01-16"
			task.DueDate = "2024-01-20"
		}, true},
		{"missing id", func(task *otodo.Task) { task.ID = " " }, false},
		{"empty title", func(task *otodo.Task) { task.Title = "  " }, false},
		{"unknown priority", func(task *otodo.Task) { task.Priority = "urgent" }, false},
		{"malformed due date", func(task *otodo.Task) { task.DueDate = "20-01-2024" }, false},
		{"malformed start date", func(task *otodo.Task) { task.StartDate = "January 16" }, false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			task := validTask()
			c.mutate(task)
			err := task.Validate()
			if c.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !c.ok && !errors.Is(err, otodo.ErrInvalidTask) {
				t.Errorf("expected ErrInvalidTask, got %v", err)
			}
		})
	}
}

func TestTask_ChangedFields(t *testing.T) {
	t.Run("identical snapshots report nothing", func(t *testing.T) {
		base := validTask()
		if changed := base.Clone().ChangedFields(base); len(changed) != 0 {
			t.Errorf("expected no changes, got %v", changed)
		}
	})

	t.Run("timestamps never count as changes", func(t *testing.T) {
		base := validTask()
		other := base.Clone()
		other.UpdatedAt = other.UpdatedAt.Add(time.Hour)
		if changed := other.ChangedFields(base); len(changed) != 0 {
			t.Errorf("updated_at counted as a change: %v", changed)
		}
	})

	t.Run("reports each differing field", func(t *testing.T) {
		base := validTask()
		other := base.Clone()
		other.Description = "new text"
		other.Starred = true

		changed := other.ChangedFields(base)
		if len(changed) != 2 {
			t.Fatalf("expected 2 changed fields, got %v", changed)
		}
		want := map[string]bool{otodo.FieldDescription: true, otodo.FieldStarred: true}
		for _, f := range changed {
			if !want[f] {
				t.Errorf("unexpected field %s", f)
			}
		}
	})

	t.Run("nil base reports everything", func(t *testing.T) {
		if changed := validTask().ChangedFields(nil); len(changed) != 7 {
			t.Errorf("expected all 7 fields, got %v", changed)
		}
	})
}

func TestTask_Clone(t *testing.T) {
	base := validTask()
	c := base.Clone()
	c.Title = "mutated"
	if base.Title == "mutated" {
		t.Error("clone shares state with the original")
	}
}

func TestPriority_Valid(t *testing.T) {
	for _, p := range []otodo.Priority{otodo.PriorityNone, otodo.PriorityLow, otodo.PriorityMed, otodo.PriorityHigh} {
		if !p.Valid() {
			t.Errorf("%s should be valid", p)
		}
	}
	if otodo.Priority("urgent").Valid() {
		t.Error("unknown priority accepted")
	}
}
