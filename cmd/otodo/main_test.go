package main

import (
	"strings"
	"testing"
	"time"

	"otodo-go/internal/otodo"
)

func TestFormatTaskLine(t *testing.T) {
	today := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	t.Run("truncates a long id to eight characters", func(t *testing.T) {
		task := &otodo.Task{ID: "0123456789abcdef", Title: "long id", Priority: otodo.PriorityNone}

		line := formatTaskLine(task, today)
		if !strings.Contains(line, "01234567") {
			t.Errorf("line = %q, want the abbreviated id", line)
		}
		if strings.Contains(line, "012345678") {
			t.Errorf("line = %q, id not truncated", line)
		}
	})

	t.Run("keeps an id shorter than eight characters intact", func(t *testing.T) {
		// Ids are opaque strings; a collection synced from another client
		// can carry ids of any length.
		task := &otodo.Task{ID: "abc", Title: "synced from server", Priority: otodo.PriorityNone}

		line := formatTaskLine(task, today)
		if !strings.Contains(line, "abc") {
			t.Errorf("line = %q, want the full short id", line)
		}
	})

	t.Run("marks completed, starred, and prioritized tasks", func(t *testing.T) {
		task := &otodo.Task{
			ID:        "0123456789abcdef",
			Title:     "ship it",
			Priority:  otodo.PriorityHigh,
			Completed: true,
			Starred:   true,
		}

		line := formatTaskLine(task, today)
		for _, want := range []string{"[x]", "*", "!high"} {
			if !strings.Contains(line, want) {
				t.Errorf("line = %q, missing %q", line, want)
			}
		}
	})

	t.Run("appends the due label", func(t *testing.T) {
		task := &otodo.Task{
			ID:       "0123456789abcdef",
			Title:    "pay rent",
			Priority: otodo.PriorityNone,
			DueDate:  "2024-01-15",
		}

		line := formatTaskLine(task, today)
		if !strings.Contains(line, "(Today)") {
			t.Errorf("line = %q, want the Today label", line)
		}
	})
}
