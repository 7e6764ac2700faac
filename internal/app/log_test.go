package app

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestOtodoHandler_Handle(t *testing.T) {
	ts := time.Date(2024, 1, 15, 10, 30, 45, 0, time.UTC)

	tests := []struct {
		name      string
		sessionID string
		level     slog.Level
		message   string
		attrs     []slog.Attr
		want      string
	}{
		{
			name:      "basic info message",
			sessionID: "20240115T103045Z-add",
			level:     slog.LevelInfo,
			message:   "task created",
			want:      "2024-01-15T10:30:45Z\tINFO\t20240115T103045Z-add\ttask created\n",
		},
		{
			name:      "debug level",
			sessionID: "20240115T103045Z-sync",
			level:     slog.LevelDebug,
			message:   "connectivity probe failed",
			want:      "2024-01-15T10:30:45Z\tDEBUG\t20240115T103045Z-sync\tconnectivity probe failed\n",
		},
		{
			name:      "with record attrs",
			sessionID: "20240115T103045Z-sync",
			level:     slog.LevelInfo,
			message:   "sync complete",
			attrs:     []slog.Attr{slog.Int("ops", 3), slog.Int("tasks", 12)},
			want:      "2024-01-15T10:30:45Z\tINFO\t20240115T103045Z-sync\tsync complete\tops=3\ttasks=12\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := &otodoHandler{w: &buf, sessionID: tt.sessionID}

			r := slog.NewRecord(ts, tt.level, tt.message, 0)
			for _, a := range tt.attrs {
				r.AddAttrs(a)
			}

			if err := h.Handle(context.Background(), r); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}

			if got := buf.String(); got != tt.want {
				t.Errorf("Handle() output =\n%q\nwant:\n%q", got, tt.want)
			}
		})
	}
}

func TestOtodoHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := &otodoHandler{w: &buf, sessionID: "s-1"}

	// Add pre-set attrs
	h2 := h.WithAttrs([]slog.Attr{slog.String("component", "autosave")}).(*otodoHandler)

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := slog.NewRecord(ts, slog.LevelInfo, "saved", 0)
	r.AddAttrs(slog.String("task", "t-1"))

	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "component=autosave") {
		t.Errorf("expected pre-set attr component=autosave, got: %q", got)
	}
	if !strings.Contains(got, "task=t-1") {
		t.Errorf("expected record attr task=t-1, got: %q", got)
	}
}

func TestOtodoHandler_WithAttrs_doesNotMutateOriginal(t *testing.T) {
	var buf bytes.Buffer
	h := &otodoHandler{w: &buf, sessionID: "s-1", attrs: []slog.Attr{slog.String("a", "1")}}

	h2 := h.WithAttrs([]slog.Attr{slog.String("b", "2")}).(*otodoHandler)

	if len(h.attrs) != 1 {
		t.Errorf("original handler attrs modified: got %d, want 1", len(h.attrs))
	}
	if len(h2.attrs) != 2 {
		t.Errorf("new handler attrs: got %d, want 2", len(h2.attrs))
	}
}

func TestOtodoHandler_Enabled(t *testing.T) {
	h := &otodoHandler{}
	// All levels should be enabled
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if !h.Enabled(context.Background(), level) {
			t.Errorf("Enabled(%v) = false, want true", level)
		}
	}
}

func TestNewLogger(t *testing.T) {
	dir := t.TempDir()

	logger, f, err := newLogger(dir, "20240115T103045Z-test")
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	defer f.Close()

	if logger == nil {
		t.Fatal("newLogger() returned nil logger")
	}
	if f == nil {
		t.Fatal("newLogger() returned nil file")
	}
}
