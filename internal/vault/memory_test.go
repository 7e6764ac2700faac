package vault_test

import (
	"bytes"
	"strings"
	"testing"

	"otodo-go/internal/vault"
)

func TestMemoryVault(t *testing.T) {
	t.Run("round trips a snapshot", func(t *testing.T) {
		v := vault.NewMemoryVault("test")

		data := "snapshot bytes"
		err := v.PutSnapshot("client-1", strings.NewReader(data), int64(len(data)), 1)
		if err != nil {
			t.Fatalf("PutSnapshot failed: %v", err)
		}

		var buf bytes.Buffer
		if err := v.GetSnapshot("client-1", &buf); err != nil {
			t.Fatalf("GetSnapshot failed: %v", err)
		}
		if buf.String() != data {
			t.Errorf("got %q, want %q", buf.String(), data)
		}
	})

	t.Run("replaces the previous snapshot per client", func(t *testing.T) {
		v := vault.NewMemoryVault("test")

		if err := v.PutSnapshot("client-1", strings.NewReader("old"), 3, 1); err != nil {
			t.Fatalf("PutSnapshot failed: %v", err)
		}
		if err := v.PutSnapshot("client-1", strings.NewReader("newer"), 5, 2); err != nil {
			t.Fatalf("PutSnapshot failed: %v", err)
		}

		var buf bytes.Buffer
		if err := v.GetSnapshot("client-1", &buf); err != nil {
			t.Fatalf("GetSnapshot failed: %v", err)
		}
		if buf.String() != "newer" {
			t.Errorf("got %q, want the replacement", buf.String())
		}

		version, err := v.SnapshotVersion("client-1")
		if err != nil {
			t.Fatalf("SnapshotVersion failed: %v", err)
		}
		if version != 2 {
			t.Errorf("version = %d, want 2", version)
		}
	})

	t.Run("rejects a size mismatch", func(t *testing.T) {
		v := vault.NewMemoryVault("test")

		err := v.PutSnapshot("client-1", strings.NewReader("abc"), 99, 1)
		if err == nil {
			t.Fatal("expected size mismatch error")
		}
	})

	t.Run("missing client yields version zero and a get error", func(t *testing.T) {
		v := vault.NewMemoryVault("test")

		version, err := v.SnapshotVersion("nobody")
		if err != nil {
			t.Fatalf("SnapshotVersion failed: %v", err)
		}
		if version != 0 {
			t.Errorf("version = %d, want 0", version)
		}

		var buf bytes.Buffer
		if err := v.GetSnapshot("nobody", &buf); err == nil {
			t.Error("expected GetSnapshot to fail for an unknown client")
		}
	})
}
