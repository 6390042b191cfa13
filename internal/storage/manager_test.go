// manager_test.go - Tests for the staging store
package storage

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func createTestStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to read dir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestNewLocalStore(t *testing.T) {
	t.Run("creates staging directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "staging")

		store, err := NewLocalStore(dir)
		if err != nil {
			t.Fatalf("Failed to create store: %v", err)
		}
		if store.Dir() != dir {
			t.Errorf("Expected dir %s, got %s", dir, store.Dir())
		}
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			t.Error("Expected staging directory to be created")
		}
	})
}

func TestLocalStore_Stage(t *testing.T) {
	t.Run("stages content and tracks it", func(t *testing.T) {
		store := createTestStore(t)
		content := "PK\x03\x04 workbook"

		h, err := store.Stage("parts.xlsx", "application/vnd.ms-excel", strings.NewReader(content), 1024)
		if err != nil {
			t.Fatalf("Failed to stage: %v", err)
		}
		defer h.Release()

		if h.Info.ID == "" {
			t.Error("Expected ID to be set")
		}
		if h.Info.Name != "parts.xlsx" {
			t.Errorf("Expected name parts.xlsx, got %s", h.Info.Name)
		}
		if h.Info.Size != int64(len(content)) {
			t.Errorf("Expected size %d, got %d", len(content), h.Info.Size)
		}
		if len(store.List()) != 1 {
			t.Errorf("Expected 1 staged file, got %d", len(store.List()))
		}

		f, err := h.Open()
		if err != nil {
			t.Fatalf("Failed to open staged file: %v", err)
		}
		data, _ := io.ReadAll(f)
		f.Close()
		if string(data) != content {
			t.Errorf("Expected content %q, got %q", content, string(data))
		}
	})

	t.Run("content at the limit is accepted", func(t *testing.T) {
		store := createTestStore(t)

		h, err := store.Stage("exact.xlsx", "", bytes.NewReader(make([]byte, 64)), 64)
		if err != nil {
			t.Fatalf("Expected content at limit to stage, got %v", err)
		}
		h.Release()
	})

	t.Run("oversized content leaves nothing behind", func(t *testing.T) {
		store := createTestStore(t)

		_, err := store.Stage("big.xlsx", "", bytes.NewReader(make([]byte, 65)), 64)
		if !errors.Is(err, ErrTooLarge) {
			t.Fatalf("Expected ErrTooLarge, got %v", err)
		}
		if names := dirEntries(t, store.Dir()); len(names) != 0 {
			t.Errorf("Expected empty staging dir, found %v", names)
		}
		if len(store.List()) != 0 {
			t.Error("Expected no tracked files")
		}
	})

	t.Run("read failure leaves nothing behind", func(t *testing.T) {
		store := createTestStore(t)

		_, err := store.Stage("broken.xlsx", "", failingReader{}, 64)
		if err == nil {
			t.Fatal("Expected error from failing reader")
		}
		if names := dirEntries(t, store.Dir()); len(names) != 0 {
			t.Errorf("Expected empty staging dir, found %v", names)
		}
	})
}

func TestHandle_Release(t *testing.T) {
	store := createTestStore(t)

	h, err := store.Stage("parts.xlsx", "", strings.NewReader("data"), 0)
	if err != nil {
		t.Fatalf("Failed to stage: %v", err)
	}

	if err := h.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := os.Stat(h.Path()); !os.IsNotExist(err) {
		t.Error("Expected staged file to be removed")
	}
	if err := h.Release(); err != nil {
		t.Errorf("Second release should be a no-op, got %v", err)
	}
	if len(store.List()) != 0 {
		t.Error("Expected no tracked files after release")
	}
}

func TestLocalStore_Sweep(t *testing.T) {
	store := createTestStore(t)

	live, err := store.Stage("live.xlsx", "", strings.NewReader("live"), 0)
	if err != nil {
		t.Fatalf("Failed to stage: %v", err)
	}
	defer live.Release()

	orphan := filepath.Join(store.Dir(), "dead-beef"+stagedSuffix)
	if err := os.WriteFile(orphan, []byte("left over"), 0o600); err != nil {
		t.Fatal(err)
	}
	unrelated := filepath.Join(store.Dir(), "notes.txt")
	if err := os.WriteFile(unrelated, []byte("keep"), 0o600); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-2 * time.Hour)
	for _, p := range []string{orphan, unrelated, live.Path()} {
		os.Chtimes(p, old, old)
	}

	removed, err := store.Sweep(time.Hour)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 removed file, got %d", removed)
	}
	if _, err := os.Stat(orphan); !os.IsNotExist(err) {
		t.Error("Expected orphan to be removed")
	}
	if _, err := os.Stat(unrelated); err != nil {
		t.Error("Expected unrelated file to be kept")
	}
	if _, err := os.Stat(live.Path()); err != nil {
		t.Error("Expected live staged file to be kept")
	}
}
