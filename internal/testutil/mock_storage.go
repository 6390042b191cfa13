// mock_storage.go - Instrumented staging store for testing
package testutil

import (
	"io"
	"sync"
	"testing"

	"github.com/semisearch/gateway/internal/models"
	"github.com/semisearch/gateway/internal/storage"
)

// MockStorage implements storage.Store on top of a real LocalStore in a temp dir,
// recording every Stage call and optionally failing it.
type MockStorage struct {
	*storage.LocalStore

	mu       sync.Mutex
	staged   []string
	StageErr error
}

// NewMockStorage creates a mock store rooted in t.TempDir().
func NewMockStorage(t *testing.T) *MockStorage {
	t.Helper()
	local, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return &MockStorage{LocalStore: local}
}

func (m *MockStorage) Stage(name, mimeType string, r io.Reader, limit int64) (*storage.Handle, error) {
	m.mu.Lock()
	m.staged = append(m.staged, name)
	stageErr := m.StageErr
	m.mu.Unlock()

	if stageErr != nil {
		return nil, stageErr
	}
	return m.LocalStore.Stage(name, mimeType, r, limit)
}

// StageCalls returns the names passed to Stage, in order.
func (m *MockStorage) StageCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.staged))
	copy(out, m.staged)
	return out
}

// Live returns the files still staged.
func (m *MockStorage) Live() []*models.FileInfo {
	return m.LocalStore.List()
}
