// Package storage stages uploaded files on local disk while they are relayed onward.
// Nothing here outlives a single request: every staged file is owned by a Handle
// that must be released.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/semisearch/gateway/internal/models"
)

// stagedSuffix marks files created by this package so Sweep never touches anything else.
const stagedSuffix = ".staged"

// ErrTooLarge is returned by Stage when the content exceeds the limit.
var ErrTooLarge = errors.New("file exceeds size limit")

// Store defines the interface for transient file staging.
type Store interface {
	Stage(name, mimeType string, r io.Reader, limit int64) (*Handle, error)
	List() []*models.FileInfo
}

// LocalStore implements Store using a directory on the local filesystem.
type LocalStore struct {
	mu  sync.RWMutex
	dir string
	// files tracks staged files that have not been released yet.
	files map[string]*models.FileInfo
}

// NewLocalStore creates a LocalStore rooted at dir, creating it if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}

	return &LocalStore{
		dir:   dir,
		files: make(map[string]*models.FileInfo),
	}, nil
}

// Dir returns the staging directory.
func (s *LocalStore) Dir() string {
	return s.dir
}

// Stage copies at most limit bytes of r into a new staged file. Content beyond
// the limit yields ErrTooLarge and nothing is left on disk. A limit <= 0 disables the check.
func (s *LocalStore) Stage(name, mimeType string, r io.Reader, limit int64) (*Handle, error) {
	id := uuid.New().String()
	path := filepath.Join(s.dir, id+stagedSuffix)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("creating staged file: %w", err)
	}

	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	size, copyErr := io.Copy(f, src)
	closeErr := f.Close()

	switch {
	case copyErr != nil:
		os.Remove(path)
		return nil, fmt.Errorf("writing staged file: %w", copyErr)
	case closeErr != nil:
		os.Remove(path)
		return nil, fmt.Errorf("closing staged file: %w", closeErr)
	case limit > 0 && size > limit:
		os.Remove(path)
		return nil, ErrTooLarge
	}

	info := &models.FileInfo{
		ID:       id,
		Name:     name,
		MimeType: mimeType,
		Size:     size,
		StagedAt: time.Now(),
	}

	s.mu.Lock()
	s.files[id] = info
	s.mu.Unlock()

	return &Handle{Info: info, path: path, store: s}, nil
}

// List returns the files currently staged, oldest first.
func (s *LocalStore) List() []*models.FileInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*models.FileInfo, 0, len(s.files))
	for _, info := range s.files {
		list = append(list, info)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].StagedAt.Before(list[j].StagedAt)
	})
	return list
}

// Sweep deletes staged files older than maxAge that no live Handle owns.
// These only exist if a previous process died mid-request.
func (s *LocalStore) Sweep(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("reading staging directory: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, stagedSuffix) {
			continue
		}
		id := strings.TrimSuffix(name, stagedSuffix)

		s.mu.RLock()
		_, live := s.files[id]
		s.mu.RUnlock()
		if live {
			continue
		}

		fi, err := entry.Info()
		if err != nil || fi.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err == nil {
			removed++
		}
	}
	return removed, nil
}

func (s *LocalStore) release(id, path string) error {
	s.mu.Lock()
	delete(s.files, id)
	s.mu.Unlock()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing staged file: %w", err)
	}
	return nil
}

// Handle owns one staged file.
type Handle struct {
	Info  *models.FileInfo
	path  string
	store *LocalStore

	once sync.Once
	err  error
}

// Path returns the on-disk location of the staged file.
func (h *Handle) Path() string {
	return h.path
}

// Open opens the staged file for reading.
func (h *Handle) Open() (*os.File, error) {
	return os.Open(h.path)
}

// Release removes the staged file. It is safe to call more than once.
func (h *Handle) Release() error {
	h.once.Do(func() {
		h.err = h.store.release(h.Info.ID, h.path)
	})
	return h.err
}
