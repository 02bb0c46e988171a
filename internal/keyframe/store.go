package keyframe

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/renameio/v2"
)

// Store is the persistence abstraction for the timeline.
// The Repository loads from it once and saves the full timeline after every
// mutation; it never asks for partial writes.
type Store interface {
	Load() (Timeline, error)
	Save(tl Timeline) error
}

// FileStore keeps the timeline as a JSON document on disk.
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load implements Store.Load. A missing file is created, together with its
// parent directory, and seeded with DefaultTimeline.
func (s *FileStore) Load() (Timeline, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
			return Timeline{}, fmt.Errorf("%w: create dir for %s: %w", ErrIO, s.path, err)
		}
		tl := DefaultTimeline()
		if err := s.Save(tl); err != nil {
			return Timeline{}, err
		}
		return tl, nil
	}
	if err != nil {
		return Timeline{}, fmt.Errorf("%w: read %s: %w", ErrIO, s.path, err)
	}

	var tl Timeline
	if err := json.Unmarshal(data, &tl); err != nil {
		return Timeline{}, fmt.Errorf("%w: %s: %w", ErrParse, s.path, err)
	}
	return tl, nil
}

// Save implements Store.Save. The document is written to a temp file and
// renamed over the target, so readers never see a half-written file.
func (s *FileStore) Save(tl Timeline) error {
	data, err := json.Marshal(tl)
	if err != nil {
		return fmt.Errorf("%w: encode timeline: %w", ErrIO, err)
	}
	if err := renameio.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrIO, s.path, err)
	}
	return nil
}

// InMemoryStore is an in-memory implementation of Store.
// It starts from DefaultTimeline unless constructed with a seed.
type InMemoryStore struct {
	mu    sync.Mutex
	saved Timeline
	saves int
}

// NewInMemoryStore returns a store holding DefaultTimeline.
func NewInMemoryStore() *InMemoryStore {
	return NewInMemoryStoreWithTimeline(DefaultTimeline())
}

// NewInMemoryStoreWithTimeline returns a store holding a copy of tl.
func NewInMemoryStoreWithTimeline(tl Timeline) *InMemoryStore {
	return &InMemoryStore{saved: tl.Clone()}
}

// Load implements Store.Load.
func (s *InMemoryStore) Load() (Timeline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved.Clone(), nil
}

// Save implements Store.Save.
func (s *InMemoryStore) Save(tl Timeline) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = tl.Clone()
	s.saves++
	return nil
}

// SaveCount returns how many times Save has been called.
func (s *InMemoryStore) SaveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
