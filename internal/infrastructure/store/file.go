package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/pricealert/backend/internal/domain"
)

// DefaultFilePath is where the file store keeps the state document
const DefaultFilePath = "data/state.json"

// FileStore keeps the tracking state in a single JSON file.
// Writes go to a temp file in the same directory and are renamed into place.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates the parent directory of path if needed
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		path = DefaultFilePath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Save implements domain.StateStore
func (s *FileStore) Save(ctx context.Context, state *domain.TrackingState) error {
	data, err := encode(state)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".state-*.json")
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("save state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("save state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// Load implements domain.StateStore
func (s *FileStore) Load(ctx context.Context) (*domain.TrackingState, error) {
	s.mu.Lock()
	data, err := os.ReadFile(s.path)
	s.mu.Unlock()

	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	return decode(data)
}

// Exists implements domain.StateStore
func (s *FileStore) Exists(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := os.Stat(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Delete implements domain.StateStore. Deleting a missing state is a no-op.
func (s *FileStore) Delete(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete state: %w", err)
	}
	return nil
}

// Close implements io.Closer
func (s *FileStore) Close() error {
	return nil
}
