package store

import (
	"path/filepath"
	"sync"

	"steemauth/internal/domain"
)

const storageFilename = "storage.json"

// FileStore is a string key-value store persisted as a single JSON object.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a FileStore rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{path: filepath.Join(dir, storageFilename)}
}

// Get returns the value for key and whether it was present.
func (s *FileStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := map[string]string{}
	if err := readJSON(s.path, &m); err != nil {
		return "", false, err
	}
	v, ok := m[key]
	return v, ok, nil
}

// Set stores value under key.
func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := map[string]string{}
	if err := readJSON(s.path, &m); err != nil {
		return err
	}
	m[key] = value
	return writeJSON(s.path, m, 0o600)
}

// Delete removes key; a missing key is not an error.
func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := map[string]string{}
	if err := readJSON(s.path, &m); err != nil {
		return err
	}
	if _, ok := m[key]; !ok {
		return nil
	}
	delete(m, key)
	return writeJSON(s.path, m, 0o600)
}

// Compile-time assertion that FileStore implements domain.Storage.
var _ domain.Storage = (*FileStore)(nil)
