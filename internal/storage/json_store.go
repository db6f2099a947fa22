package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// JSONStore persists a single value of type T as an indented JSON file.
// Writes go to a temp file first and are renamed into place.
type JSONStore[T any] struct {
	mu       sync.Mutex
	filePath string
}

func NewJSONStore[T any](dataDir, filename string) (*JSONStore[T], error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}
	return &JSONStore[T]{filePath: filepath.Join(dataDir, filename)}, nil
}

// Load returns the zero value when the file does not exist yet.
func (s *JSONStore[T]) Load() (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

// Update loads the value, applies fn and saves the result atomically with
// respect to other Update calls on the same store.
func (s *JSONStore[T]) Update(fn func(*T)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.loadLocked()
	if err != nil {
		return err
	}
	fn(&v)
	return s.saveLocked(v)
}

func (s *JSONStore[T]) loadLocked() (T, error) {
	var v T
	file, err := os.Open(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return v, nil
		}
		return v, err
	}
	defer file.Close()

	err = json.NewDecoder(file).Decode(&v)
	return v, err
}

func (s *JSONStore[T]) saveLocked(v T) error {
	tempFile := s.filePath + ".tmp"
	file, err := os.Create(tempFile)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		file.Close()
		os.Remove(tempFile)
		return err
	}
	if err := file.Close(); err != nil {
		os.Remove(tempFile)
		return err
	}
	return os.Rename(tempFile, s.filePath)
}
