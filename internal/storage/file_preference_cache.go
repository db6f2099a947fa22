package storage

import (
	"context"
	"sync"

	"github.com/bazaar/backend/internal/services"
)

// FilePreferenceCache keeps preferences in a JSON file on local disk, for
// single-instance deployments without Redis.
type FilePreferenceCache struct {
	mu     sync.RWMutex
	store  *JSONStore[map[string]string]
	values map[string]string
}

func NewFilePreferenceCache(dataDir string) (*FilePreferenceCache, error) {
	store, err := NewJSONStore[map[string]string](dataDir, "preferences.json")
	if err != nil {
		return nil, err
	}
	values, err := store.Load()
	if err != nil {
		return nil, err
	}
	if values == nil {
		values = make(map[string]string)
	}
	return &FilePreferenceCache{store: store, values: values}, nil
}

func (c *FilePreferenceCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.values[key]
	if !ok {
		return nil, services.ErrCacheMiss
	}
	return []byte(v), nil
}

func (c *FilePreferenceCache) Set(_ context.Context, key string, value []byte) error {
	return c.write(func(m map[string]string) { m[key] = string(value) })
}

func (c *FilePreferenceCache) Delete(_ context.Context, key string) error {
	return c.write(func(m map[string]string) { delete(m, key) })
}

func (c *FilePreferenceCache) write(fn func(map[string]string)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.store.Update(func(m *map[string]string) {
		if *m == nil {
			*m = make(map[string]string)
		}
		fn(*m)
	})
	if err != nil {
		return err
	}
	fn(c.values)
	return nil
}
