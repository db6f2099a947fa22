package storage

import (
	"context"
	"sync"

	"github.com/bazaar/backend/internal/models"
	"github.com/bazaar/backend/internal/services"
)

type MemoryLocationStore struct {
	mu        sync.RWMutex
	locations map[string]models.UserLocation
}

func NewMemoryLocationStore() *MemoryLocationStore {
	return &MemoryLocationStore{locations: make(map[string]models.UserLocation)}
}

func (s *MemoryLocationStore) Get(_ context.Context, userID string) (*models.UserLocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	loc, ok := s.locations[userID]
	if !ok {
		return nil, services.ErrLocationNotFound
	}
	return &loc, nil
}

func (s *MemoryLocationStore) Put(_ context.Context, loc *models.UserLocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.locations[loc.UserID] = *loc
	return nil
}
