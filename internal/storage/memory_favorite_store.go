package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/bazaar/backend/internal/models"
	"github.com/bazaar/backend/internal/services"
)

type MemoryFavoriteStore struct {
	mu     sync.RWMutex
	byUser map[string]map[string]*models.Favorite // userID -> listingID -> favorite
}

func NewMemoryFavoriteStore() *MemoryFavoriteStore {
	return &MemoryFavoriteStore{byUser: make(map[string]map[string]*models.Favorite)}
}

func (s *MemoryFavoriteStore) Add(_ context.Context, f *models.Favorite) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	favs := s.byUser[f.UserID]
	if favs == nil {
		favs = make(map[string]*models.Favorite)
		s.byUser[f.UserID] = favs
	}
	if _, exists := favs[f.ListingID]; exists {
		return services.ErrAlreadyFavorited
	}
	c := *f
	favs[f.ListingID] = &c
	return nil
}

func (s *MemoryFavoriteStore) Remove(_ context.Context, userID, listingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	favs := s.byUser[userID]
	if _, exists := favs[listingID]; !exists {
		return services.ErrFavoriteNotFound
	}
	delete(favs, listingID)
	return nil
}

func (s *MemoryFavoriteStore) Exists(_ context.Context, userID, listingID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.byUser[userID][listingID]
	return exists, nil
}

func (s *MemoryFavoriteStore) ListByUser(_ context.Context, userID string) ([]*models.Favorite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Favorite, 0, len(s.byUser[userID]))
	for _, f := range s.byUser[userID] {
		c := *f
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryFavoriteStore) DeleteByListing(_ context.Context, listingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, favs := range s.byUser {
		delete(favs, listingID)
	}
	return nil
}
