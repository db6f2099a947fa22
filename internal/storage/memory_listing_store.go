package storage

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/bazaar/backend/internal/models"
	"github.com/bazaar/backend/internal/services"
)

// MemoryListingStore keeps listings in process memory. Returned listings are
// copies; callers may mutate them freely.
type MemoryListingStore struct {
	mu       sync.RWMutex
	listings map[string]*models.Listing
	watchers map[int]chan struct{}
	nextSub  int
}

func NewMemoryListingStore() *MemoryListingStore {
	return &MemoryListingStore{
		listings: make(map[string]*models.Listing),
		watchers: make(map[int]chan struct{}),
	}
}

func (s *MemoryListingStore) Create(_ context.Context, l *models.Listing) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l.ID = uuid.New().String()
	if l.Images == nil {
		l.Images = []string{}
	}
	s.listings[l.ID] = cloneListing(l)
	s.notifyLocked()
	return l.ID, nil
}

func (s *MemoryListingStore) Get(_ context.Context, id string) (*models.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.listings[id]
	if !ok {
		return nil, services.ErrListingNotFound
	}
	return cloneListing(l), nil
}

func (s *MemoryListingStore) Update(_ context.Context, l *models.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.listings[l.ID]
	if !ok {
		return services.ErrListingNotFound
	}
	next := cloneListing(l)
	// Media and counters have their own write paths.
	next.Images = cur.Images
	next.CoverImage = cur.CoverImage
	next.VideoURL = cur.VideoURL
	next.Views = cur.Views
	next.UserID = cur.UserID
	next.CreatedAt = cur.CreatedAt
	s.listings[l.ID] = next
	s.notifyLocked()
	return nil
}

func (s *MemoryListingStore) UpdateMedia(_ context.Context, id string, images []string, cover, videoURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.listings[id]
	if !ok {
		return services.ErrListingNotFound
	}
	l.Images = append([]string{}, images...)
	l.CoverImage = cover
	l.VideoURL = videoURL
	s.notifyLocked()
	return nil
}

func (s *MemoryListingStore) IncrementViews(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.listings[id]
	if !ok {
		return services.ErrListingNotFound
	}
	l.Views++
	return nil
}

func (s *MemoryListingStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.listings[id]; !ok {
		return services.ErrListingNotFound
	}
	delete(s.listings, id)
	s.notifyLocked()
	return nil
}

func (s *MemoryListingStore) Query(_ context.Context, q services.FetchQuery) ([]*models.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Listing, 0)
	for _, l := range s.listings {
		if !l.IsActive() {
			continue
		}
		if q.Category != "" && !strings.EqualFold(l.Category, q.Category) {
			continue
		}
		if q.Subcategory != "" && l.Subcategory != q.Subcategory {
			continue
		}
		if q.MinPrice != nil && l.Price < *q.MinPrice {
			continue
		}
		if q.MaxPrice != nil && l.Price > *q.MaxPrice {
			continue
		}
		out = append(out, cloneListing(l))
	}
	sortNewestFirst(out)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *MemoryListingStore) ListByUser(_ context.Context, userID string) ([]*models.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Listing, 0)
	for _, l := range s.listings {
		if l.UserID == userID {
			out = append(out, cloneListing(l))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// Watch signals after every write. Signals coalesce: a slow reader sees one
// pending signal, not one per write.
func (s *MemoryListingStore) Watch(ctx context.Context, _ services.FetchQuery) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.watchers[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.watchers, id)
		close(ch)
		s.mu.Unlock()
	}()
	return ch, nil
}

func (s *MemoryListingStore) notifyLocked() {
	for _, ch := range s.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func sortNewestFirst(listings []*models.Listing) {
	sort.SliceStable(listings, func(i, j int) bool {
		if listings[i].CreatedAt.Equal(listings[j].CreatedAt) {
			return listings[i].ID < listings[j].ID
		}
		return listings[i].CreatedAt.After(listings[j].CreatedAt)
	})
}

func cloneListing(l *models.Listing) *models.Listing {
	c := *l
	c.Images = append([]string{}, l.Images...)
	if l.SoldAt != nil {
		t := *l.SoldAt
		c.SoldAt = &t
	}
	return &c
}
