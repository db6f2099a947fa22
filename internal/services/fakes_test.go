package services_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bazaar/backend/internal/models"
	"github.com/bazaar/backend/internal/services"
	"github.com/bazaar/backend/internal/storage"
)

// fakeBlobs is an in-memory BlobStore with hooks for slow or failing paths.
type fakeBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string

	// hang makes Put wait for its context on matching paths.
	hang func(path string) bool
	// delay makes Put sleep before storing.
	delay func(path string) time.Duration
	fail  func(path string) error
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: make(map[string][]byte)}
}

func (b *fakeBlobs) Put(ctx context.Context, path string, data []byte, _ string) (string, error) {
	if b.hang != nil && b.hang(path) {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if b.delay != nil {
		select {
		case <-time.After(b.delay(path)):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if b.fail != nil {
		if err := b.fail(path); err != nil {
			return "", err
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[path] = append([]byte(nil), data...)
	return "https://blobs.test/" + path, nil
}

func (b *fakeBlobs) Delete(_ context.Context, path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, path)
	b.deleted = append(b.deleted, path)
	return nil
}

func (b *fakeBlobs) DeletePrefix(_ context.Context, prefix string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for path := range b.objects {
		if strings.HasPrefix(path, prefix) {
			delete(b.objects, path)
			b.deleted = append(b.deleted, path)
		}
	}
	return nil
}

func (b *fakeBlobs) ListPrefixes(_ context.Context, prefix string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	seen := make(map[string]bool)
	for path := range b.objects {
		rest, ok := strings.CutPrefix(path, prefix)
		if !ok {
			continue
		}
		if i := strings.Index(rest, "/"); i >= 0 {
			seen[prefix+rest[:i+1]] = true
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

func (b *fakeBlobs) paths() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.objects))
	for p := range b.objects {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (b *fakeBlobs) data(path string) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.objects[path]
}

type recordingPublisher struct {
	mu     sync.Mutex
	events map[string][]services.ListingEvent
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{events: make(map[string][]services.ListingEvent)}
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ev, ok := payload.(services.ListingEvent); ok {
		p.events[subject] = append(p.events[subject], ev)
	}
	return nil
}

func (p *recordingPublisher) count(subject string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events[subject])
}

type fakeCompressor struct {
	err error
}

func (c fakeCompressor) Compress(in models.ImageInput) (models.ImageInput, error) {
	if c.err != nil {
		return models.ImageInput{}, c.err
	}
	return models.ImageInput{
		Filename:    in.Filename,
		ContentType: "image/jpeg",
		Data:        []byte("compressed:" + in.Filename),
	}, nil
}

// fakeModerator flags images whose filename starts with "unsafe".
type fakeModerator struct{}

func (fakeModerator) IsSafe(_ context.Context, img models.ImageInput) (bool, error) {
	return !strings.HasPrefix(img.Filename, "unsafe"), nil
}

type fakeGeocoder struct {
	place models.LocationFilter
	err   error
	calls int
}

func (g *fakeGeocoder) Reverse(context.Context, float64, float64) (models.LocationFilter, error) {
	g.calls++
	return g.place, g.err
}

// flakyListingStore wraps the memory store and fails chosen operations.
type flakyListingStore struct {
	*storage.MemoryListingStore
	failUpdateMedia bool
	failQuery       bool
}

var errStoreDown = errors.New("store unavailable")

func (s *flakyListingStore) UpdateMedia(ctx context.Context, id string, images []string, cover, videoURL string) error {
	if s.failUpdateMedia {
		return errStoreDown
	}
	return s.MemoryListingStore.UpdateMedia(ctx, id, images, cover, videoURL)
}

func (s *flakyListingStore) Query(ctx context.Context, q services.FetchQuery) ([]*models.Listing, error) {
	if s.failQuery {
		return nil, errStoreDown
	}
	return s.MemoryListingStore.Query(ctx, q)
}

func photos(n int) []models.ImageInput {
	out := make([]models.ImageInput, n)
	for i := range out {
		name := fmt.Sprintf("photo%d.jpg", i)
		out[i] = models.ImageInput{Filename: name, ContentType: "image/jpeg", Data: []byte("raw:" + name)}
	}
	return out
}

func ptr[T any](v T) *T { return &v }

func phoneListing() models.CreateListingRequest {
	return models.CreateListingRequest{
		Title:       "iPhone 13 Pro",
		Description: "Barely used, with box",
		Price:       ptr(650.0),
		Category:    "electronics",
		Subcategory: "mobile phones",
		Location:    "Beirut, Lebanon",
		PhoneNumber: "+961 3 123 456",
	}
}

func servicesListing() models.CreateListingRequest {
	return models.CreateListingRequest{
		Title:       "Home cleaning",
		Price:       ptr(0.0),
		Category:    "services",
		Subcategory: "Cleaning",
		Location:    "Tripoli",
		PhoneNumber: "+961 6 000 000",
	}
}
