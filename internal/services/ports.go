package services

import (
	"context"

	"github.com/bazaar/backend/internal/models"
)

// FetchQuery holds the filters a ListingStore applies natively. Stores that
// cannot express one of them return a superset; FilterListings narrows it.
type FetchQuery struct {
	Category    string
	Subcategory string
	MinPrice    *float64
	MaxPrice    *float64
	Limit       int
}

// ListingStore is the document collection holding listings. Every query
// only returns listings whose status is active or absent, newest first.
type ListingStore interface {
	// Create assigns the ID, sets it on l and returns it.
	Create(ctx context.Context, l *models.Listing) (string, error)
	Get(ctx context.Context, id string) (*models.Listing, error)
	// Update rewrites the editable fields, status and sold timestamp.
	Update(ctx context.Context, l *models.Listing) error
	UpdateMedia(ctx context.Context, id string, images []string, cover, videoURL string) error
	IncrementViews(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	Query(ctx context.Context, q FetchQuery) ([]*models.Listing, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Listing, error)
	// Watch signals whenever listings that may match q change. The channel is
	// closed when ctx is done or the subscription breaks.
	Watch(ctx context.Context, q FetchQuery) (<-chan struct{}, error)
}

type FavoriteStore interface {
	Add(ctx context.Context, f *models.Favorite) error
	Remove(ctx context.Context, userID, listingID string) error
	Exists(ctx context.Context, userID, listingID string) (bool, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Favorite, error)
	DeleteByListing(ctx context.Context, listingID string) error
}

type LocationStore interface {
	Get(ctx context.Context, userID string) (*models.UserLocation, error)
	Put(ctx context.Context, loc *models.UserLocation) error
}

// BlobStore writes listing media and resolves it to a URL.
type BlobStore interface {
	Put(ctx context.Context, path string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, path string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// BlobLister is implemented by blob stores that can enumerate
// "directories" under a prefix.
type BlobLister interface {
	ListPrefixes(ctx context.Context, prefix string) ([]string, error)
}

// PreferenceCache is a small key-value store for per-user preferences.
// Get returns ErrCacheMiss for unknown keys.
type PreferenceCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, subject string, payload interface{}) error
}

type Compressor interface {
	Compress(img models.ImageInput) (models.ImageInput, error)
}

type ImageModerator interface {
	IsSafe(ctx context.Context, img models.ImageInput) (bool, error)
}

type Geocoder interface {
	Reverse(ctx context.Context, lat, lng float64) (models.LocationFilter, error)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, interface{}) error { return nil }
