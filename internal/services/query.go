package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/bazaar/backend/internal/metrics"
	"github.com/bazaar/backend/internal/models"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// QueryPipeline answers listing searches: one bulk fetch with the filters
// the store supports, then the in-process filters in FilterListings.
type QueryPipeline struct {
	store       ListingStore
	metrics     *metrics.Metrics
	logger      *zap.Logger
	defaultSize int
	maxSize     int
}

func NewQueryPipeline(store ListingStore, m *metrics.Metrics, logger *zap.Logger, defaultSize, maxSize int) *QueryPipeline {
	if maxSize <= 0 {
		maxSize = MaxPageSize
	}
	if defaultSize <= 0 || defaultSize > maxSize {
		defaultSize = min(DefaultPageSize, maxSize)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryPipeline{
		store:       store,
		metrics:     m,
		logger:      logger.Named("query"),
		defaultSize: defaultSize,
		maxSize:     maxSize,
	}
}

// FetchQuery translates a search filter into the store-level query.
func (q *QueryPipeline) FetchQuery(f models.SearchFilter) FetchQuery {
	limit := f.Limit
	if limit <= 0 {
		limit = q.defaultSize
	}
	if limit > q.maxSize {
		limit = q.maxSize
	}
	return FetchQuery{
		Category:    normalizeCategory(f.Category),
		Subcategory: strings.TrimSpace(f.Subcategory),
		MinPrice:    f.MinPrice,
		MaxPrice:    f.MaxPrice,
		Limit:       limit,
	}
}

// Search returns matching listings in the store's order, newest first.
// Store errors are returned as is; there is no retry at this layer.
func (q *QueryPipeline) Search(ctx context.Context, f models.SearchFilter) ([]*models.Listing, error) {
	listings, err := q.store.Query(ctx, q.FetchQuery(f))
	if err != nil {
		q.metrics.ObserveSearch("error", 0)
		return nil, fmt.Errorf("fetch listings: %w", err)
	}
	out := FilterListings(listings, f)
	q.metrics.ObserveSearch("ok", len(out))
	return out, nil
}

// Watch pushes the current result set and then a fresh one each time the
// store reports a change. The channel closes when ctx is done or the store
// subscription ends.
func (q *QueryPipeline) Watch(ctx context.Context, f models.SearchFilter) (<-chan []*models.Listing, error) {
	changes, err := q.store.Watch(ctx, q.FetchQuery(f))
	if err != nil {
		return nil, fmt.Errorf("watch listings: %w", err)
	}

	out := make(chan []*models.Listing, 1)
	go func() {
		defer close(out)

		push := func() bool {
			listings, err := q.Search(ctx, f)
			if err != nil {
				if ctx.Err() == nil {
					q.logger.Warn("live search refresh failed", zap.Error(err))
				}
				return true
			}
			select {
			case out <- listings:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !push() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok || !push() {
					return
				}
			}
		}
	}()
	return out, nil
}

// FilterListings applies the status, category, subcategory, price, location
// and text filters in that order. It never reorders its input and is safe to
// apply to results a store already filtered.
func FilterListings(listings []*models.Listing, f models.SearchFilter) []*models.Listing {
	category := normalizeCategory(f.Category)
	subcategory := strings.TrimSpace(f.Subcategory)
	text := strings.ToLower(strings.TrimSpace(f.Query))

	out := make([]*models.Listing, 0, len(listings))
	for _, l := range listings {
		if l == nil || !l.IsActive() {
			continue
		}
		if category != "" && !strings.EqualFold(l.Category, category) {
			continue
		}
		if subcategory != "" && l.Subcategory != subcategory {
			continue
		}
		if !inPriceRange(l.Price, f.MinPrice, f.MaxPrice) {
			continue
		}
		if !matchesLocation(l.Location, f.Location) {
			continue
		}
		if text != "" && !matchesText(l, text) {
			continue
		}
		out = append(out, l)
	}
	return out
}

func normalizeCategory(category string) string {
	if models.IsAllCategories(category) {
		return ""
	}
	if cat, ok := models.LookupCategory(category); ok {
		return cat.Name
	}
	return strings.TrimSpace(category)
}

func inPriceRange(price float64, lo, hi *float64) bool {
	if lo != nil && price < *lo {
		return false
	}
	if hi != nil && price > *hi {
		return false
	}
	return true
}

// matchesLocation lets listings without a location through; any one of
// city, state or country appearing in the listing's location is a match.
func matchesLocation(location string, f *models.LocationFilter) bool {
	if f.IsEmpty() {
		return true
	}
	location = strings.ToLower(strings.TrimSpace(location))
	if location == "" {
		return true
	}
	for _, part := range []string{f.City, f.State, f.Country} {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" && strings.Contains(location, part) {
			return true
		}
	}
	return false
}

func matchesText(l *models.Listing, text string) bool {
	for _, field := range []string{l.Title, l.Description, l.Category, l.Location} {
		if strings.Contains(strings.ToLower(field), text) {
			return true
		}
	}
	return false
}
