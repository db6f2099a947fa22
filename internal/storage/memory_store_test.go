package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazaar/backend/internal/models"
	"github.com/bazaar/backend/internal/services"
)

func ptr[T any](v T) *T { return &v }

func TestMemoryListingStoreQuery(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryListingStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, l := range []*models.Listing{
		{Title: "old car", Category: "Vehicles", Subcategory: "Cars", Price: 9000, CreatedAt: base},
		{Title: "new car", Category: "Vehicles", Subcategory: "Cars", Price: 12000, Status: models.StatusActive, CreatedAt: base.Add(2 * time.Hour)},
		{Title: "sold car", Category: "Vehicles", Subcategory: "Cars", Price: 5000, Status: models.StatusSold, CreatedAt: base.Add(3 * time.Hour)},
		{Title: "boat", Category: "Vehicles", Subcategory: "Boats", Price: 30000, Status: models.StatusActive, CreatedAt: base.Add(time.Hour)},
		{Title: "sofa", Category: "Home & Garden", Price: 200, Status: models.StatusActive, CreatedAt: base.Add(4 * time.Hour)},
	} {
		id, err := s.Create(ctx, l)
		require.NoError(t, err, i)
		assert.Equal(t, id, l.ID)
	}

	titles := func(ls []*models.Listing) []string {
		out := make([]string, len(ls))
		for i, l := range ls {
			out[i] = l.Title
		}
		return out
	}

	got, err := s.Query(ctx, services.FetchQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"sofa", "new car", "boat", "old car"}, titles(got))

	got, err = s.Query(ctx, services.FetchQuery{Category: "vehicles", Subcategory: "Cars"})
	require.NoError(t, err)
	assert.Equal(t, []string{"new car", "old car"}, titles(got))

	got, err = s.Query(ctx, services.FetchQuery{MinPrice: ptr(9000.0), MaxPrice: ptr(12000.0)})
	require.NoError(t, err)
	assert.Equal(t, []string{"new car", "old car"}, titles(got))

	got, err = s.Query(ctx, services.FetchQuery{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"sofa", "new car"}, titles(got))
}

func TestMemoryListingStoreUpdateKeepsMedia(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryListingStore()

	l := &models.Listing{UserID: "u1", Title: "lamp", Images: []string{}}
	_, err := s.Create(ctx, l)
	require.NoError(t, err)
	require.NoError(t, s.UpdateMedia(ctx, l.ID, []string{"a", "b"}, "a", "v"))
	require.NoError(t, s.IncrementViews(ctx, l.ID))

	edit := *l
	edit.Title = "desk lamp"
	edit.Images = nil
	edit.UserID = "someone-else"
	require.NoError(t, s.Update(ctx, &edit))

	got, err := s.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "desk lamp", got.Title)
	assert.Equal(t, []string{"a", "b"}, got.Images)
	assert.Equal(t, "a", got.CoverImage)
	assert.Equal(t, "v", got.VideoURL)
	assert.EqualValues(t, 1, got.Views)
	assert.Equal(t, "u1", got.UserID)

	got.Images[0] = "mutated"
	again, err := s.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", again.Images[0], "Get returns copies")

	assert.ErrorIs(t, s.Update(ctx, &models.Listing{ID: "missing"}), services.ErrListingNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "missing"), services.ErrListingNotFound)
}

func TestMemoryListingStoreWatchCoalesces(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewMemoryListingStore()

	ch, err := s.Watch(ctx, services.FetchQuery{})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := s.Create(context.Background(), &models.Listing{Title: "x"})
		require.NoError(t, err)
	}

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("no change signal")
	}
	select {
	case <-ch:
		t.Fatal("signals should coalesce")
	default:
	}

	cancel()
	assert.Eventually(t, func() bool {
		_, ok := <-ch
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryFavoriteStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryFavoriteStore()
	now := time.Now()

	require.NoError(t, s.Add(ctx, &models.Favorite{ID: "1", UserID: "u1", ListingID: "a", CreatedAt: now}))
	require.NoError(t, s.Add(ctx, &models.Favorite{ID: "2", UserID: "u1", ListingID: "b", CreatedAt: now.Add(time.Minute)}))
	require.NoError(t, s.Add(ctx, &models.Favorite{ID: "3", UserID: "u2", ListingID: "a", CreatedAt: now}))
	assert.ErrorIs(t, s.Add(ctx, &models.Favorite{ID: "4", UserID: "u1", ListingID: "a"}), services.ErrAlreadyFavorited)

	list, err := s.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ListingID, "newest first")

	require.NoError(t, s.DeleteByListing(ctx, "a"))
	ok, err := s.Exists(ctx, "u2", "a")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, s.Remove(ctx, "u1", "a"), services.ErrFavoriteNotFound)
	assert.NoError(t, s.Remove(ctx, "u1", "b"))
}

func TestMemoryLocationStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryLocationStore()

	_, err := s.Get(ctx, "u1")
	assert.ErrorIs(t, err, services.ErrLocationNotFound)

	require.NoError(t, s.Put(ctx, &models.UserLocation{UserID: "u1", City: "Zahle"}))
	got, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Zahle", got.City)
}
