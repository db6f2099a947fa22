package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bazaar/backend/internal/models"
	"github.com/bazaar/backend/internal/services"
	"github.com/bazaar/backend/internal/storage"
)

type prefFixture struct {
	svc       *services.PreferenceService
	cache     *storage.FilePreferenceCache
	locations *storage.MemoryLocationStore
	geocoder  *fakeGeocoder
}

func newPrefFixture(t *testing.T) *prefFixture {
	t.Helper()
	cache, err := storage.NewFilePreferenceCache(t.TempDir())
	require.NoError(t, err)
	f := &prefFixture{
		cache:     cache,
		locations: storage.NewMemoryLocationStore(),
		geocoder:  &fakeGeocoder{},
	}
	f.svc = services.NewPreferenceService(f.cache, f.locations, f.geocoder, zap.NewNop())
	return f
}

func TestSetLocationWritesCacheAndStore(t *testing.T) {
	f := newPrefFixture(t)
	ctx := context.Background()

	loc, err := f.svc.SetLocation(ctx, "u1", &models.SetLocationRequest{City: " Beirut ", Country: "Lebanon"})
	require.NoError(t, err)
	assert.Equal(t, "Beirut", loc.City)
	assert.False(t, loc.UpdatedAt.IsZero())

	stored, err := f.locations.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Beirut", stored.City)

	_, err = f.cache.Get(ctx, "location:u1")
	require.NoError(t, err)

	got, err := f.svc.GetLocation(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Lebanon", got.Country)
	assert.Equal(t, &models.LocationFilter{City: "Beirut", Country: "Lebanon"}, got.Filter())
}

func TestGetLocationRefillsCacheFromStore(t *testing.T) {
	f := newPrefFixture(t)
	ctx := context.Background()
	require.NoError(t, f.locations.Put(ctx, &models.UserLocation{UserID: "u1", City: "Sidon"}))

	got, err := f.svc.GetLocation(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Sidon", got.City)

	_, err = f.cache.Get(ctx, "location:u1")
	assert.NoError(t, err, "a store hit repopulates the cache")

	_, err = f.svc.GetLocation(ctx, "nobody")
	assert.ErrorIs(t, err, services.ErrLocationNotFound)
}

func TestSetLocationValidates(t *testing.T) {
	f := newPrefFixture(t)

	_, err := f.svc.SetLocation(context.Background(), "u1", &models.SetLocationRequest{})
	var verr *services.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "location")
}

func TestResolveLocation(t *testing.T) {
	ctx := context.Background()

	t.Run("resolved", func(t *testing.T) {
		f := newPrefFixture(t)
		f.geocoder.place = models.LocationFilter{City: "Jounieh", State: "Keserwan", Country: "Lebanon"}

		loc, err := f.svc.ResolveLocation(ctx, "u1", 33.98, 35.63)
		require.NoError(t, err)
		assert.Equal(t, "Jounieh", loc.City)
		require.NotNil(t, loc.Latitude)
		assert.InDelta(t, 33.98, *loc.Latitude, 1e-9)

		stored, err := f.locations.Get(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "Keserwan", stored.State)
	})

	t.Run("nothing found", func(t *testing.T) {
		f := newPrefFixture(t)
		_, err := f.svc.ResolveLocation(ctx, "u1", 0, 0)
		assert.ErrorIs(t, err, services.ErrLocationUnresolved)
	})

	t.Run("provider error", func(t *testing.T) {
		f := newPrefFixture(t)
		f.geocoder.err = errors.New("rate limited")
		_, err := f.svc.ResolveLocation(ctx, "u1", 1, 1)
		assert.EqualError(t, err, "rate limited")
	})

	t.Run("no geocoder", func(t *testing.T) {
		cache, err := storage.NewFilePreferenceCache(t.TempDir())
		require.NoError(t, err)
		svc := services.NewPreferenceService(cache, storage.NewMemoryLocationStore(), nil, nil)
		_, err = svc.ResolveLocation(ctx, "u1", 1, 1)
		assert.ErrorIs(t, err, services.ErrGeocoderUnavailable)
	})
}

func TestLanguagePreference(t *testing.T) {
	f := newPrefFixture(t)
	ctx := context.Background()

	assert.Equal(t, services.DefaultLanguage, f.svc.GetLanguage(ctx, "u1"))

	lang, err := f.svc.SetLanguage(ctx, "u1", " AR ")
	require.NoError(t, err)
	assert.Equal(t, "ar", lang)
	assert.Equal(t, "ar", f.svc.GetLanguage(ctx, "u1"))

	_, err = f.svc.SetLanguage(ctx, "u1", "de")
	assert.ErrorIs(t, err, services.ErrUnsupportedLanguage)
	assert.Equal(t, "ar", f.svc.GetLanguage(ctx, "u1"))
}
