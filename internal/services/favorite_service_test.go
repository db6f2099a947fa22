package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bazaar/backend/internal/services"
	"github.com/bazaar/backend/internal/storage"
)

func TestFavoriteService(t *testing.T) {
	ctx := context.Background()
	lf := newListingFixture(t)
	favs := services.NewFavoriteService(lf.favorites, lf.store, zap.NewNop())

	bike := lf.seed(t, "seller")
	lamp := lf.seed(t, "seller")

	fav, err := favs.Add(ctx, "buyer", bike.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, fav.ID)
	assert.Equal(t, bike.ID, fav.ListingID)

	_, err = favs.Add(ctx, "buyer", bike.ID)
	assert.ErrorIs(t, err, services.ErrAlreadyFavorited)

	_, err = favs.Add(ctx, "buyer", "missing")
	assert.ErrorIs(t, err, services.ErrListingNotFound)

	_, err = favs.Add(ctx, "buyer", lamp.ID)
	require.NoError(t, err)

	ok, err := favs.IsFavorited(ctx, "buyer", bike.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	list, err := favs.List(ctx, "buyer")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	// A deleted listing drops out of the resolved list.
	require.NoError(t, lf.store.Delete(ctx, lamp.ID))
	withListings, err := favs.ListWithListings(ctx, "buyer")
	require.NoError(t, err)
	require.Len(t, withListings, 1)
	assert.Equal(t, bike.ID, withListings[0].Listing.ID)

	require.NoError(t, favs.Remove(ctx, "buyer", bike.ID))
	assert.ErrorIs(t, favs.Remove(ctx, "buyer", bike.ID), services.ErrFavoriteNotFound)
}

func TestFavoriteServiceIsolatesUsers(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryListingStore()
	lf := &listingFixture{store: store, favorites: storage.NewMemoryFavoriteStore()}
	favs := services.NewFavoriteService(lf.favorites, store, nil)
	l := lf.seed(t, "seller")

	_, err := favs.Add(ctx, "alice", l.ID)
	require.NoError(t, err)

	ok, err := favs.IsFavorited(ctx, "bob", l.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	list, err := favs.List(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, list)
}
