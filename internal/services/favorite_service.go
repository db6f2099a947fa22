package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bazaar/backend/internal/models"
)

type FavoriteService struct {
	favorites FavoriteStore
	listings  ListingStore
	logger    *zap.Logger
	now       func() time.Time
}

func NewFavoriteService(favorites FavoriteStore, listings ListingStore, logger *zap.Logger) *FavoriteService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FavoriteService{
		favorites: favorites,
		listings:  listings,
		logger:    logger.Named("favorites"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *FavoriteService) Add(ctx context.Context, userID, listingID string) (*models.Favorite, error) {
	if _, err := s.listings.Get(ctx, listingID); err != nil {
		return nil, err
	}

	favorite := &models.Favorite{
		ID:        uuid.New().String(),
		UserID:    userID,
		ListingID: listingID,
		CreatedAt: s.now(),
	}
	if err := s.favorites.Add(ctx, favorite); err != nil {
		return nil, err
	}
	return favorite, nil
}

func (s *FavoriteService) Remove(ctx context.Context, userID, listingID string) error {
	return s.favorites.Remove(ctx, userID, listingID)
}

func (s *FavoriteService) IsFavorited(ctx context.Context, userID, listingID string) (bool, error) {
	return s.favorites.Exists(ctx, userID, listingID)
}

// List returns the user's favorites, newest first.
func (s *FavoriteService) List(ctx context.Context, userID string) ([]*models.Favorite, error) {
	return s.favorites.ListByUser(ctx, userID)
}

// ListWithListings resolves each favorite to its listing. Favorites whose
// listing has been deleted are skipped.
func (s *FavoriteService) ListWithListings(ctx context.Context, userID string) ([]models.FavoriteWithListing, error) {
	favs, err := s.favorites.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]models.FavoriteWithListing, 0, len(favs))
	for _, f := range favs {
		l, err := s.listings.Get(ctx, f.ListingID)
		if err != nil {
			if errors.Is(err, ErrListingNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, models.FavoriteWithListing{Favorite: *f, Listing: *l})
	}
	return out, nil
}
