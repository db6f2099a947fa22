package storage

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bazaar/backend/internal/models"
	"github.com/bazaar/backend/internal/services"
)

// FirestoreFavoriteStore keys favorites by user and listing so a second Add
// for the same pair fails on the server.
type FirestoreFavoriteStore struct {
	coll *firestore.CollectionRef
}

type firestoreFavoriteDoc struct {
	ID        string    `firestore:"id"`
	UserID    string    `firestore:"userId"`
	ListingID string    `firestore:"listingId"`
	CreatedAt time.Time `firestore:"createdAt"`
}

func NewFirestoreFavoriteStore(client *firestore.Client) *FirestoreFavoriteStore {
	return &FirestoreFavoriteStore{coll: client.Collection("favorites")}
}

func favoriteDocID(userID, listingID string) string {
	return userID + "_" + listingID
}

func (s *FirestoreFavoriteStore) Add(ctx context.Context, f *models.Favorite) error {
	_, err := s.coll.Doc(favoriteDocID(f.UserID, f.ListingID)).Create(ctx, firestoreFavoriteDoc{
		ID:        f.ID,
		UserID:    f.UserID,
		ListingID: f.ListingID,
		CreatedAt: f.CreatedAt,
	})
	if status.Code(err) == codes.AlreadyExists {
		return services.ErrAlreadyFavorited
	}
	return err
}

func (s *FirestoreFavoriteStore) Remove(ctx context.Context, userID, listingID string) error {
	_, err := s.coll.Doc(favoriteDocID(userID, listingID)).Delete(ctx, firestore.Exists)
	if status.Code(err) == codes.NotFound {
		return services.ErrFavoriteNotFound
	}
	return err
}

func (s *FirestoreFavoriteStore) Exists(ctx context.Context, userID, listingID string) (bool, error) {
	snap, err := s.coll.Doc(favoriteDocID(userID, listingID)).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return snap.Exists(), nil
}

func (s *FirestoreFavoriteStore) ListByUser(ctx context.Context, userID string) ([]*models.Favorite, error) {
	iter := s.coll.Where("userId", "==", userID).OrderBy("createdAt", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	out := make([]*models.Favorite, 0)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		var d firestoreFavoriteDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, err
		}
		out = append(out, &models.Favorite{
			ID:        d.ID,
			UserID:    d.UserID,
			ListingID: d.ListingID,
			CreatedAt: d.CreatedAt,
		})
	}
	return out, nil
}

func (s *FirestoreFavoriteStore) DeleteByListing(ctx context.Context, listingID string) error {
	iter := s.coll.Where("listingId", "==", listingID).Documents(ctx)
	defer iter.Stop()

	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := snap.Ref.Delete(ctx); err != nil {
			return err
		}
	}
}
