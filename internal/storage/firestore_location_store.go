package storage

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bazaar/backend/internal/models"
	"github.com/bazaar/backend/internal/services"
)

type FirestoreLocationStore struct {
	coll *firestore.CollectionRef
}

type firestoreLocationDoc struct {
	City      string    `firestore:"city"`
	State     string    `firestore:"state"`
	Country   string    `firestore:"country"`
	Latitude  *float64  `firestore:"latitude,omitempty"`
	Longitude *float64  `firestore:"longitude,omitempty"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func NewFirestoreLocationStore(client *firestore.Client) *FirestoreLocationStore {
	return &FirestoreLocationStore{coll: client.Collection("userLocations")}
}

func (s *FirestoreLocationStore) Get(ctx context.Context, userID string) (*models.UserLocation, error) {
	snap, err := s.coll.Doc(userID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, services.ErrLocationNotFound
	}
	if err != nil {
		return nil, err
	}
	var d firestoreLocationDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, err
	}
	return &models.UserLocation{
		UserID:    userID,
		City:      d.City,
		State:     d.State,
		Country:   d.Country,
		Latitude:  d.Latitude,
		Longitude: d.Longitude,
		UpdatedAt: d.UpdatedAt,
	}, nil
}

func (s *FirestoreLocationStore) Put(ctx context.Context, loc *models.UserLocation) error {
	_, err := s.coll.Doc(loc.UserID).Set(ctx, firestoreLocationDoc{
		City:      loc.City,
		State:     loc.State,
		Country:   loc.Country,
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
		UpdatedAt: loc.UpdatedAt,
	})
	return err
}
