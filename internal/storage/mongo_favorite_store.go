package storage

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bazaar/backend/internal/models"
	"github.com/bazaar/backend/internal/services"
)

type MongoFavoriteStore struct {
	coll *mongo.Collection
}

type mongoFavoriteDoc struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	ListingID string    `bson:"listing_id"`
	CreatedAt time.Time `bson:"created_at"`
}

func NewMongoFavoriteStore(ctx context.Context, db *mongo.Database) *MongoFavoriteStore {
	coll := db.Collection("favorites")

	// Best-effort indexes. The unique pair makes Add race-free.
	_, _ = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "listing_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "listing_id", Value: 1}}},
	})

	return &MongoFavoriteStore{coll: coll}
}

func (s *MongoFavoriteStore) Add(ctx context.Context, f *models.Favorite) error {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	_, err := s.coll.InsertOne(ctx, mongoFavoriteDoc{
		ID:        f.ID,
		UserID:    f.UserID,
		ListingID: f.ListingID,
		CreatedAt: f.CreatedAt,
	})
	if mongo.IsDuplicateKeyError(err) {
		return services.ErrAlreadyFavorited
	}
	return err
}

func (s *MongoFavoriteStore) Remove(ctx context.Context, userID, listingID string) error {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	res, err := s.coll.DeleteOne(ctx, bson.M{"user_id": userID, "listing_id": listingID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return services.ErrFavoriteNotFound
	}
	return nil
}

func (s *MongoFavoriteStore) Exists(ctx context.Context, userID, listingID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	n, err := s.coll.CountDocuments(ctx, bson.M{"user_id": userID, "listing_id": listingID}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *MongoFavoriteStore) ListByUser(ctx context.Context, userID string) ([]*models.Favorite, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	cur, err := s.coll.Find(ctx, bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]*models.Favorite, 0)
	for cur.Next(ctx) {
		var d mongoFavoriteDoc
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		out = append(out, &models.Favorite{
			ID:        d.ID,
			UserID:    d.UserID,
			ListingID: d.ListingID,
			CreatedAt: d.CreatedAt,
		})
	}
	return out, cur.Err()
}

func (s *MongoFavoriteStore) DeleteByListing(ctx context.Context, listingID string) error {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	_, err := s.coll.DeleteMany(ctx, bson.M{"listing_id": listingID})
	return err
}
