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

// MongoLocationStore keeps one document per user, keyed by user ID.
type MongoLocationStore struct {
	coll *mongo.Collection
}

type mongoLocationDoc struct {
	UserID    string    `bson:"_id"`
	City      string    `bson:"city"`
	State     string    `bson:"state"`
	Country   string    `bson:"country"`
	Latitude  *float64  `bson:"latitude,omitempty"`
	Longitude *float64  `bson:"longitude,omitempty"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func NewMongoLocationStore(db *mongo.Database) *MongoLocationStore {
	return &MongoLocationStore{coll: db.Collection("user_locations")}
}

func (s *MongoLocationStore) Get(ctx context.Context, userID string) (*models.UserLocation, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	var d mongoLocationDoc
	if err := s.coll.FindOne(ctx, bson.M{"_id": userID}).Decode(&d); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, services.ErrLocationNotFound
		}
		return nil, err
	}
	return &models.UserLocation{
		UserID:    d.UserID,
		City:      d.City,
		State:     d.State,
		Country:   d.Country,
		Latitude:  d.Latitude,
		Longitude: d.Longitude,
		UpdatedAt: d.UpdatedAt,
	}, nil
}

func (s *MongoLocationStore) Put(ctx context.Context, loc *models.UserLocation) error {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	doc := mongoLocationDoc{
		UserID:    loc.UserID,
		City:      loc.City,
		State:     loc.State,
		Country:   loc.Country,
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
		UpdatedAt: loc.UpdatedAt,
	}
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": loc.UserID}, doc, options.Replace().SetUpsert(true))
	return err
}
