package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bazaar/backend/internal/models"
	"github.com/bazaar/backend/internal/services"
)

type MongoListingStore struct {
	coll *mongo.Collection
}

type mongoListingDoc struct {
	ID          string     `bson:"_id"`
	UserID      string     `bson:"user_id"`
	Title       string     `bson:"title"`
	Description string     `bson:"description"`
	Price       float64    `bson:"price"`
	Currency    string     `bson:"currency"`
	Category    string     `bson:"category"`
	Subcategory string     `bson:"subcategory,omitempty"`
	Location    string     `bson:"location"`
	PhoneNumber string     `bson:"phone_number"`
	Images      []string   `bson:"images"`
	CoverImage  string     `bson:"cover_image"`
	VideoURL    string     `bson:"video_url,omitempty"`
	Status      string     `bson:"status,omitempty"`
	Views       int64      `bson:"views"`
	CreatedAt   time.Time  `bson:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at"`
	SoldAt      *time.Time `bson:"sold_at"`
}

func NewMongoListingStore(ctx context.Context, db *mongo.Database) *MongoListingStore {
	coll := db.Collection("listings")

	// Best-effort indexes.
	_, _ = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "category", Value: 1}, {Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "price", Value: 1}}},
	})

	return &MongoListingStore{coll: coll}
}

func listingDocToModel(d mongoListingDoc) *models.Listing {
	imgs := d.Images
	if imgs == nil {
		imgs = []string{}
	}
	currency := d.Currency
	if currency == "" {
		currency = models.DefaultCurrency
	}
	return &models.Listing{
		ID:          d.ID,
		UserID:      d.UserID,
		Title:       d.Title,
		Description: d.Description,
		Price:       d.Price,
		Currency:    currency,
		Category:    d.Category,
		Subcategory: d.Subcategory,
		Location:    d.Location,
		PhoneNumber: d.PhoneNumber,
		Images:      imgs,
		CoverImage:  d.CoverImage,
		VideoURL:    d.VideoURL,
		Status:      models.ListingStatus(d.Status),
		Views:       d.Views,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
		SoldAt:      d.SoldAt,
	}
}

func (s *MongoListingStore) Create(ctx context.Context, l *models.Listing) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	l.ID = uuid.New().String()
	images := l.Images
	if images == nil {
		images = []string{}
	}
	doc := mongoListingDoc{
		ID:          l.ID,
		UserID:      l.UserID,
		Title:       l.Title,
		Description: l.Description,
		Price:       l.Price,
		Currency:    l.Currency,
		Category:    l.Category,
		Subcategory: l.Subcategory,
		Location:    l.Location,
		PhoneNumber: l.PhoneNumber,
		Images:      images,
		CoverImage:  l.CoverImage,
		VideoURL:    l.VideoURL,
		Status:      string(l.Status),
		Views:       l.Views,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
		SoldAt:      l.SoldAt,
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return "", err
	}
	return l.ID, nil
}

func (s *MongoListingStore) Get(ctx context.Context, id string) (*models.Listing, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	var doc mongoListingDoc
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, services.ErrListingNotFound
		}
		return nil, err
	}
	return listingDocToModel(doc), nil
}

func (s *MongoListingStore) Update(ctx context.Context, l *models.Listing) error {
	return s.updateOne(ctx, l.ID, bson.M{"$set": bson.M{
		"title":        l.Title,
		"description":  l.Description,
		"price":        l.Price,
		"currency":     l.Currency,
		"subcategory":  l.Subcategory,
		"location":     l.Location,
		"phone_number": l.PhoneNumber,
		"status":       string(l.Status),
		"sold_at":      l.SoldAt,
		"updated_at":   l.UpdatedAt,
	}})
}

func (s *MongoListingStore) UpdateMedia(ctx context.Context, id string, images []string, cover, videoURL string) error {
	if images == nil {
		images = []string{}
	}
	return s.updateOne(ctx, id, bson.M{"$set": bson.M{
		"images":      images,
		"cover_image": cover,
		"video_url":   videoURL,
		"updated_at":  time.Now().UTC(),
	}})
}

func (s *MongoListingStore) IncrementViews(ctx context.Context, id string) error {
	return s.updateOne(ctx, id, bson.M{"$inc": bson.M{"views": 1}})
}

func (s *MongoListingStore) updateOne(ctx context.Context, id string, update bson.M) error {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return services.ErrListingNotFound
	}
	return nil
}

func (s *MongoListingStore) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return services.ErrListingNotFound
	}
	return nil
}

// queryFilter pushes every FetchQuery field into Mongo. Documents written
// before status existed have no status field and count as active.
func queryFilter(q services.FetchQuery) bson.M {
	filter := bson.M{
		"$or": bson.A{
			bson.M{"status": string(models.StatusActive)},
			bson.M{"status": bson.M{"$exists": false}},
		},
	}
	if q.Category != "" {
		filter["category"] = q.Category
	}
	if q.Subcategory != "" {
		filter["subcategory"] = q.Subcategory
	}
	price := bson.M{}
	if q.MinPrice != nil {
		price["$gte"] = *q.MinPrice
	}
	if q.MaxPrice != nil {
		price["$lte"] = *q.MaxPrice
	}
	if len(price) > 0 {
		filter["price"] = price
	}
	return filter
}

func (s *MongoListingStore) Query(ctx context.Context, q services.FetchQuery) ([]*models.Listing, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	return s.find(ctx, queryFilter(q), opts)
}

func (s *MongoListingStore) ListByUser(ctx context.Context, userID string) ([]*models.Listing, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return s.find(ctx, bson.M{"user_id": userID}, opts)
}

func (s *MongoListingStore) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*models.Listing, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]*models.Listing, 0)
	for cur.Next(ctx) {
		var doc mongoListingDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, listingDocToModel(doc))
	}
	return out, cur.Err()
}

// Watch needs a replica set; standalone servers reject change streams.
func (s *MongoListingStore) Watch(ctx context.Context, q services.FetchQuery) (<-chan struct{}, error) {
	match := bson.M{"operationType": bson.M{"$in": bson.A{"insert", "update", "replace", "delete"}}}
	if q.Category != "" {
		// Deletes carry no document; let them through regardless of category.
		match = bson.M{"$or": bson.A{
			bson.M{"operationType": "delete"},
			bson.M{"fullDocument.category": q.Category},
			bson.M{"operationType": "update"},
		}}
	}
	return watchCollection(ctx, s.coll, mongo.Pipeline{{{Key: "$match", Value: match}}})
}
