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

// FirestoreListingStore stores listings in the "listings" collection using
// the field names the mobile clients already read.
type FirestoreListingStore struct {
	coll *firestore.CollectionRef
}

type firestoreListingDoc struct {
	UserID      string     `firestore:"userId"`
	Title       string     `firestore:"title"`
	Description string     `firestore:"description"`
	Price       float64    `firestore:"price"`
	Currency    string     `firestore:"currency"`
	Category    string     `firestore:"category"`
	Subcategory string     `firestore:"subcategory,omitempty"`
	Location    string     `firestore:"location"`
	PhoneNumber string     `firestore:"phoneNumber"`
	Images      []string   `firestore:"images"`
	CoverImage  string     `firestore:"coverImage"`
	VideoURL    string     `firestore:"videoUrl,omitempty"`
	Status      string     `firestore:"status,omitempty"`
	Views       int64      `firestore:"views"`
	CreatedAt   time.Time  `firestore:"createdAt"`
	UpdatedAt   time.Time  `firestore:"updatedAt"`
	SoldAt      *time.Time `firestore:"soldAt"`
}

func NewFirestoreListingStore(client *firestore.Client) *FirestoreListingStore {
	return &FirestoreListingStore{coll: client.Collection("listings")}
}

func firestoreDocToListing(snap *firestore.DocumentSnapshot) (*models.Listing, error) {
	var d firestoreListingDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, err
	}
	if d.Images == nil {
		d.Images = []string{}
	}
	if d.Currency == "" {
		d.Currency = models.DefaultCurrency
	}
	cover := d.CoverImage
	if cover == "" {
		cover = models.CoverOf(d.Images)
	}
	return &models.Listing{
		ID:          snap.Ref.ID,
		UserID:      d.UserID,
		Title:       d.Title,
		Description: d.Description,
		Price:       d.Price,
		Currency:    d.Currency,
		Category:    d.Category,
		Subcategory: d.Subcategory,
		Location:    d.Location,
		PhoneNumber: d.PhoneNumber,
		Images:      d.Images,
		CoverImage:  cover,
		VideoURL:    d.VideoURL,
		Status:      models.ListingStatus(d.Status),
		Views:       d.Views,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
		SoldAt:      d.SoldAt,
	}, nil
}

func (s *FirestoreListingStore) Create(ctx context.Context, l *models.Listing) (string, error) {
	images := l.Images
	if images == nil {
		images = []string{}
	}
	ref := s.coll.NewDoc()
	_, err := ref.Create(ctx, firestoreListingDoc{
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
	})
	if err != nil {
		return "", err
	}
	l.ID = ref.ID
	return ref.ID, nil
}

func (s *FirestoreListingStore) Get(ctx context.Context, id string) (*models.Listing, error) {
	snap, err := s.coll.Doc(id).Get(ctx)
	if err != nil {
		return nil, listingErr(err)
	}
	return firestoreDocToListing(snap)
}

func (s *FirestoreListingStore) Update(ctx context.Context, l *models.Listing) error {
	return s.update(ctx, l.ID, []firestore.Update{
		{Path: "title", Value: l.Title},
		{Path: "description", Value: l.Description},
		{Path: "price", Value: l.Price},
		{Path: "currency", Value: l.Currency},
		{Path: "subcategory", Value: l.Subcategory},
		{Path: "location", Value: l.Location},
		{Path: "phoneNumber", Value: l.PhoneNumber},
		{Path: "status", Value: string(l.Status)},
		{Path: "soldAt", Value: l.SoldAt},
		{Path: "updatedAt", Value: l.UpdatedAt},
	})
}

func (s *FirestoreListingStore) UpdateMedia(ctx context.Context, id string, images []string, cover, videoURL string) error {
	if images == nil {
		images = []string{}
	}
	return s.update(ctx, id, []firestore.Update{
		{Path: "images", Value: images},
		{Path: "coverImage", Value: cover},
		{Path: "videoUrl", Value: videoURL},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
	})
}

func (s *FirestoreListingStore) IncrementViews(ctx context.Context, id string) error {
	return s.update(ctx, id, []firestore.Update{{Path: "views", Value: firestore.Increment(1)}})
}

func (s *FirestoreListingStore) update(ctx context.Context, id string, updates []firestore.Update) error {
	_, err := s.coll.Doc(id).Update(ctx, updates)
	return listingErr(err)
}

func (s *FirestoreListingStore) Delete(ctx context.Context, id string) error {
	_, err := s.coll.Doc(id).Delete(ctx, firestore.Exists)
	return listingErr(err)
}

// query pushes the equality filters and ordering. Status and price stay
// client side: documents without a status must still match, and a price
// range would force ordering by price instead of recency.
func (s *FirestoreListingStore) query(q services.FetchQuery) firestore.Query {
	fq := s.coll.Query
	if q.Category != "" {
		fq = fq.Where("category", "==", q.Category)
	}
	if q.Subcategory != "" {
		fq = fq.Where("subcategory", "==", q.Subcategory)
	}
	fq = fq.OrderBy("createdAt", firestore.Desc)
	if q.Limit > 0 {
		fq = fq.Limit(q.Limit)
	}
	return fq
}

func (s *FirestoreListingStore) Query(ctx context.Context, q services.FetchQuery) ([]*models.Listing, error) {
	listings, err := s.collect(ctx, s.query(q))
	if err != nil {
		return nil, err
	}
	return services.FilterListings(listings, models.SearchFilter{MinPrice: q.MinPrice, MaxPrice: q.MaxPrice}), nil
}

func (s *FirestoreListingStore) ListByUser(ctx context.Context, userID string) ([]*models.Listing, error) {
	return s.collect(ctx, s.coll.Where("userId", "==", userID).OrderBy("createdAt", firestore.Desc))
}

func (s *FirestoreListingStore) collect(ctx context.Context, q firestore.Query) ([]*models.Listing, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	out := make([]*models.Listing, 0)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		l, err := firestoreDocToListing(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

// Watch listens to query snapshots. The first snapshot, which describes the
// initial result set, is skipped.
func (s *FirestoreListingStore) Watch(ctx context.Context, q services.FetchQuery) (<-chan struct{}, error) {
	it := s.query(q).Snapshots(ctx)
	ch := make(chan struct{}, 1)
	go func() {
		defer close(ch)
		defer it.Stop()
		first := true
		for {
			if _, err := it.Next(); err != nil {
				return
			}
			if first {
				first = false
				continue
			}
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	}()
	return ch, nil
}

func listingErr(err error) error {
	if status.Code(err) == codes.NotFound {
		return services.ErrListingNotFound
	}
	return err
}
