package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/bazaar/backend/internal/models"
)

// ListingService covers the owner lifecycle of a listing after creation.
type ListingService struct {
	store     ListingStore
	blobs     BlobStore
	favorites FavoriteStore
	events    EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewListingService(store ListingStore, blobs BlobStore, favorites FavoriteStore, events EventPublisher, logger *zap.Logger) *ListingService {
	if events == nil {
		events = nopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ListingService{
		store:     store,
		blobs:     blobs,
		favorites: favorites,
		events:    events,
		logger:    logger.Named("listings"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *ListingService) Get(ctx context.Context, id string) (*models.Listing, error) {
	return s.store.Get(ctx, id)
}

// RecordView bumps the view counter unless the viewer owns the listing.
func (s *ListingService) RecordView(ctx context.Context, l *models.Listing, viewerID string) {
	if viewerID != "" && viewerID == l.UserID {
		return
	}
	if err := s.store.IncrementViews(ctx, l.ID); err != nil {
		s.logger.Warn("increment views", zap.String("listing_id", l.ID), zap.Error(err))
	}
}

func (s *ListingService) ListByUser(ctx context.Context, userID string) ([]*models.Listing, error) {
	return s.store.ListByUser(ctx, userID)
}

func (s *ListingService) Update(ctx context.Context, userID, id string, req *models.UpdateListingRequest) (*models.Listing, error) {
	if fields := req.Validate(); len(fields) > 0 {
		return nil, newValidationError(fields)
	}

	l, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if req.Subcategory != nil && *req.Subcategory != "" {
		cat, ok := models.LookupCategory(l.Category)
		if ok && !cat.HasSubcategory(*req.Subcategory) {
			return nil, newValidationError(map[string]string{
				"subcategory": "Subcategory does not belong to " + cat.Name,
			})
		}
		if ok {
			canonical := canonicalSubcategory(cat, *req.Subcategory)
			req.Subcategory = &canonical
		}
	}

	req.Apply(l)
	l.UpdatedAt = s.now()
	if err := s.store.Update(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *ListingService) MarkSold(ctx context.Context, userID, id string) (*models.Listing, error) {
	return s.setStatus(ctx, userID, id, models.StatusSold)
}

func (s *ListingService) Reactivate(ctx context.Context, userID, id string) (*models.Listing, error) {
	return s.setStatus(ctx, userID, id, models.StatusActive)
}

func (s *ListingService) setStatus(ctx context.Context, userID, id string, status models.ListingStatus) (*models.Listing, error) {
	l, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	switch status {
	case models.StatusSold:
		if !l.IsActive() {
			return nil, ErrInvalidStatusTransition
		}
		l.SoldAt = &now
	case models.StatusActive:
		if l.IsActive() {
			return nil, ErrInvalidStatusTransition
		}
		l.SoldAt = nil
	}
	l.Status = status
	l.UpdatedAt = now

	if err := s.store.Update(ctx, l); err != nil {
		return nil, err
	}

	s.publish(ctx, SubjectListingStatusChanged, l)
	return l, nil
}

// Delete removes the listing's media, the favorites pointing at it and the
// document itself. Media and favorite cleanup is best effort; the blob
// sweeper reconciles anything left behind.
func (s *ListingService) Delete(ctx context.Context, userID, id string) error {
	l, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}
	logger := s.logger.With(zap.String("listing_id", id))

	if s.blobs != nil {
		if err := s.blobs.DeletePrefix(ctx, ListingPrefix(id)); err != nil {
			logger.Warn("delete listing media", zap.Error(err))
		}
	}
	if s.favorites != nil {
		if err := s.favorites.DeleteByListing(ctx, id); err != nil {
			logger.Warn("delete listing favorites", zap.Error(err))
		}
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	logger.Info("listing deleted")
	s.publish(ctx, SubjectListingDeleted, l)
	return nil
}

func (s *ListingService) owned(ctx context.Context, userID, id string) (*models.Listing, error) {
	l, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.UserID != userID {
		return nil, ErrUnauthorized
	}
	return l, nil
}

func (s *ListingService) publish(ctx context.Context, subject string, l *models.Listing) {
	event := ListingEvent{
		ListingID:  l.ID,
		UserID:     l.UserID,
		Category:   l.Category,
		Status:     l.Status,
		Images:     len(l.Images),
		OccurredAt: s.now(),
	}
	if err := s.events.Publish(ctx, subject, event); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("publish event", zap.String("subject", subject), zap.Error(err))
	}
}
