package services

import (
	"time"

	"github.com/bazaar/backend/internal/models"
)

const (
	SubjectListingCreated       = "listings.created"
	SubjectListingStatusChanged = "listings.status_changed"
	SubjectListingDeleted       = "listings.deleted"
)

// ListingEvent is the payload published for listing lifecycle changes.
type ListingEvent struct {
	ListingID  string               `json:"listing_id"`
	UserID     string               `json:"user_id"`
	Category   string               `json:"category,omitempty"`
	Status     models.ListingStatus `json:"status,omitempty"`
	Images     int                  `json:"images,omitempty"`
	OccurredAt time.Time            `json:"occurred_at"`
}
