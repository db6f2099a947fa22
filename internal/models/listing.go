package models

import (
	"math"
	"strings"
	"time"
)

type ListingStatus string

const (
	StatusActive ListingStatus = "active"
	StatusSold   ListingStatus = "sold"
)

const DefaultCurrency = "USD"

type Listing struct {
	ID          string        `json:"id"`
	UserID      string        `json:"user_id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Price       float64       `json:"price"`
	Currency    string        `json:"currency"`
	Category    string        `json:"category"`
	Subcategory string        `json:"subcategory,omitempty"`
	Location    string        `json:"location"`
	PhoneNumber string        `json:"phone_number"`
	Images      []string      `json:"images"`
	CoverImage  string        `json:"cover_image"`
	VideoURL    string        `json:"video_url,omitempty"`
	Status      ListingStatus `json:"status"`
	Views       int64         `json:"views"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	SoldAt      *time.Time    `json:"sold_at,omitempty"`
}

// PriceOnCall reports whether the seller asks buyers to call for a price.
func (l *Listing) PriceOnCall() bool {
	return l.Price == 0
}

// IsActive treats a missing status as active; older documents were written
// without one.
func (l *Listing) IsActive() bool {
	return l.Status == "" || l.Status == StatusActive
}

// CoverOf returns the cover image for an ordered image list.
func CoverOf(images []string) string {
	if len(images) == 0 {
		return ""
	}
	return images[0]
}

type CreateListingRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Price       *float64 `json:"price"`
	Currency    string   `json:"currency"`
	Category    string   `json:"category"`
	Subcategory string   `json:"subcategory"`
	Location    string   `json:"location"`
	PhoneNumber string   `json:"phone_number"`
}

type UpdateListingRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	Currency    *string  `json:"currency"`
	Subcategory *string  `json:"subcategory"`
	Location    *string  `json:"location"`
	PhoneNumber *string  `json:"phone_number"`
}

// Normalize trims the free-text fields and fills the currency default.
func (r *CreateListingRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	r.Location = strings.TrimSpace(r.Location)
	r.PhoneNumber = strings.TrimSpace(r.PhoneNumber)
	r.Subcategory = strings.TrimSpace(r.Subcategory)
	r.Currency = strings.ToUpper(strings.TrimSpace(r.Currency))
	if r.Currency == "" {
		r.Currency = DefaultCurrency
	}
}

func (r *CreateListingRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if strings.TrimSpace(r.Title) == "" {
		errors["title"] = "Title is required"
	}
	switch {
	case r.Price == nil:
		errors["price"] = "Price is required"
	case !isFinite(*r.Price):
		errors["price"] = "Price must be a number"
	case *r.Price < 0:
		errors["price"] = "Price cannot be negative"
	}
	if strings.TrimSpace(r.Location) == "" {
		errors["location"] = "Location is required"
	}
	if strings.TrimSpace(r.PhoneNumber) == "" {
		errors["phone_number"] = "Phone number is required"
	}

	cat, ok := LookupCategory(r.Category)
	switch {
	case strings.TrimSpace(r.Category) == "":
		errors["category"] = "Category is required"
	case !ok:
		errors["category"] = "Unknown category"
	case r.Subcategory != "" && !cat.HasSubcategory(r.Subcategory):
		errors["subcategory"] = "Subcategory does not belong to " + cat.Name
	}

	return errors
}

// Validate checks only the fields being changed. The subcategory is checked
// against the listing's category by the caller.
func (r *UpdateListingRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Title != nil && strings.TrimSpace(*r.Title) == "" {
		errors["title"] = "Title cannot be empty"
	}
	if r.Price != nil {
		if !isFinite(*r.Price) {
			errors["price"] = "Price must be a number"
		} else if *r.Price < 0 {
			errors["price"] = "Price cannot be negative"
		}
	}
	if r.Location != nil && strings.TrimSpace(*r.Location) == "" {
		errors["location"] = "Location cannot be empty"
	}
	if r.PhoneNumber != nil && strings.TrimSpace(*r.PhoneNumber) == "" {
		errors["phone_number"] = "Phone number cannot be empty"
	}

	return errors
}

// Apply copies the set fields onto l.
func (r *UpdateListingRequest) Apply(l *Listing) {
	if r.Title != nil {
		l.Title = strings.TrimSpace(*r.Title)
	}
	if r.Description != nil {
		l.Description = strings.TrimSpace(*r.Description)
	}
	if r.Price != nil {
		l.Price = *r.Price
	}
	if r.Currency != nil {
		l.Currency = strings.ToUpper(strings.TrimSpace(*r.Currency))
		if l.Currency == "" {
			l.Currency = DefaultCurrency
		}
	}
	if r.Subcategory != nil {
		l.Subcategory = strings.TrimSpace(*r.Subcategory)
	}
	if r.Location != nil {
		l.Location = strings.TrimSpace(*r.Location)
	}
	if r.PhoneNumber != nil {
		l.PhoneNumber = strings.TrimSpace(*r.PhoneNumber)
	}
}

// SearchFilter is what a caller asks for when browsing listings.
type SearchFilter struct {
	Query       string          `json:"q,omitempty"`
	Category    string          `json:"category,omitempty"`
	Subcategory string          `json:"subcategory,omitempty"`
	MinPrice    *float64        `json:"min_price,omitempty"`
	MaxPrice    *float64        `json:"max_price,omitempty"`
	Location    *LocationFilter `json:"location,omitempty"`
	Limit       int             `json:"limit,omitempty"`
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
