package models

import (
	"strings"
	"time"
)

// UserLocation is the place a user browses from. One per user.
type UserLocation struct {
	UserID    string    `json:"user_id"`
	City      string    `json:"city"`
	State     string    `json:"state"`
	Country   string    `json:"country"`
	Latitude  *float64  `json:"latitude,omitempty"`
	Longitude *float64  `json:"longitude,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (l *UserLocation) Filter() *LocationFilter {
	if l == nil {
		return nil
	}
	return &LocationFilter{City: l.City, State: l.State, Country: l.Country}
}

type LocationFilter struct {
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Country string `json:"country,omitempty"`
}

func (f *LocationFilter) IsEmpty() bool {
	return f == nil ||
		(strings.TrimSpace(f.City) == "" && strings.TrimSpace(f.State) == "" && strings.TrimSpace(f.Country) == "")
}

type SetLocationRequest struct {
	City      string   `json:"city"`
	State     string   `json:"state"`
	Country   string   `json:"country"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (r *SetLocationRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if strings.TrimSpace(r.City) == "" && strings.TrimSpace(r.State) == "" && strings.TrimSpace(r.Country) == "" {
		errors["location"] = "City, state or country is required"
	}
	if (r.Latitude == nil) != (r.Longitude == nil) {
		errors["coordinates"] = "Latitude and longitude must be set together"
	}
	if r.Latitude != nil && (*r.Latitude < -90 || *r.Latitude > 90) {
		errors["latitude"] = "Latitude must be between -90 and 90"
	}
	if r.Longitude != nil && (*r.Longitude < -180 || *r.Longitude > 180) {
		errors["longitude"] = "Longitude must be between -180 and 180"
	}
	return errors
}

type ResolveLocationRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (r *ResolveLocationRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.Latitude < -90 || r.Latitude > 90 {
		errors["latitude"] = "Latitude must be between -90 and 90"
	}
	if r.Longitude < -180 || r.Longitude > 180 {
		errors["longitude"] = "Longitude must be between -180 and 180"
	}
	return errors
}

type SetLanguageRequest struct {
	Language string `json:"language"`
}
