package handlers

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/bazaar/backend/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// parseSearchFilter reads the listing search parameters from the query
// string. Malformed numbers are reported per parameter.
func parseSearchFilter(r *http.Request) (models.SearchFilter, map[string]string) {
	q := r.URL.Query()
	errors := make(map[string]string)

	f := models.SearchFilter{
		Query:       strings.TrimSpace(q.Get("q")),
		Category:    strings.TrimSpace(q.Get("category")),
		Subcategory: strings.TrimSpace(q.Get("subcategory")),
	}

	var err error
	if f.MinPrice, err = optionalFloat(q.Get("min_price")); err != nil {
		errors["min_price"] = "min_price must be a number"
	}
	if f.MaxPrice, err = optionalFloat(q.Get("max_price")); err != nil {
		errors["max_price"] = "max_price must be a number"
	}
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		errors["max_price"] = "max_price must not be below min_price"
	}

	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			errors["limit"] = "limit must be a positive integer"
		}
		f.Limit = n
	}

	loc := &models.LocationFilter{
		City:    strings.TrimSpace(q.Get("city")),
		State:   strings.TrimSpace(q.Get("state")),
		Country: strings.TrimSpace(q.Get("country")),
	}
	if !loc.IsEmpty() {
		f.Location = loc
	}

	return f, errors
}

// optionalFloat treats an empty string as "no bound". NaN and infinities
// are rejected.
func optionalFloat(raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", raw, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("parse %q: not a finite number", raw)
	}
	return &v, nil
}
