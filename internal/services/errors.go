package services

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrListingNotFound         = errors.New("listing not found")
	ErrUnauthorized            = errors.New("unauthorized")
	ErrInvalidStatusTransition = errors.New("listing already has that status")
	ErrFavoriteNotFound        = errors.New("favorite not found")
	ErrAlreadyFavorited        = errors.New("listing already favorited")
	ErrLocationNotFound        = errors.New("location not set")
	ErrLocationUnresolved      = errors.New("coordinates could not be resolved to a place")
	ErrGeocoderUnavailable     = errors.New("reverse geocoding is not configured")
	ErrUnsupportedLanguage     = errors.New("unsupported language")
	ErrCacheMiss               = errors.New("cache miss")

	// ErrUploadTimeout marks an upload that did not finish within its own
	// deadline. It is distinct from an error returned by the blob store.
	ErrUploadTimeout = errors.New("upload timed out")

	// ErrIngestionFailed wraps every operation-level failure of listing
	// creation: a document write error or the overall deadline tripping.
	ErrIngestionFailed = errors.New("listing ingestion failed")
)

// ValidationError carries user-facing messages keyed by field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func newValidationError(fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}
