package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bazaar/backend/internal/models"
)

const DefaultLanguage = "en"

var SupportedLanguages = []string{"en", "ar", "fr"}

// PreferenceService keeps a user's browsing location and language. The
// location is written to both the cache and the location store; the
// language only lives in the cache.
type PreferenceService struct {
	cache     PreferenceCache
	locations LocationStore
	geocoder  Geocoder
	logger    *zap.Logger
	now       func() time.Time
}

func NewPreferenceService(cache PreferenceCache, locations LocationStore, geocoder Geocoder, logger *zap.Logger) *PreferenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PreferenceService{
		cache:     cache,
		locations: locations,
		geocoder:  geocoder,
		logger:    logger.Named("preferences"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func locationKey(userID string) string { return "location:" + userID }
func languageKey(userID string) string { return "language:" + userID }

func (s *PreferenceService) GetLocation(ctx context.Context, userID string) (*models.UserLocation, error) {
	raw, err := s.cache.Get(ctx, locationKey(userID))
	switch {
	case err == nil:
		var loc models.UserLocation
		if jsonErr := json.Unmarshal(raw, &loc); jsonErr == nil {
			return &loc, nil
		}
		s.logger.Warn("discarding unreadable cached location", zap.String("user_id", userID))
	case !errors.Is(err, ErrCacheMiss):
		s.logger.Warn("read cached location", zap.String("user_id", userID), zap.Error(err))
	}

	loc, err := s.locations.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.cacheLocation(ctx, loc)
	return loc, nil
}

func (s *PreferenceService) SetLocation(ctx context.Context, userID string, req *models.SetLocationRequest) (*models.UserLocation, error) {
	if fields := req.Validate(); len(fields) > 0 {
		return nil, newValidationError(fields)
	}

	loc := &models.UserLocation{
		UserID:    userID,
		City:      strings.TrimSpace(req.City),
		State:     strings.TrimSpace(req.State),
		Country:   strings.TrimSpace(req.Country),
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		UpdatedAt: s.now(),
	}
	if err := s.locations.Put(ctx, loc); err != nil {
		return nil, err
	}
	s.cacheLocation(ctx, loc)
	return loc, nil
}

// ResolveLocation reverse geocodes coordinates and saves the place found.
func (s *PreferenceService) ResolveLocation(ctx context.Context, userID string, lat, lng float64) (*models.UserLocation, error) {
	if s.geocoder == nil {
		return nil, ErrGeocoderUnavailable
	}
	place, err := s.geocoder.Reverse(ctx, lat, lng)
	if err != nil {
		return nil, err
	}
	if place.IsEmpty() {
		return nil, ErrLocationUnresolved
	}
	return s.SetLocation(ctx, userID, &models.SetLocationRequest{
		City:      place.City,
		State:     place.State,
		Country:   place.Country,
		Latitude:  &lat,
		Longitude: &lng,
	})
}

func (s *PreferenceService) cacheLocation(ctx context.Context, loc *models.UserLocation) {
	raw, err := json.Marshal(loc)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, locationKey(loc.UserID), raw); err != nil {
		s.logger.Warn("cache location", zap.String("user_id", loc.UserID), zap.Error(err))
	}
}

// GetLanguage falls back to DefaultLanguage when nothing usable is cached.
func (s *PreferenceService) GetLanguage(ctx context.Context, userID string) string {
	raw, err := s.cache.Get(ctx, languageKey(userID))
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			s.logger.Warn("read cached language", zap.String("user_id", userID), zap.Error(err))
		}
		return DefaultLanguage
	}
	if lang, ok := normalizeLanguage(string(raw)); ok {
		return lang
	}
	return DefaultLanguage
}

func (s *PreferenceService) SetLanguage(ctx context.Context, userID, language string) (string, error) {
	lang, ok := normalizeLanguage(language)
	if !ok {
		return "", ErrUnsupportedLanguage
	}
	if err := s.cache.Set(ctx, languageKey(userID), []byte(lang)); err != nil {
		return "", err
	}
	return lang, nil
}

func normalizeLanguage(language string) (string, bool) {
	language = strings.ToLower(strings.TrimSpace(language))
	for _, l := range SupportedLanguages {
		if l == language {
			return l, true
		}
	}
	return "", false
}
