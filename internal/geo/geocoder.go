package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/bazaar/backend/internal/models"
)

const (
	DefaultNominatimURL    = "https://nominatim.openstreetmap.org"
	DefaultBigDataCloudURL = "https://api.bigdatacloud.net"
)

// Reverser resolves coordinates to a place. An empty place with a nil
// error means the provider knew nothing about the point.
type Reverser interface {
	Reverse(ctx context.Context, lat, lng float64) (models.LocationFilter, error)
}

// Chain asks each provider in turn and returns the first non-empty answer.
type Chain struct {
	providers []Reverser
	logger    *zap.Logger
}

func NewChain(logger *zap.Logger, providers ...Reverser) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{providers: providers, logger: logger.Named("geocoder")}
}

func (c *Chain) Reverse(ctx context.Context, lat, lng float64) (models.LocationFilter, error) {
	var errs []error
	for i, p := range c.providers {
		place, err := p.Reverse(ctx, lat, lng)
		if err != nil {
			c.logger.Warn("reverse geocode failed, trying next provider", zap.Int("provider", i), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		if !place.IsEmpty() {
			return place, nil
		}
	}
	if len(errs) == len(c.providers) && len(errs) > 0 {
		return models.LocationFilter{}, errors.Join(errs...)
	}
	return models.LocationFilter{}, nil
}

// NominatimGeocoder calls an OpenStreetMap Nominatim /reverse endpoint.
type NominatimGeocoder struct {
	BaseURL    string
	UserAgent  string
	HTTPClient *http.Client
}

func NewNominatimGeocoder(baseURL, userAgent string) *NominatimGeocoder {
	if baseURL == "" {
		baseURL = DefaultNominatimURL
	}
	return &NominatimGeocoder{
		BaseURL:    baseURL,
		UserAgent:  userAgent,
		HTTPClient: &http.Client{Timeout: 8 * time.Second},
	}
}

type nominatimResponse struct {
	Address struct {
		City         string `json:"city"`
		Town         string `json:"town"`
		Village      string `json:"village"`
		Municipality string `json:"municipality"`
		State        string `json:"state"`
		Region       string `json:"region"`
		Country      string `json:"country"`
	} `json:"address"`
	Error string `json:"error"`
}

func (g *NominatimGeocoder) Reverse(ctx context.Context, lat, lng float64) (models.LocationFilter, error) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(lng, 'f', 6, 64))
	q.Set("addressdetails", "1")

	var out nominatimResponse
	if err := getJSON(ctx, g.HTTPClient, g.BaseURL+"/reverse?"+q.Encode(), g.UserAgent, &out); err != nil {
		return models.LocationFilter{}, err
	}
	if out.Error != "" {
		return models.LocationFilter{}, nil
	}

	a := out.Address
	return models.LocationFilter{
		City:    firstNonEmpty(a.City, a.Town, a.Village, a.Municipality),
		State:   firstNonEmpty(a.State, a.Region),
		Country: a.Country,
	}, nil
}

// BigDataCloudGeocoder calls the keyless reverse-geocode-client endpoint.
type BigDataCloudGeocoder struct {
	BaseURL    string
	Language   string
	HTTPClient *http.Client
}

func NewBigDataCloudGeocoder(baseURL string) *BigDataCloudGeocoder {
	if baseURL == "" {
		baseURL = DefaultBigDataCloudURL
	}
	return &BigDataCloudGeocoder{
		BaseURL:    baseURL,
		Language:   "en",
		HTTPClient: &http.Client{Timeout: 8 * time.Second},
	}
}

type bigDataCloudResponse struct {
	City                 string `json:"city"`
	Locality             string `json:"locality"`
	PrincipalSubdivision string `json:"principalSubdivision"`
	CountryName          string `json:"countryName"`
}

func (g *BigDataCloudGeocoder) Reverse(ctx context.Context, lat, lng float64) (models.LocationFilter, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', 6, 64))
	q.Set("longitude", strconv.FormatFloat(lng, 'f', 6, 64))
	q.Set("localityLanguage", g.Language)

	var out bigDataCloudResponse
	if err := getJSON(ctx, g.HTTPClient, g.BaseURL+"/data/reverse-geocode-client?"+q.Encode(), "", &out); err != nil {
		return models.LocationFilter{}, err
	}
	return models.LocationFilter{
		City:    firstNonEmpty(out.City, out.Locality),
		State:   out.PrincipalSubdivision,
		Country: out.CountryName,
	}, nil
}

func getJSON(ctx context.Context, client *http.Client, endpoint, userAgent string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("reverse geocode: unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
