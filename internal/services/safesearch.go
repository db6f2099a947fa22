package services

import (
	"context"
	"encoding/base64"
	"fmt"

	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"

	"github.com/bazaar/backend/internal/models"
)

type SafeSearchResult struct {
	Adult    string
	Violence string
	Racy     string
}

func isLikelyOrHigher(l string) bool {
	return l == "LIKELY" || l == "VERY_LIKELY"
}

func (r *SafeSearchResult) IsUnsafe() bool {
	return isLikelyOrHigher(r.Adult) || isLikelyOrHigher(r.Violence) || isLikelyOrHigher(r.Racy)
}

// SafeSearchModerator screens listing images with Cloud Vision
// SAFE_SEARCH_DETECTION before they are uploaded.
type SafeSearchModerator struct {
	svc *vision.Service
}

// NewSafeSearchModerator uses Application Default Credentials unless opts
// say otherwise.
func NewSafeSearchModerator(ctx context.Context, opts ...option.ClientOption) (*SafeSearchModerator, error) {
	opts = append([]option.ClientOption{option.WithScopes(vision.CloudPlatformScope)}, opts...)
	svc, err := vision.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	return &SafeSearchModerator{svc: svc}, nil
}

func (m *SafeSearchModerator) IsSafe(ctx context.Context, img models.ImageInput) (bool, error) {
	res, err := m.Detect(ctx, img.Data)
	if err != nil {
		return false, err
	}
	return !res.IsUnsafe(), nil
}

func (m *SafeSearchModerator) Detect(ctx context.Context, data []byte) (*SafeSearchResult, error) {
	req := &vision.AnnotateImageRequest{
		Image:    &vision.Image{Content: base64.StdEncoding.EncodeToString(data)},
		Features: []*vision.Feature{{Type: "SAFE_SEARCH_DETECTION"}},
	}
	resp, err := m.svc.Images.Annotate(&vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{req},
	}).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	if len(resp.Responses) == 0 {
		return &SafeSearchResult{}, nil
	}
	r := resp.Responses[0]
	if r.Error != nil {
		return nil, fmt.Errorf("safesearch: %s", r.Error.Message)
	}
	ss := r.SafeSearchAnnotation
	if ss == nil {
		return &SafeSearchResult{}, nil
	}
	return &SafeSearchResult{Adult: ss.Adult, Violence: ss.Violence, Racy: ss.Racy}, nil
}
