package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bazaar/backend/internal/metrics"
	"github.com/bazaar/backend/internal/models"
)

const cleanupTimeout = 30 * time.Second

type IngestionConfig struct {
	MaxImageBytes     int64
	MaxVideoBytes     int64
	AllowedVideoTypes []string
	UploadTimeout     time.Duration
	TotalTimeout      time.Duration
	// UploadConcurrency bounds simultaneous uploads per listing. 1 uploads
	// one file at a time.
	UploadConcurrency int
}

func DefaultIngestionConfig() IngestionConfig {
	return IngestionConfig{
		MaxImageBytes:     10 << 20,
		MaxVideoBytes:     50 << 20,
		AllowedVideoTypes: []string{"video/mp4", "video/quicktime", "video/webm"},
		UploadTimeout:     30 * time.Second,
		TotalTimeout:      3 * time.Minute,
		UploadConcurrency: 1,
	}
}

type IngestionDeps struct {
	Store      ListingStore
	Blobs      BlobStore
	Compressor Compressor
	Moderator  ImageModerator
	Events     EventPublisher
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
}

// IngestionPipeline turns form fields and media into a persisted listing.
// It validates, compresses, pre-creates the document, uploads each file
// under its own deadline, finalizes the document and reads it back.
type IngestionPipeline struct {
	store      ListingStore
	blobs      BlobStore
	compressor Compressor
	moderator  ImageModerator
	events     EventPublisher
	metrics    *metrics.Metrics
	logger     *zap.Logger
	cfg        IngestionConfig
	now        func() time.Time
}

func NewIngestionPipeline(deps IngestionDeps, cfg IngestionConfig) *IngestionPipeline {
	defaults := DefaultIngestionConfig()
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = defaults.MaxImageBytes
	}
	if cfg.MaxVideoBytes <= 0 {
		cfg.MaxVideoBytes = defaults.MaxVideoBytes
	}
	if len(cfg.AllowedVideoTypes) == 0 {
		cfg.AllowedVideoTypes = defaults.AllowedVideoTypes
	}
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = defaults.UploadTimeout
	}
	if cfg.TotalTimeout <= 0 {
		cfg.TotalTimeout = defaults.TotalTimeout
	}
	if cfg.UploadConcurrency <= 0 {
		cfg.UploadConcurrency = 1
	}

	p := &IngestionPipeline{
		store:      deps.Store,
		blobs:      deps.Blobs,
		compressor: deps.Compressor,
		moderator:  deps.Moderator,
		events:     deps.Events,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
	}
	if p.events == nil {
		p.events = nopPublisher{}
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	p.logger = p.logger.Named("ingestion")
	return p
}

type IngestRequest struct {
	UserID  string
	Listing models.CreateListingRequest
	Images  []models.ImageInput
	Video   *models.VideoInput
}

// RejectedImage is an input image dropped before upload. Index refers to
// the submitted order.
type RejectedImage struct {
	Index    int    `json:"index"`
	Filename string `json:"filename,omitempty"`
	Reason   string `json:"reason"`
}

type IngestResult struct {
	ListingID  string          `json:"listing_id"`
	Images     []string        `json:"images"`
	CoverImage string          `json:"cover_image"`
	VideoURL   string          `json:"video_url,omitempty"`
	Rejected   []RejectedImage `json:"rejected,omitempty"`
	Warnings   []string        `json:"warnings,omitempty"`
}

// Validate runs every synchronous check. It returns the images that passed
// the per-image screen, the ones that did not, and a *ValidationError when
// the request as a whole cannot be accepted.
func (p *IngestionPipeline) Validate(req *IngestRequest) ([]models.ImageInput, []RejectedImage, error) {
	req.Listing.Normalize()
	fields := req.Listing.Validate()

	accepted := make([]models.ImageInput, 0, len(req.Images))
	var rejected []RejectedImage
	for i, img := range req.Images {
		if reason := p.screenImage(img); reason != "" {
			rejected = append(rejected, RejectedImage{Index: i, Filename: img.Filename, Reason: reason})
			continue
		}
		accepted = append(accepted, img)
	}

	if cat, ok := models.LookupCategory(req.Listing.Category); ok {
		switch n := len(accepted); {
		case n < cat.MinImages:
			fields["images"] = fmt.Sprintf("%s listings require at least %d images", cat.Name, cat.MinImages)
		case n > cat.MaxImages:
			fields["images"] = fmt.Sprintf("%s listings allow a maximum %d images", cat.Name, cat.MaxImages)
		}
	}

	if req.Video != nil {
		if reason := p.screenVideo(*req.Video); reason != "" {
			fields["video"] = reason
		}
	}

	if len(fields) > 0 {
		for _, r := range rejected {
			fields[fmt.Sprintf("images[%d]", r.Index)] = r.Reason
		}
		return nil, rejected, newValidationError(fields)
	}
	return accepted, rejected, nil
}

func (p *IngestionPipeline) screenImage(img models.ImageInput) string {
	name := img.Filename
	if name == "" {
		name = "Image"
	}
	switch {
	case img.Size() == 0:
		return name + " is empty"
	case img.Size() > p.cfg.MaxImageBytes:
		return fmt.Sprintf("%s exceeds the maximum image size of %s", name, formatBytes(p.cfg.MaxImageBytes))
	case img.ContentType != "" && !strings.HasPrefix(img.ContentType, "image/"):
		return fmt.Sprintf("%s is not an image", name)
	}
	return ""
}

func (p *IngestionPipeline) screenVideo(v models.VideoInput) string {
	if v.Size() > p.cfg.MaxVideoBytes {
		return fmt.Sprintf("Video exceeds the maximum size of %s", formatBytes(p.cfg.MaxVideoBytes))
	}
	for _, t := range p.cfg.AllowedVideoTypes {
		if strings.EqualFold(t, v.ContentType) {
			return ""
		}
	}
	return fmt.Sprintf("Video format %q is not supported", v.ContentType)
}

// Create runs the whole pipeline. Failed uploads of single files are
// dropped and reported; only validation, document writes and the overall
// deadline fail the call. After such a failure the blobs written so far and
// the pre-created document are removed.
func (p *IngestionPipeline) Create(ctx context.Context, req *IngestRequest) (*IngestResult, error) {
	start := p.now()

	images, rejected, err := p.Validate(req)
	if err != nil {
		p.metrics.ObserveIngestion("invalid", time.Since(start))
		return nil, err
	}
	for _, r := range rejected {
		p.metrics.ObserveUpload("image", "rejected")
		p.logger.Warn("image rejected", zap.Int("index", r.Index), zap.String("reason", r.Reason))
	}

	for i := range images {
		images[i] = p.compress(images[i])
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.TotalTimeout)
	defer cancel()

	result := &IngestResult{Rejected: rejected}
	images = p.moderate(ctx, images, acceptedPositions(len(req.Images), rejected), result)

	cat, _ := models.LookupCategory(req.Listing.Category)
	listing := &models.Listing{
		UserID:      req.UserID,
		Title:       req.Listing.Title,
		Description: req.Listing.Description,
		Price:       *req.Listing.Price,
		Currency:    req.Listing.Currency,
		Category:    cat.Name,
		Subcategory: canonicalSubcategory(cat, req.Listing.Subcategory),
		Location:    req.Listing.Location,
		PhoneNumber: req.Listing.PhoneNumber,
		Images:      []string{},
		Status:      models.StatusActive,
		CreatedAt:   start,
		UpdatedAt:   start,
	}

	id, err := p.store.Create(ctx, listing)
	if err != nil {
		p.metrics.ObserveIngestion("failed", time.Since(start))
		p.logger.Error("create listing document", zap.Error(err))
		return nil, fmt.Errorf("%w: create document: %w", ErrIngestionFailed, err)
	}
	result.ListingID = id
	logger := p.logger.With(zap.String("listing_id", id))

	written := &blobTracker{}
	urls, videoURL := p.uploadAll(ctx, logger, id, images, req.Video, written)

	if err := ctx.Err(); err != nil {
		return nil, p.abort(ctx, logger, id, written, start, err)
	}

	cover := models.CoverOf(urls)
	if err := p.store.UpdateMedia(ctx, id, urls, cover, videoURL); err != nil {
		return nil, p.abort(ctx, logger, id, written, start, fmt.Errorf("finalize document: %w", err))
	}
	result.Images = urls
	result.CoverImage = cover
	result.VideoURL = videoURL

	result.Warnings = append(result.Warnings, p.verify(ctx, logger, id, len(images))...)

	p.metrics.ObserveIngestion("created", time.Since(start))
	logger.Info("listing created",
		zap.Int("images", len(urls)),
		zap.Int("attempted", len(images)),
		zap.Bool("video", videoURL != ""))

	event := ListingEvent{
		ListingID:  id,
		UserID:     req.UserID,
		Category:   cat.Name,
		Status:     models.StatusActive,
		Images:     len(urls),
		OccurredAt: p.now(),
	}
	if err := p.events.Publish(ctx, SubjectListingCreated, event); err != nil {
		logger.Warn("publish listing created", zap.Error(err))
	}
	return result, nil
}

func (p *IngestionPipeline) compress(img models.ImageInput) models.ImageInput {
	if p.compressor == nil {
		return img
	}
	out, err := p.compressor.Compress(img)
	if err != nil || len(out.Data) == 0 {
		p.logger.Warn("compression failed, uploading original", zap.String("file", img.Filename), zap.Error(err))
		return img
	}
	return out
}

// moderate drops images the moderator flags. positions maps each image to
// its index in the submitted list.
func (p *IngestionPipeline) moderate(ctx context.Context, images []models.ImageInput, positions []int, result *IngestResult) []models.ImageInput {
	if p.moderator == nil {
		return images
	}
	kept := make([]models.ImageInput, 0, len(images))
	for i, img := range images {
		safe, err := p.moderator.IsSafe(ctx, img)
		if err != nil {
			p.logger.Warn("moderation check failed, keeping image", zap.Int("index", positions[i]), zap.Error(err))
			kept = append(kept, img)
			continue
		}
		if !safe {
			p.metrics.ObserveUpload("image", "rejected")
			result.Rejected = append(result.Rejected, RejectedImage{
				Index:    positions[i],
				Filename: img.Filename,
				Reason:   "Image violates community guidelines",
			})
			continue
		}
		kept = append(kept, img)
	}
	return kept
}

// uploadAll uploads every image and the video, waiting for all attempts.
// URLs keep image order; failed slots are dropped.
func (p *IngestionPipeline) uploadAll(ctx context.Context, logger *zap.Logger, id string, images []models.ImageInput, video *models.VideoInput, written *blobTracker) ([]string, string) {
	slots := make([]string, len(images))
	var videoURL string

	g := new(errgroup.Group)
	g.SetLimit(p.cfg.UploadConcurrency)

	for i, img := range images {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			path := ImagePath(id, i, p.now())
			url, err := p.upload(ctx, "image", path, img.Data, img.ContentType, written)
			if err != nil {
				logger.Warn("image upload failed, skipping", zap.Int("index", i), zap.String("path", path), zap.Error(err))
				return nil
			}
			slots[i] = url
			return nil
		})
	}
	if video != nil {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			path := VideoPath(id, p.now())
			url, err := p.upload(ctx, "video", path, video.Data, video.ContentType, written)
			if err != nil {
				logger.Warn("video upload failed, skipping", zap.String("path", path), zap.Error(err))
				return nil
			}
			videoURL = url
			return nil
		})
	}
	_ = g.Wait()

	urls := make([]string, 0, len(slots))
	for _, u := range slots {
		if u != "" {
			urls = append(urls, u)
		}
	}
	return urls, videoURL
}

func (p *IngestionPipeline) upload(ctx context.Context, kind, path string, data []byte, contentType string, written *blobTracker) (string, error) {
	url, err := putWithTimeout(ctx, p.blobs, p.cfg.UploadTimeout, path, data, contentType)
	switch {
	case err == nil:
		written.add(path)
		p.metrics.ObserveUpload(kind, "ok")
	case errors.Is(err, ErrUploadTimeout):
		p.metrics.ObserveUpload(kind, "timeout")
	default:
		p.metrics.ObserveUpload(kind, "error")
	}
	return url, err
}

// putWithTimeout bounds a single blob write. A write that outlives its
// deadline returns ErrUploadTimeout; if it later completes anyway the
// object is deleted so it does not linger unreferenced.
func putWithTimeout(parent context.Context, blobs BlobStore, timeout time.Duration, path string, data []byte, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	type putResult struct {
		url string
		err error
	}
	done := make(chan putResult, 1)
	go func() {
		url, err := blobs.Put(ctx, path, data, contentType)
		done <- putResult{url: url, err: err}
	}()

	timedOut := func() bool {
		return errors.Is(ctx.Err(), context.DeadlineExceeded) && parent.Err() == nil
	}

	select {
	case r := <-done:
		if r.err != nil && timedOut() {
			return "", fmt.Errorf("%w after %s", ErrUploadTimeout, timeout)
		}
		return r.url, r.err
	case <-ctx.Done():
		go func() {
			if r := <-done; r.err == nil {
				_ = blobs.Delete(context.Background(), path)
			}
		}()
		if timedOut() {
			return "", fmt.Errorf("%w after %s", ErrUploadTimeout, timeout)
		}
		return "", ctx.Err()
	}
}

func (p *IngestionPipeline) verify(ctx context.Context, logger *zap.Logger, id string, attempted int) []string {
	persisted, err := p.store.Get(ctx, id)
	if err != nil {
		msg := "could not verify saved listing"
		logger.Warn(msg, zap.Error(err))
		return []string{msg}
	}
	if got := len(persisted.Images); got != attempted {
		msg := fmt.Sprintf("%d of %d images were saved", got, attempted)
		logger.Warn("persisted image count differs from attempted",
			zap.Int("attempted", attempted),
			zap.Int("persisted", got))
		return []string{msg}
	}
	return nil
}

// abort removes what the failed attempt left behind and returns the error
// reported to the caller.
func (p *IngestionPipeline) abort(ctx context.Context, logger *zap.Logger, id string, written *blobTracker, start time.Time, cause error) error {
	p.metrics.ObserveIngestion("failed", time.Since(start))
	logger.Error("listing creation failed, cleaning up", zap.Error(cause))

	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	for _, path := range written.list() {
		if err := p.blobs.Delete(cleanupCtx, path); err != nil {
			logger.Warn("cleanup blob", zap.String("path", path), zap.Error(err))
		}
	}
	if err := p.store.Delete(cleanupCtx, id); err != nil && !errors.Is(err, ErrListingNotFound) {
		logger.Warn("cleanup listing document", zap.Error(err))
	}
	return fmt.Errorf("%w: %w", ErrIngestionFailed, cause)
}

type blobTracker struct {
	mu    sync.Mutex
	paths []string
}

func (t *blobTracker) add(path string) {
	t.mu.Lock()
	t.paths = append(t.paths, path)
	t.mu.Unlock()
}

func (t *blobTracker) list() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.paths...)
}

// ListingPrefix is the blob "directory" holding a listing's media.
func ListingPrefix(listingID string) string {
	return "listings/" + listingID + "/"
}

func ImagePath(listingID string, index int, ts time.Time) string {
	return fmt.Sprintf("listings/%s/image-%d-%d", listingID, index, ts.UnixMilli())
}

func VideoPath(listingID string, ts time.Time) string {
	return fmt.Sprintf("listings/%s/video-%d", listingID, ts.UnixMilli())
}

func acceptedPositions(total int, rejected []RejectedImage) []int {
	skip := make(map[int]bool, len(rejected))
	for _, r := range rejected {
		skip[r.Index] = true
	}
	out := make([]int, 0, total-len(rejected))
	for i := 0; i < total; i++ {
		if !skip[i] {
			out = append(out, i)
		}
	}
	return out
}

func canonicalSubcategory(cat models.Category, sub string) string {
	for _, s := range cat.Subcategories {
		if strings.EqualFold(s, sub) {
			return s
		}
	}
	return sub
}

func formatBytes(n int64) string {
	const kb, mb = 1 << 10, 1 << 20
	switch {
	case n >= mb && n%mb == 0:
		return fmt.Sprintf("%d MB", n/mb)
	case n >= mb:
		return fmt.Sprintf("%.1f MB", float64(n)/mb)
	case n >= kb:
		return fmt.Sprintf("%d KB", n/kb)
	}
	return fmt.Sprintf("%d bytes", n)
}
