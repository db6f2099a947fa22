package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// SweepReport counts what a sweep found.
type SweepReport struct {
	Scanned int      `json:"scanned"`
	Orphans []string `json:"orphans"`
	Deleted int      `json:"deleted"`
	Failed  int      `json:"failed"`
}

// OrphanSweeper removes listing media whose document no longer exists. It
// covers what ingestion cleanup can miss, such as a process that died
// between pre-creating a document and uploading its media.
type OrphanSweeper struct {
	store  ListingStore
	blobs  BlobStore
	lister BlobLister
	logger *zap.Logger
}

func NewOrphanSweeper(store ListingStore, blobs BlobStore, logger *zap.Logger) (*OrphanSweeper, error) {
	lister, ok := blobs.(BlobLister)
	if !ok {
		return nil, fmt.Errorf("blob store %T cannot list prefixes", blobs)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrphanSweeper{store: store, blobs: blobs, lister: lister, logger: logger.Named("sweeper")}, nil
}

// Sweep scans every listing prefix. With dryRun set it only reports.
func (s *OrphanSweeper) Sweep(ctx context.Context, dryRun bool) (*SweepReport, error) {
	prefixes, err := s.lister.ListPrefixes(ctx, "listings/")
	if err != nil {
		return nil, fmt.Errorf("list listing prefixes: %w", err)
	}

	report := &SweepReport{Orphans: []string{}}
	for _, prefix := range prefixes {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		id := strings.Trim(strings.TrimPrefix(prefix, "listings/"), "/")
		if id == "" {
			continue
		}
		report.Scanned++

		_, err := s.store.Get(ctx, id)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrListingNotFound) {
			s.logger.Warn("could not check listing, leaving media alone", zap.String("listing_id", id), zap.Error(err))
			report.Failed++
			continue
		}

		report.Orphans = append(report.Orphans, id)
		if dryRun {
			s.logger.Info("orphaned media found", zap.String("listing_id", id))
			continue
		}
		if err := s.blobs.DeletePrefix(ctx, ListingPrefix(id)); err != nil {
			s.logger.Warn("delete orphaned media", zap.String("listing_id", id), zap.Error(err))
			report.Failed++
			continue
		}
		report.Deleted++
		s.logger.Info("deleted orphaned media", zap.String("listing_id", id))
	}
	return report, nil
}
