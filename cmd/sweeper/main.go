// Command sweeper deletes listing media left behind in blob storage after
// its document is gone. It runs once and exits.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/bazaar/backend/internal/bootstrap"
	"github.com/bazaar/backend/internal/config"
	"github.com/bazaar/backend/internal/logging"
	"github.com/bazaar/backend/internal/services"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "report orphaned media without deleting it")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("open backends", zap.Error(err))
	}
	defer b.Close(logger)

	sweeper, err := services.NewOrphanSweeper(b.Listings, b.Blobs, logger)
	if err != nil {
		logger.Fatal("sweeper unavailable for this blob store", zap.String("blob_store", cfg.BlobStore), zap.Error(err))
	}

	report, err := sweeper.Sweep(ctx, *dryRun)
	if err != nil {
		logger.Error("sweep stopped early", zap.Error(err))
	}
	if report != nil {
		logger.Info("sweep finished",
			zap.Bool("dry_run", *dryRun),
			zap.Int("scanned", report.Scanned),
			zap.Int("orphans", len(report.Orphans)),
			zap.Int("deleted", report.Deleted),
			zap.Int("failed", report.Failed),
		)
	}
}
