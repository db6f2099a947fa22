package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/bazaar/backend/internal/bootstrap"
	"github.com/bazaar/backend/internal/config"
	"github.com/bazaar/backend/internal/handlers"
	"github.com/bazaar/backend/internal/logging"
	"github.com/bazaar/backend/internal/metrics"
	appMiddleware "github.com/bazaar/backend/internal/middleware"
	"github.com/bazaar/backend/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(cfg.MetricsNS)

	b, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open backends: %w", err)
	}
	defer b.Close(logger)

	ingest := services.NewIngestionPipeline(services.IngestionDeps{
		Store:      b.Listings,
		Blobs:      b.Blobs,
		Compressor: services.NewImagingCompressor(cfg.CompressMaxWidth, cfg.CompressQuality),
		Moderator:  b.Moderator,
		Events:     b.Events,
		Metrics:    m,
		Logger:     logger,
	}, services.IngestionConfig{
		MaxImageBytes:     cfg.MaxImageBytes,
		MaxVideoBytes:     cfg.MaxVideoBytes,
		AllowedVideoTypes: cfg.AllowedVideoTypes,
		UploadTimeout:     cfg.UploadTimeout,
		TotalTimeout:      cfg.TotalTimeout,
		UploadConcurrency: cfg.UploadConcurrency,
	})
	query := services.NewQueryPipeline(b.Listings, m, logger, cfg.SearchPageSize, cfg.SearchMaxPageSize)
	listingService := services.NewListingService(b.Listings, b.Blobs, b.Favorites, b.Events, logger)
	favoriteService := services.NewFavoriteService(b.Favorites, b.Listings, logger)
	preferenceService := services.NewPreferenceService(b.Cache, b.Locations, b.Geocoder, logger)

	listingHandler := handlers.NewListingHandler(ingest, query, listingService, logger, cfg.MaxUploadSizeMB)
	favoriteHandler := handlers.NewFavoriteHandler(favoriteService, logger)
	preferenceHandler := handlers.NewPreferenceHandler(preferenceService, logger)

	// A nil *auth.Client must not reach FirebaseAuth as a non-nil interface.
	authenticate := appMiddleware.FirebaseAuth(nil)
	switch {
	case cfg.AuthMode == "jwt":
		authenticate = appMiddleware.JWTAuth(cfg.JWTSecret)
	case b.Verifier != nil:
		authenticate = appMiddleware.FirebaseAuth(b.Verifier)
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		Listings:     listingHandler,
		Favorites:    favoriteHandler,
		Preferences:  preferenceHandler,
		Authenticate: authenticate,
		Metrics:      m,
		Logger:       logger,
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("bazaar API server starting",
			zap.String("addr", cfg.ServerAddress),
			zap.String("document_store", cfg.DocumentStore),
			zap.String("blob_store", cfg.BlobStore),
			zap.String("preference_cache", cfg.PreferenceCache),
			zap.Int("upload_concurrency", cfg.UploadConcurrency),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	// Uploads in flight get as long as a whole ingestion may take.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.TotalTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
