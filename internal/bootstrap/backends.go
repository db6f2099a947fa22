// Package bootstrap opens the backends selected by configuration.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/bazaar/backend/internal/config"
	"github.com/bazaar/backend/internal/events"
	"github.com/bazaar/backend/internal/geo"
	"github.com/bazaar/backend/internal/services"
	"github.com/bazaar/backend/internal/storage"
)

// Backends holds the adapters chosen from configuration plus whatever has to
// be closed on shutdown. Moderator, Geocoder and Verifier may be nil.
type Backends struct {
	Listings  services.ListingStore
	Favorites services.FavoriteStore
	Locations services.LocationStore
	Blobs     services.BlobStore
	Cache     services.PreferenceCache
	Events    services.EventPublisher
	Moderator services.ImageModerator
	Geocoder  services.Geocoder
	Verifier  *auth.Client

	closers []func() error
}

func (b *Backends) Close(logger *zap.Logger) {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			logger.Warn("close backend", zap.Error(err))
		}
	}
}

func firebaseOptions(cfg *config.Config) []option.ClientOption {
	if cfg.FirebaseCredentialsFile == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(cfg.FirebaseCredentialsFile)}
}

// Open connects every backend cfg selects. On error, anything already
// opened is closed again.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Backends, error) {
	b := &Backends{}

	var app *firebase.App
	if cfg.UsesFirebase() {
		var err error
		app, err = firebase.NewApp(ctx, &firebase.Config{
			ProjectID:     cfg.FirebaseProjectID,
			StorageBucket: cfg.FirebaseStorageBucket,
		}, firebaseOptions(cfg)...)
		if err != nil {
			return nil, fmt.Errorf("firebase app: %w", err)
		}
	}

	if cfg.AuthMode == "firebase" {
		client, err := app.Auth(ctx)
		if err != nil {
			logger.Warn("firebase auth unavailable, authenticated routes will answer 503", zap.Error(err))
		} else {
			b.Verifier = client
		}
	}

	if err := b.openDocumentStore(ctx, cfg, app, logger); err != nil {
		b.Close(logger)
		return nil, err
	}
	if err := b.openBlobStore(ctx, cfg, app, logger); err != nil {
		b.Close(logger)
		return nil, err
	}
	if err := b.openPreferenceCache(ctx, cfg); err != nil {
		b.Close(logger)
		return nil, err
	}

	if cfg.NATSURL != "" {
		pub, err := events.NewNATSPublisher(cfg.NATSURL, logger)
		if err != nil {
			b.Close(logger)
			return nil, err
		}
		b.Events = pub
		b.closers = append(b.closers, pub.Close)
	} else {
		b.Events = events.NewLogPublisher(logger)
	}

	if cfg.ModerationEnabled {
		mod, err := services.NewSafeSearchModerator(ctx, firebaseOptions(cfg)...)
		if err != nil {
			logger.Warn("image moderation disabled", zap.Error(err))
		} else {
			b.Moderator = mod
		}
	}

	var providers []geo.Reverser
	if cfg.GeocoderURL != "" {
		providers = append(providers, geo.NewNominatimGeocoder(cfg.GeocoderURL, cfg.GeocoderUserAgent))
	}
	if cfg.GeocoderFallbackURL != "" {
		providers = append(providers, geo.NewBigDataCloudGeocoder(cfg.GeocoderFallbackURL))
	}
	if len(providers) > 0 {
		b.Geocoder = geo.NewChain(logger, providers...)
	}

	return b, nil
}

func (b *Backends) openDocumentStore(ctx context.Context, cfg *config.Config, app *firebase.App, logger *zap.Logger) error {
	switch cfg.DocumentStore {
	case "mongo":
		db, err := storage.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return err
		}
		b.closers = append(b.closers, func() error { return disconnectMongo(db) })
		b.Listings = storage.NewMongoListingStore(ctx, db)
		b.Favorites = storage.NewMongoFavoriteStore(ctx, db)
		b.Locations = storage.NewMongoLocationStore(db)
	case "firestore":
		client, err := app.Firestore(ctx)
		if err != nil {
			return fmt.Errorf("firestore client: %w", err)
		}
		b.closers = append(b.closers, client.Close)
		b.Listings = storage.NewFirestoreListingStore(client)
		b.Favorites = storage.NewFirestoreFavoriteStore(client)
		b.Locations = storage.NewFirestoreLocationStore(client)
	default:
		logger.Warn("using in-memory document store, data is lost on restart")
		b.Listings = storage.NewMemoryListingStore()
		b.Favorites = storage.NewMemoryFavoriteStore()
		b.Locations = storage.NewMemoryLocationStore()
	}
	return nil
}

func (b *Backends) openBlobStore(ctx context.Context, cfg *config.Config, app *firebase.App, logger *zap.Logger) error {
	switch cfg.BlobStore {
	case "firebase":
		client, err := app.Storage(ctx)
		if err != nil {
			return fmt.Errorf("firebase storage client: %w", err)
		}
		bucket, err := client.Bucket(cfg.FirebaseStorageBucket)
		if err != nil {
			return fmt.Errorf("firebase storage bucket: %w", err)
		}
		b.Blobs = storage.NewFirebaseBlobStore(bucket, cfg.FirebaseStorageBucket)
	case "minio":
		store, err := storage.NewMinioBlobStore(ctx, storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			PublicURL: cfg.MinioPublicURL,
		}, logger)
		if err != nil {
			return err
		}
		b.Blobs = store
	default:
		b.Blobs = storage.NewInlineBlobStore(cfg.InlineMaxBytes)
	}
	return nil
}

func (b *Backends) openPreferenceCache(ctx context.Context, cfg *config.Config) error {
	if cfg.PreferenceCache == "redis" {
		cache, err := storage.NewRedisPreferenceCache(ctx, &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, cfg.PreferenceTTL)
		if err != nil {
			return err
		}
		b.Cache = cache
		b.closers = append(b.closers, cache.Close)
		return nil
	}

	cache, err := storage.NewFilePreferenceCache(cfg.DataDir)
	if err != nil {
		return err
	}
	b.Cache = cache
	return nil
}

func disconnectMongo(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return db.Client().Disconnect(ctx)
}
