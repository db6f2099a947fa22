package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	ServerAddress   string `mapstructure:"SERVER_ADDRESS"`
	LogLevel        string `mapstructure:"LOG_LEVEL"`
	LogFormat       string `mapstructure:"LOG_FORMAT"`
	MetricsNS       string `mapstructure:"METRICS_NAMESPACE"`
	MaxUploadSizeMB int64  `mapstructure:"MAX_UPLOAD_SIZE_MB"`

	// Backends: memory|mongo|firestore, inline|firebase|minio, file|redis.
	DocumentStore   string `mapstructure:"DOCUMENT_STORE"`
	BlobStore       string `mapstructure:"BLOB_STORE"`
	PreferenceCache string `mapstructure:"PREFERENCE_CACHE"`

	// AuthMode is firebase or jwt.
	AuthMode  string `mapstructure:"AUTH_MODE"`
	JWTSecret string `mapstructure:"JWT_SECRET"`

	FirebaseProjectID       string `mapstructure:"FIREBASE_PROJECT_ID"`
	FirebaseCredentialsFile string `mapstructure:"FIREBASE_CREDENTIALS_FILE"`
	FirebaseStorageBucket   string `mapstructure:"FIREBASE_STORAGE_BUCKET"`

	MongoURI      string `mapstructure:"MONGO_URI"`
	MongoDatabase string `mapstructure:"MONGO_DATABASE"`

	MinioEndpoint  string `mapstructure:"MINIO_ENDPOINT"`
	MinioAccessKey string `mapstructure:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `mapstructure:"MINIO_SECRET_KEY"`
	MinioBucket    string `mapstructure:"MINIO_BUCKET"`
	MinioUseSSL    bool   `mapstructure:"MINIO_USE_SSL"`
	MinioPublicURL string `mapstructure:"MINIO_PUBLIC_URL"`
	InlineMaxBytes int    `mapstructure:"INLINE_MAX_BYTES"`

	RedisAddr     string        `mapstructure:"REDIS_ADDR"`
	RedisPassword string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int           `mapstructure:"REDIS_DB"`
	PreferenceTTL time.Duration `mapstructure:"PREFERENCE_TTL"`
	DataDir       string        `mapstructure:"DATA_DIR"`

	NATSURL string `mapstructure:"NATS_URL"`

	ModerationEnabled bool `mapstructure:"MODERATION_ENABLED"`

	GeocoderURL         string `mapstructure:"GEOCODER_URL"`
	GeocoderFallbackURL string `mapstructure:"GEOCODER_FALLBACK_URL"`
	GeocoderUserAgent   string `mapstructure:"GEOCODER_USER_AGENT"`

	MaxImageBytes     int64         `mapstructure:"MAX_IMAGE_BYTES"`
	MaxVideoBytes     int64         `mapstructure:"MAX_VIDEO_BYTES"`
	AllowedVideoTypes []string      `mapstructure:"ALLOWED_VIDEO_TYPES"`
	CompressMaxWidth  int           `mapstructure:"COMPRESS_MAX_WIDTH"`
	CompressQuality   int           `mapstructure:"COMPRESS_QUALITY"`
	UploadTimeout     time.Duration `mapstructure:"UPLOAD_TIMEOUT"`
	TotalTimeout      time.Duration `mapstructure:"TOTAL_TIMEOUT"`
	UploadConcurrency int           `mapstructure:"UPLOAD_CONCURRENCY"`

	SearchPageSize    int `mapstructure:"SEARCH_PAGE_SIZE"`
	SearchMaxPageSize int `mapstructure:"SEARCH_MAX_PAGE_SIZE"`
}

var defaults = map[string]interface{}{
	"SERVER_ADDRESS":     ":8080",
	"LOG_LEVEL":          "info",
	"LOG_FORMAT":         "json",
	"METRICS_NAMESPACE":  "bazaar",
	"MAX_UPLOAD_SIZE_MB": 120,

	"DOCUMENT_STORE":   "memory",
	"BLOB_STORE":       "inline",
	"PREFERENCE_CACHE": "file",

	"AUTH_MODE":  "firebase",
	"JWT_SECRET": "",

	"FIREBASE_PROJECT_ID":       "",
	"FIREBASE_CREDENTIALS_FILE": "",
	"FIREBASE_STORAGE_BUCKET":   "",

	"MONGO_URI":      "",
	"MONGO_DATABASE": "bazaar",

	"MINIO_ENDPOINT":   "localhost:9000",
	"MINIO_ACCESS_KEY": "",
	"MINIO_SECRET_KEY": "",
	"MINIO_BUCKET":     "listings",
	"MINIO_USE_SSL":    false,
	"MINIO_PUBLIC_URL": "",
	"INLINE_MAX_BYTES": 700 << 10,

	"REDIS_ADDR":     "localhost:6379",
	"REDIS_PASSWORD": "",
	"REDIS_DB":       0,
	"PREFERENCE_TTL": "0s",
	"DATA_DIR":       "./data",

	"NATS_URL": "",

	"MODERATION_ENABLED": false,

	"GEOCODER_URL":          "https://nominatim.openstreetmap.org",
	"GEOCODER_FALLBACK_URL": "https://api.bigdatacloud.net",
	"GEOCODER_USER_AGENT":   "bazaar-backend/1.0",

	"MAX_IMAGE_BYTES":      10 << 20,
	"MAX_VIDEO_BYTES":      50 << 20,
	"ALLOWED_VIDEO_TYPES":  "video/mp4,video/quicktime,video/webm",
	"COMPRESS_MAX_WIDTH":   1280,
	"COMPRESS_QUALITY":     70,
	"UPLOAD_TIMEOUT":       "30s",
	"TOTAL_TIMEOUT":        "3m",
	"UPLOAD_CONCURRENCY":   1,
	"SEARCH_PAGE_SIZE":     50,
	"SEARCH_MAX_PAGE_SIZE": 100,
}

// Load reads .env (if present), then an optional config.yaml in the working
// directory, then the environment. Later sources win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.AllowedVideoTypes = splitList(cfg.AllowedVideoTypes)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that every selected backend has what it needs.
func (c *Config) Validate() error {
	var errs []error

	switch c.DocumentStore {
	case "memory", "firestore":
	case "mongo":
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required when DOCUMENT_STORE=mongo"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown DOCUMENT_STORE %q", c.DocumentStore))
	}

	switch c.BlobStore {
	case "inline":
	case "firebase":
		if c.FirebaseStorageBucket == "" {
			errs = append(errs, errors.New("FIREBASE_STORAGE_BUCKET is required when BLOB_STORE=firebase"))
		}
	case "minio":
		if c.MinioAccessKey == "" || c.MinioSecretKey == "" {
			errs = append(errs, errors.New("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required when BLOB_STORE=minio"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown BLOB_STORE %q", c.BlobStore))
	}

	switch c.PreferenceCache {
	case "file", "redis":
	default:
		errs = append(errs, fmt.Errorf("unknown PREFERENCE_CACHE %q", c.PreferenceCache))
	}

	switch c.AuthMode {
	case "firebase":
	case "jwt":
		if c.JWTSecret == "" {
			errs = append(errs, errors.New("JWT_SECRET is required when AUTH_MODE=jwt"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown AUTH_MODE %q", c.AuthMode))
	}

	if c.UploadTimeout <= 0 || c.TotalTimeout <= 0 {
		errs = append(errs, errors.New("UPLOAD_TIMEOUT and TOTAL_TIMEOUT must be positive"))
	} else if c.TotalTimeout < c.UploadTimeout {
		errs = append(errs, errors.New("TOTAL_TIMEOUT must not be shorter than UPLOAD_TIMEOUT"))
	}
	if c.UploadConcurrency < 1 {
		errs = append(errs, errors.New("UPLOAD_CONCURRENCY must be at least 1"))
	}

	return errors.Join(errs...)
}

// UsesFirebase reports whether any selected backend needs the Firebase app.
func (c *Config) UsesFirebase() bool {
	return c.AuthMode == "firebase" || c.DocumentStore == "firestore" || c.BlobStore == "firebase"
}

func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
