package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp keeps a developer's .env or config.yaml out of the test.
func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ServerAddress)
	assert.Equal(t, "memory", cfg.DocumentStore)
	assert.Equal(t, "inline", cfg.BlobStore)
	assert.Equal(t, 30*time.Second, cfg.UploadTimeout)
	assert.Equal(t, 3*time.Minute, cfg.TotalTimeout)
	assert.Equal(t, 1, cfg.UploadConcurrency)
	assert.Equal(t, int64(10<<20), cfg.MaxImageBytes)
	assert.Equal(t, []string{"video/mp4", "video/quicktime", "video/webm"}, cfg.AllowedVideoTypes)
	assert.True(t, cfg.UsesFirebase())
}

func TestLoadFromEnv(t *testing.T) {
	chdirTemp(t)
	t.Setenv("AUTH_MODE", "jwt")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("UPLOAD_TIMEOUT", "5s")
	t.Setenv("UPLOAD_CONCURRENCY", "3")
	t.Setenv("ALLOWED_VIDEO_TYPES", "video/mp4, video/webm")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "jwt", cfg.AuthMode)
	assert.Equal(t, 5*time.Second, cfg.UploadTimeout)
	assert.Equal(t, 3, cfg.UploadConcurrency)
	assert.Equal(t, []string{"video/mp4", "video/webm"}, cfg.AllowedVideoTypes)
	assert.False(t, cfg.UsesFirebase())
}

func TestLoadFromConfigFile(t *testing.T) {
	chdirTemp(t)
	require.NoError(t, os.WriteFile("config.yaml", []byte("SEARCH_PAGE_SIZE: 20\nLOG_FORMAT: console\n"), 0o644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.SearchPageSize)
	assert.Equal(t, "console", cfg.LogFormat)
}

func TestValidate(t *testing.T) {
	chdirTemp(t)
	t.Setenv("DOCUMENT_STORE", "mongo")
	t.Setenv("BLOB_STORE", "minio")
	t.Setenv("AUTH_MODE", "jwt")
	t.Setenv("TOTAL_TIMEOUT", "1s")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MONGO_URI")
	assert.Contains(t, err.Error(), "MINIO_ACCESS_KEY")
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "TOTAL_TIMEOUT")
}
