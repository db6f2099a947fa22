package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveUpload("image", "ok")
		m.ObserveIngestion("created", time.Second)
		m.ObserveSearch("ok", 3)
		m.ObserveHTTP(http.MethodGet, "/api/listings", http.StatusOK, time.Millisecond)
	})
}

func TestCountersAndHandler(t *testing.T) {
	m := New("bazaar")

	m.ObserveUpload("image", "ok")
	m.ObserveUpload("image", "ok")
	m.ObserveUpload("image", "timeout")
	m.ObserveIngestion("created", 2*time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.uploads.WithLabelValues("image", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.uploads.WithLabelValues("image", "timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ingestions.WithLabelValues("created")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "bazaar_media_uploads_total"))
}
