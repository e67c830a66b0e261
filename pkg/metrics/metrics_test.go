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

func TestMetrics_ObserveImport(t *testing.T) {
	m := New()

	m.ObserveImport("delimited", "success", 5*time.Millisecond, 3, 1)
	m.ObserveImport("delimited", "empty_result", time.Millisecond, 0, 0)
	m.ObserveImport("spreadsheet", "success", time.Millisecond, 1, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.importsTotal.WithLabelValues("delimited", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.importsTotal.WithLabelValues("delimited", "empty_result")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.importsTotal.WithLabelValues("spreadsheet", "success")))
}

func TestMetrics_ObserveBackend(t *testing.T) {
	m := New()

	m.ObserveBackend(http.MethodGet, 200, time.Millisecond)
	m.ObserveBackend(http.MethodGet, 204, time.Millisecond)
	m.ObserveBackend(http.MethodDelete, 503, time.Millisecond)
	m.ObserveBackend(http.MethodGet, 0, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.backendRequests.WithLabelValues("GET", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.backendRequests.WithLabelValues("DELETE", "5xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.backendRequests.WithLabelValues("GET", "error")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveImport("delimited", "success", time.Millisecond, 2, 0)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "batchdesk_import_files_total"))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveImport("delimited", "success", time.Millisecond, 1, 0)
		m.ObserveBackend(http.MethodGet, 200, time.Millisecond)
	})
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
