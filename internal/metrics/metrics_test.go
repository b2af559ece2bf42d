package metrics_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/property-api/internal/metrics"
)

func TestRegistryExposesCollectors(t *testing.T) {
	reg := metrics.InitRegistry()
	metrics.ObserveNormalized("fallback", "default", false)
	metrics.ObserveJob("coordsync", errors.New("boom"))

	rr := httptest.NewRecorder()
	metrics.Handler(reg).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body, _ := io.ReadAll(rr.Body)
	assert.Contains(t, string(body), "property_normalized_records_total")
	assert.Contains(t, string(body), `property_job_runs_total{job="coordsync",outcome="error"}`)
}

func TestMiddlewareCountsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(metrics.Middleware)
	r.Get("/v1/properties/{id}", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusAccepted) })

	c := metrics.HTTPRequests.WithLabelValues("/v1/properties/{id}", http.MethodGet, "202")
	before := testutil.ToFloat64(c)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/properties/abc", nil))
	assert.Equal(t, before+1, testutil.ToFloat64(c))
}
