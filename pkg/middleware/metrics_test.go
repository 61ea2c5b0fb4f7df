package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func metricsRouter(service string) *chi.Mux {
	r := chi.NewRouter()
	r.Use(PrometheusMetrics(service))
	r.Get("/api/v1/cart", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Delete("/api/v1/cart/lines/{key}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Post("/api/v1/cart/refresh", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{}"))
	})
	return r
}

func TestPrometheusMetrics_CountsByRoutePattern(t *testing.T) {
	r := metricsRouter("metrics-pattern")

	for _, key := range []string{"a", "b", "c"} {
		req := httptest.NewRequest(http.MethodDelete, "/api/v1/cart/lines/"+key, nil)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("metrics-pattern", http.MethodDelete, "/api/v1/cart/lines/{key}", "404"))
	assert.Equal(t, float64(3), got)
}

func TestPrometheusMetrics_ImplicitOK(t *testing.T) {
	r := metricsRouter("metrics-implicit")
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/cart/refresh", nil))

	got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("metrics-implicit", http.MethodPost, "/api/v1/cart/refresh", "200"))
	assert.Equal(t, float64(1), got)
}

func TestPrometheusMetrics_UnmatchedRoute(t *testing.T) {
	r := metricsRouter("metrics-unmatched")
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope/123", nil))

	got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("metrics-unmatched", http.MethodGet, "unmatched", "404"))
	assert.Equal(t, float64(1), got)
}

func TestPrometheusMetrics_InFlightReturnsToZero(t *testing.T) {
	r := chi.NewRouter()
	r.Use(PrometheusMetrics("metrics-inflight"))

	var during float64
	r.Get("/api/v1/cart", func(w http.ResponseWriter, r *http.Request) {
		during = testutil.ToFloat64(httpRequestsInFlight.WithLabelValues("metrics-inflight"))
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))

	assert.Equal(t, float64(1), during)
	assert.Equal(t, float64(0), testutil.ToFloat64(httpRequestsInFlight.WithLabelValues("metrics-inflight")))
}

func TestStatusRecorder_FirstWriteHeaderWins(t *testing.T) {
	rec := newStatusRecorder(httptest.NewRecorder())
	rec.WriteHeader(http.StatusCreated)
	rec.WriteHeader(http.StatusInternalServerError)
	_, _ = rec.Write([]byte("abc"))

	assert.Equal(t, http.StatusCreated, rec.status)
	assert.Equal(t, 3, rec.bytes)
	assert.Same(t, rec, newStatusRecorder(rec))
}
