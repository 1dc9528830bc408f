package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMiddleware(t *testing.T) {
	Init()

	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/scrapes/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "200"))
	notFoundBefore := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "404"))

	req := httptest.NewRequest(http.MethodGet, "/scrapes/abc", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodGet, "/nope", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "200"))
	require.Equal(t, before+1, got)
	notFound := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "404"))
	require.Equal(t, notFoundBefore+1, notFound)

	// The matched route pattern, not the raw path, labels the histogram.
	require.Positive(t, testutil.CollectAndCount(
		httpRequestDurationSeconds, "http_request_duration_seconds"))
}
