package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareLabelsRoutes(t *testing.T) {
	Init()
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/v1/jobs/{job_id}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/*", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.WriteHeader(http.StatusInternalServerError)
	})

	seriesBefore := testutil.CollectAndCount(httpRequestDurationSeconds)
	notFoundBefore := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "404"))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/jobs/abc", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/some-post-slug", nil))

	require.GreaterOrEqual(t, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "200")), 1.0)
	require.InDelta(t, notFoundBefore+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "404")), 0.001)
	require.GreaterOrEqual(t, testutil.CollectAndCount(httpRequestDurationSeconds), seriesBefore)
}

func TestStatusWriterDefaultsToOK(t *testing.T) {
	t.Parallel()

	sw := &statusWriter{ResponseWriter: httptest.NewRecorder()}
	require.Equal(t, http.StatusOK, sw.code())

	_, err := sw.Write([]byte("body"))
	require.NoError(t, err)
	sw.WriteHeader(http.StatusTeapot)
	require.Equal(t, http.StatusOK, sw.code())
}

func TestRouteLabel(t *testing.T) {
	t.Parallel()

	var got []string
	r := chi.NewRouter()
	r.Get("/v1/jobs/{job_id}", func(_ http.ResponseWriter, req *http.Request) { got = append(got, routeLabel(req)) })
	r.Get("/*", func(_ http.ResponseWriter, req *http.Request) { got = append(got, routeLabel(req)) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/jobs/abc", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/2024/05/a-post", nil))
	require.Equal(t, []string{"/v1/jobs/{job_id}", blogRoute}, got)

	require.Equal(t, "unknown", routeLabel(httptest.NewRequest(http.MethodGet, "/", nil)))
}
