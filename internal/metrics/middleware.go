package metrics

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// blogRoute is the label used for requests served by the blog catch-all, so
// arbitrary post paths never become label values.
const blogRoute = "blog"

// Middleware is a chi middleware that records HTTP request metrics labeled
// by the matched route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)
		ObserveHTTPRequest(r.Method, routeLabel(r), sw.code(), time.Since(start))
	})
}

func routeLabel(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return "unknown"
	}
	switch pattern := rctx.RoutePattern(); pattern {
	case "":
		return "unknown"
	case "/*":
		return blogRoute
	default:
		return pattern
	}
}

// statusWriter remembers the first status written. A handler that only
// calls Write reports 200.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *statusWriter) code() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}
