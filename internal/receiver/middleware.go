package receiver

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rantahar/aware-filter/internal/stats"
)

// RequireToken guards an endpoint group with a bearer token from /login.
func (h *Handler) RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			h.stats.Inc(stats.UnauthorizedAttempts)
			writeErr(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if err := h.auth.VerifyToken(token); err != nil {
			h.stats.Inc(stats.UnauthorizedAttempts)
			writeErr(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Metrics returns a middleware recording per-route request durations. It
// registers its collector with the default Prometheus registry, so call it
// once per process.
func Metrics() func(http.Handler) http.Handler {
	duration := promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aware_filter_http_request_duration_seconds",
		Help:    "HTTP request duration by route, method and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method", "status"})

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}
			duration.WithLabelValues(route, r.Method, strconv.Itoa(ww.Status())).
				Observe(time.Since(start).Seconds())
		})
	}
}
