package providers

import (
	"net/http"
	"time"

	"carebot/internal/structures"
)

// statusWriter captures the status code a handler wrote. Handlers that never
// call WriteHeader implicitly answer 200.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// MetricsMiddleware counts, times and access-logs admin API requests. Only
// registered routes become endpoint label values; every other path is folded
// into "other" so random traffic cannot mint unbounded label sets.
func MetricsMiddleware(metrics MetricsProviderInterface, logger Logger, routes []structures.Route, next http.Handler) http.Handler {
	known := make(map[string]struct{}, len(routes))
	for _, route := range routes {
		known[route.Url] = struct{}{}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		duration := time.Since(start)
		endpoint := r.URL.Path
		if _, ok := known[endpoint]; !ok {
			endpoint = "other"
		}
		metrics.IncRequestsTotal(endpoint, sw.status)
		metrics.ObserveRequestDuration(endpoint, duration)

		logger.Infof(GetLogTypeByRequestType(r.Method), "%s %s %d %s",
			r.Method, r.URL.Path, sw.status, duration)
	})
}
