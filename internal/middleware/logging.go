package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/albepe01/NetworkSecurity-Project/internal/metrics"
)

type statusRecorder struct {
	http.ResponseWriter
	Status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.Status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush keeps the SSE stream working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// RequestLogger logs every request and, when m is non-nil, records the HTTP
// request counter and latency histogram.
func RequestLogger(logger *slog.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, Status: http.StatusOK}

			next.ServeHTTP(recorder, r)

			elapsed := time.Since(start)
			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", recorder.Status,
				"remote", r.RemoteAddr,
				"duration", elapsed,
			)

			if m != nil {
				endpoint := r.Pattern
				if endpoint == "" {
					endpoint = "unmatched"
				}
				m.HTTPRequests.WithLabelValues(endpoint, r.Method, strconv.Itoa(recorder.Status)).Inc()
				m.HTTPDuration.WithLabelValues(endpoint, r.Method).Observe(elapsed.Seconds())
			}
		})
	}
}
