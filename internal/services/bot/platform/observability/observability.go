// Package observability provides request logging for the discovery API.
package observability

import (
	"log"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/instaagents/discovery/internal/services/bot/platform/httpx"
)

// statusRecorder captures the written status and body size so the log line
// can report them after the handler returns. A handler that never calls
// WriteHeader gets the implicit 200.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(payload []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	written, err := r.ResponseWriter.Write(payload)
	r.bytes += written
	return written, err
}

// RequestLogger logs one line per request with method, path, status, body
// size, latency and the correlation ids. When tracing is active the line
// carries the trace id so log entries can be joined with spans.
func RequestLogger(logger *log.Logger) httpx.Middleware {
	if logger == nil {
		logger = log.Default()
	}
	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.NotFoundHandler()
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(recorder, r)

			status := recorder.status
			if status == 0 {
				status = http.StatusOK
			}

			var traceID string
			if sc := trace.SpanFromContext(r.Context()).SpanContext(); sc.IsValid() {
				traceID = sc.TraceID().String()
			}

			logger.Printf(
				"method=%s path=%s status=%d bytes=%d latency=%s request_id=%s trace_id=%s",
				r.Method,
				r.URL.Path,
				status,
				recorder.bytes,
				time.Since(start),
				r.Header.Get("X-Request-ID"),
				traceID,
			)
		})
	}
}
