package middleware

import (
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"studio/internal/adapters/http/perf"
)

// DefaultSlowRequestMs is the default threshold for slow request warnings.
const DefaultSlowRequestMs = 200

var slowRequestThreshold = sync.OnceValue(func() float64 {
	if n, err := strconv.Atoi(os.Getenv("STUDIO_SLOW_REQUEST_MS")); err == nil && n > 0 {
		return float64(n)
	}
	return DefaultSlowRequestMs
})

var requestSeq atomic.Uint64

// statusWriter records the status code written through it.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (sw *statusWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}

var statusWriterPool = sync.Pool{
	New: func() any { return &statusWriter{} },
}

// Timing logs every non-static request and records it in collector (which may be nil).
// Slow requests log at WARN, the rest at DEBUG. Entries are labelled with the
// matched route pattern when the mux set one, so /events/{slug} groups together.
func Timing(collector *perf.Collector) func(http.Handler) http.Handler {
	threshold := slowRequestThreshold()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/static/") {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			id := requestSeq.Add(1)
			sw := statusWriterPool.Get().(*statusWriter)
			sw.ResponseWriter, sw.status = w, http.StatusOK

			defer func() {
				ms := float64(time.Since(start).Microseconds()) / 1000.0
				label := r.Pattern
				if label == "" {
					label = r.Method + " " + r.URL.Path
				}
				attrs := []any{"request_id", id, "route", label, "path", r.URL.Path, "status", sw.status, "duration_ms", ms}
				if ms >= threshold {
					slog.Warn("slow_request", attrs...)
				} else {
					slog.Debug("request", attrs...)
				}
				if collector != nil {
					collector.Record(perf.Entry{Kind: perf.KindRequest, Label: label, Status: sw.status, DurationMs: ms, At: start})
				}
				sw.ResponseWriter = nil
				statusWriterPool.Put(sw)
			}()

			next.ServeHTTP(sw, r)
		})
	}
}
