package api

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// httpRequests counts handled API requests by route template and status.
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "treasurehunt",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests by route, method and status code",
	}, []string{"route", "method", "code"})

	// httpDuration tracks request latency; streaming routes are excluded.
	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "treasurehunt",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	// solvesTotal counts searches by outcome.
	solvesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "treasurehunt",
		Subsystem: "search",
		Name:      "solves_total",
		Help:      "Total solve runs by outcome",
	}, []string{"found"})

	// solveDuration is the wall time of one solve.
	solveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "treasurehunt",
		Subsystem: "search",
		Name:      "solve_duration_seconds",
		Help:      "Duration of solve runs",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	})

	// tracesTotal counts traced searches, batch or streamed.
	tracesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "treasurehunt",
		Subsystem: "search",
		Name:      "traces_total",
		Help:      "Total traced searches by delivery mode",
	}, []string{"mode"})

	// traceEvents is the number of events produced per trace.
	traceEvents = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "treasurehunt",
		Subsystem: "search",
		Name:      "trace_events",
		Help:      "Number of events per traced search",
		Buckets:   prometheus.ExponentialBuckets(4, 4, 8),
	})

	// recordingsTotal counts stored step logs by outcome.
	recordingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "treasurehunt",
		Subsystem: "steplog",
		Name:      "recordings_total",
		Help:      "Total step logs written by outcome",
	}, []string{"found"})

	// decodeFailures counts step logs rejected as malformed.
	decodeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "treasurehunt",
		Subsystem: "steplog",
		Name:      "decode_failures_total",
		Help:      "Total step logs that failed to decode",
	})

	// replaysStarted counts replays handed to the replayer.
	replaysStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "treasurehunt",
		Subsystem: "steplog",
		Name:      "replays_started_total",
		Help:      "Total step log replays started",
	})
)

// statusRecorder captures the response code. It passes Flush and Hijack
// through so SSE and WebSocket handlers keep working behind it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// metricsMiddleware records request counts and latency per route template
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		if !isStreamingRoute(route) {
			httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	})
}

func isStreamingRoute(route string) bool {
	return route == "/ws" || route == "/api/sessions/{id}/trace/stream"
}

func foundLabel(found bool) string {
	return strconv.FormatBool(found)
}
