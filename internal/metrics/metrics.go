// Package metrics provides Prometheus instrumentation for the risk engine.
package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// OracleFetches counts oracle account reads by outcome ("ok", "missing", "error").
	OracleFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "perpdex_oracle_fetches_total",
		Help: "Oracle price account reads",
	}, []string{"outcome"})

	// DecodeFailures counts accounts dropped by batch decoding, by account type.
	DecodeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "perpdex_decode_failures_total",
		Help: "Program accounts skipped because they failed to decode",
	}, []string{"account"})

	// StalePrices counts failed oracle reads during a listing. Every position
	// on that oracle is valued at its entry price.
	StalePrices = promauto.NewCounter(prometheus.CounterOpts{
		Name: "perpdex_stale_price_fallbacks_total",
		Help: "Oracle reads that failed during a listing and fell back to entry price",
	})

	// Simulations counts simulation requests by kind and outcome.
	Simulations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "perpdex_simulations_total",
		Help: "Trade simulations served",
	}, []string{"kind", "outcome"})

	// PositionsListed observes the number of positions returned per listing.
	PositionsListed = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "perpdex_positions_listed",
		Help:    "Positions returned per list_positions call",
		Buckets: []float64{0, 1, 2, 5, 10, 25, 50},
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "perpdex_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "perpdex_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "perpdex_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request count and latency.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		// Route pattern keeps the label set bounded.
		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack keeps WebSocket upgrades working through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("metrics: underlying ResponseWriter does not support hijacking")
	}
	return h.Hijack()
}

// Unwrap lets http.ResponseController reach the underlying writer (used by
// WebSocket upgrades).
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
