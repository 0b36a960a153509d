package handler

import (
	"context"
	"net/http"
	"sort"
	"time"
)

// healthTimeout bounds each dependency check.
const healthTimeout = 2 * time.Second

// Checker reports whether a dependency is reachable.
type Checker func(ctx context.Context) error

// HealthHandler serves the liveness endpoint.
type HealthHandler struct {
	version string
	started time.Time
	checks  map[string]Checker
}

// NewHealthHandler creates a HealthHandler. checks may be nil.
func NewHealthHandler(version string, checks map[string]Checker) *HealthHandler {
	return &HealthHandler{version: version, started: time.Now().UTC(), checks: checks}
}

// HealthCheck reports process liveness plus the state of each optional
// backend. Any failing check turns the response into a 503.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status, code := "ok", http.StatusOK
	results := make(map[string]string, len(names))
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		err := h.checks[name](ctx)
		cancel()
		if err != nil {
			results[name] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	writeJSON(w, code, map[string]any{
		"status":         status,
		"version":        h.version,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"checks":         results,
	})
}
