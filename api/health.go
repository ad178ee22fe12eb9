package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/ericfitz/oauthreg/internal/slogging"
)

// HealthCheck probes one dependency
type HealthCheck func(ctx context.Context) error

// HealthChecker runs named health checks with a shared timeout
type HealthChecker struct {
	checks  map[string]HealthCheck
	timeout time.Duration
}

// NewHealthChecker creates a health checker over checks
func NewHealthChecker(checks map[string]HealthCheck) *HealthChecker {
	return &HealthChecker{checks: checks, timeout: 2 * time.Second}
}

// Check runs every probe and returns the HTTP status and body to send
func (h *HealthChecker) Check(ctx context.Context) (int, HealthResponse) {
	logger := slogging.Get()

	response := HealthResponse{Status: "ok"}
	if len(h.checks) == 0 {
		return http.StatusOK, response
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	response.Components = make(map[string]string, len(names))
	status := http.StatusOK
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			logger.Warn("Health check %s failed: %v", name, err)
			response.Components[name] = "unhealthy"
			status = http.StatusServiceUnavailable
			continue
		}
		response.Components[name] = "healthy"
	}
	if status != http.StatusOK {
		response.Status = "degraded"
	}
	return status, response
}
