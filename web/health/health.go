// Package health provides health check functionality for the web server.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Status represents the health status of a component.
type Status string

const (
	// StatusHealthy indicates the component is fully operational.
	StatusHealthy Status = "healthy"
	// StatusUnhealthy indicates the component is not operational.
	StatusUnhealthy Status = "unhealthy"
)

// ComponentStatus represents the health status of a single component.
type ComponentStatus struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// Response represents the health check response.
type Response struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentStatus `json:"components"`
	Version    string                     `json:"version"`
	Uptime     string                     `json:"uptime"`
}

// WebVersion is the current version of the web server.
// This should be set at build time using ldflags.
var WebVersion = "dev"

// CheckFunc checks one dependency.
type CheckFunc func(ctx context.Context) error

type namedCheck struct {
	name string
	fn   CheckFunc
}

// Checker performs health checks for the web server.
type Checker struct {
	checks    []namedCheck
	startTime time.Time
	version   string
	timeout   time.Duration
	logger    *slog.Logger
	mu        sync.RWMutex
}

// NewChecker creates a new web health checker. Check failures are logged
// to logger and reported to callers without detail.
func NewChecker(version string, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{
		startTime: time.Now(),
		version:   version,
		timeout:   5 * time.Second,
		logger:    logger,
	}
}

// AddCheck registers a named dependency check.
func (c *Checker) AddCheck(name string, fn CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks = append(c.checks, namedCheck{name: name, fn: fn})
}

// SetTimeout sets the timeout for health checks.
func (c *Checker) SetTimeout(timeout time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeout = timeout
}

// Check runs every check concurrently and returns the aggregated response.
func (c *Checker) Check(ctx context.Context) *Response {
	c.mu.RLock()
	timeout := c.timeout
	checks := make([]namedCheck, len(c.checks))
	copy(checks, c.checks)
	c.mu.RUnlock()

	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	results := make([]ComponentStatus, len(checks))
	var wg sync.WaitGroup
	for i, chk := range checks {
		wg.Add(1)
		go func(i int, chk namedCheck) {
			defer wg.Done()
			results[i] = c.run(checkCtx, chk)
		}(i, chk)
	}
	wg.Wait()

	components := make(map[string]ComponentStatus, len(checks))
	overallStatus := StatusHealthy
	for i, chk := range checks {
		components[chk.name] = results[i]
		if results[i].Status == StatusUnhealthy {
			overallStatus = StatusUnhealthy
		}
	}

	return &Response{
		Status:     overallStatus,
		Components: components,
		Version:    c.version,
		Uptime:     time.Since(c.startTime).Round(time.Second).String(),
	}
}

func (c *Checker) run(ctx context.Context, chk namedCheck) ComponentStatus {
	if err := chk.fn(ctx); err != nil {
		c.logger.WarnContext(ctx, "health check failed", "check", chk.name, "error", err)
		return ComponentStatus{Status: StatusUnhealthy, Message: "check failed"}
	}
	return ComponentStatus{Status: StatusHealthy, Message: "ok"}
}

// Handler returns an HTTP handler for health checks.
func (c *Checker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := c.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")

		if response.Status == StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}

		json.NewEncoder(w).Encode(response)
	}
}
