// Package health reports whether a service's dependencies are usable. A
// failing critical dependency takes the service down; a failing optional
// one (a cache, an event sink) only degrades it.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

type Status string

const (
	StatusUp       Status = "up"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

// Check probes one dependency. The detail string is reported on success.
type Check func(ctx context.Context) (detail string, err error)

type ComponentHealth struct {
	Status   Status `json:"status"`
	Critical bool   `json:"critical"`
	Message  string `json:"message,omitempty"`
	Latency  string `json:"latency"`
}

type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  time.Time                  `json:"timestamp"`
}

type component struct {
	check    Check
	critical bool
}

type Checker struct {
	timeout    time.Duration
	mu         sync.RWMutex
	components map[string]component
	logger     *slog.Logger
}

// NewChecker returns a Checker that gives each check at most timeout.
func NewChecker(timeout time.Duration) *Checker {
	return &Checker{
		timeout:    timeout,
		components: make(map[string]component),
		logger:     slog.Default().With("component", "health"),
	}
}

func (c *Checker) Register(name string, critical bool, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.components[name] = component{check: check, critical: critical}
}

// Run probes every component concurrently.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	components := make(map[string]component, len(c.components))
	for name, comp := range c.components {
		components[name] = comp
	}
	c.mu.RUnlock()

	report := Report{
		Status:     StatusUp,
		Components: make(map[string]ComponentHealth, len(components)),
		Timestamp:  time.Now().UTC(),
	}
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for name, comp := range components {
		wg.Go(func() {
			result := c.probe(ctx, comp)
			mu.Lock()
			defer mu.Unlock()
			report.Components[name] = result
			if result.Status == StatusDown {
				report.Status = StatusDown
			} else if result.Status == StatusDegraded && report.Status == StatusUp {
				report.Status = StatusDegraded
			}
		})
	}
	wg.Wait()
	if report.Status != StatusUp {
		c.logger.Warn("health check failing", "status", report.Status)
	}
	return report
}

func (c *Checker) probe(ctx context.Context, comp component) ComponentHealth {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	start := time.Now()
	detail, err := comp.check(ctx)
	h := ComponentHealth{
		Status:   StatusUp,
		Critical: comp.critical,
		Message:  detail,
		Latency:  time.Since(start).Round(time.Microsecond).String(),
	}
	if err != nil {
		h.Status = StatusDegraded
		if comp.critical {
			h.Status = StatusDown
		}
		h.Message = err.Error()
	}
	return h
}

// LiveHandler reports that the process is serving requests.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	}
}

// ReadyHandler answers 200 unless a critical dependency is down.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := c.Run(r.Context())
		status := http.StatusOK
		if report.Status == StatusDown {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, report)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
