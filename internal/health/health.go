package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/news-digest/pkg/logger"
)

const checkTimeout = 2 * time.Second

// Dependency is anything that can report its own health; *database.DB and
// *redis.Client satisfy it
type Dependency interface {
	Health(ctx context.Context) error
}

// Checker provides liveness and readiness probes for K8s
type Checker struct {
	mu        sync.RWMutex
	deps      map[string]Dependency
	ready     bool
	startTime time.Time
}

// HealthStatus represents system health
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// ReadinessStatus represents system readiness
type ReadinessStatus struct {
	Ready     bool              `json:"ready"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// NewChecker creates new probe checker, not ready until SetReady(true)
func NewChecker() *Checker {
	return &Checker{
		deps:      make(map[string]Dependency),
		startTime: time.Now(),
	}
}

// Add registers a dependency checked by the readiness probe
func (c *Checker) Add(name string, dep Dependency) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deps[name] = dep
}

// Register mounts the probe endpoints on mux
func (c *Checker) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", c.handleHealth)   // Liveness probe
	mux.HandleFunc("GET /ready", c.handleReadiness) // Readiness probe
	mux.HandleFunc("GET /healthz", c.handleHealth)
	mux.HandleFunc("GET /readyz", c.handleReadiness)
}

// SetReady marks the service as ready
func (c *Checker) SetReady(ready bool) {
	c.mu.Lock()
	c.ready = ready
	c.mu.Unlock()

	if ready {
		logger.Info("✅ service marked as READY")
	} else {
		logger.Warn("⚠️ service marked as NOT READY")
	}
}

// check runs every dependency check and reports whether all passed
func (c *Checker) check(ctx context.Context) (map[string]string, bool) {
	c.mu.RLock()
	names := make([]string, 0, len(c.deps))
	for name := range c.deps {
		names = append(names, name)
	}
	deps := make(map[string]Dependency, len(c.deps))
	for name, dep := range c.deps {
		deps[name] = dep
	}
	c.mu.RUnlock()

	sort.Strings(names)

	checks := make(map[string]string, len(names))
	healthy := true

	for _, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := deps[name].Health(checkCtx)
		cancel()

		if err != nil {
			checks[name] = "unhealthy: " + err.Error()
			healthy = false
			logger.Warn("dependency unhealthy",
				zap.String("dependency", name),
				zap.Error(err),
			)
			continue
		}
		checks[name] = "healthy"
	}

	return checks, healthy
}

// handleHealth handles liveness probe - /health
// Returns 200 if process is alive (even if dependencies are down)
func (c *Checker) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(c.startTime).Round(time.Second).String(),
	}

	if r.URL.Query().Get("verbose") == "true" {
		status.Checks, _ = c.check(r.Context())
	}

	writeStatus(w, http.StatusOK, status)
}

// handleReadiness handles readiness probe - /ready
// Returns 200 only if startup finished and dependencies are healthy
func (c *Checker) handleReadiness(w http.ResponseWriter, r *http.Request) {
	c.mu.RLock()
	ready := c.ready
	c.mu.RUnlock()

	checks, healthy := c.check(r.Context())
	isReady := ready && healthy

	code := http.StatusOK
	if !isReady {
		code = http.StatusServiceUnavailable
	}

	writeStatus(w, code, ReadinessStatus{
		Ready:     isReady,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	})
}

func writeStatus(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
