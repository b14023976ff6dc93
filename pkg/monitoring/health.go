package monitoring

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
)

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status    string                 `json:"status"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Timestamp int64                  `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// checkTimeout bounds a single dependency probe.
const checkTimeout = 5 * time.Second

// CheckResult represents the result of an individual health check
type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// HealthCheck probes one dependency. The context carries the request
// deadline.
type HealthCheck func(ctx context.Context) CheckResult

// HealthChecker manages and executes health checks
type HealthChecker struct {
	service string
	version string

	mu     sync.RWMutex
	checks map[string]HealthCheck
}

// NewHealthChecker creates a new health checker instance
func NewHealthChecker(service, version string) *HealthChecker {
	return &HealthChecker{
		service: service,
		version: version,
		checks:  make(map[string]HealthCheck),
	}
}

// AddCheck registers a named check, replacing any previous one.
func (hc *HealthChecker) AddCheck(name string, check HealthCheck) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checks[name] = check
}

// CheckHealth runs every check and folds the results: any unhealthy check
// makes the service unhealthy, otherwise any degraded one degrades it.
func (hc *HealthChecker) CheckHealth(ctx context.Context) HealthStatus {
	hc.mu.RLock()
	names := make([]string, 0, len(hc.checks))
	for name := range hc.checks {
		names = append(names, name)
	}
	checks := make(map[string]HealthCheck, len(hc.checks))
	for name, check := range hc.checks {
		checks[name] = check
	}
	hc.mu.RUnlock()
	sort.Strings(names)

	status := HealthStatus{
		Status:    StatusHealthy,
		Service:   hc.service,
		Version:   hc.version,
		Timestamp: time.Now().Unix(),
		Checks:    make(map[string]CheckResult, len(names)),
	}

	for _, name := range names {
		result := checks[name](ctx)
		status.Checks[name] = result
		switch result.Status {
		case StatusHealthy:
		case StatusDegraded:
			if status.Status == StatusHealthy {
				status.Status = StatusDegraded
			}
		default:
			status.Status = StatusUnhealthy
		}
	}

	return status
}

// Handler serves the health status; unhealthy maps to 503.
func (hc *HealthChecker) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		health := hc.CheckHealth(c.Request.Context())
		statusCode := http.StatusOK
		if health.Status == StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, health)
	}
}

func probe(ctx context.Context, what string, ping func(context.Context) error) CheckResult {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	err := ping(ctx)
	latency := time.Since(start).String()
	if err != nil {
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: fmt.Sprintf("%s ping failed: %v", what, err),
			Latency: latency,
		}
	}
	return CheckResult{
		Status:  StatusHealthy,
		Message: what + " connection healthy",
		Latency: latency,
	}
}

// DatabaseHealthCheck pings a PostgreSQL pool.
func DatabaseHealthCheck(db *sql.DB) HealthCheck {
	return func(ctx context.Context) CheckResult {
		if db == nil {
			return CheckResult{Status: StatusUnhealthy, Message: "Database connection is nil"}
		}
		return probe(ctx, "Database", db.PingContext)
	}
}

// RedisHealthCheck pings a Redis client.
func RedisHealthCheck(client goredis.UniversalClient) HealthCheck {
	return func(ctx context.Context) CheckResult {
		if client == nil {
			return CheckResult{Status: StatusUnhealthy, Message: "Redis client is nil"}
		}
		return probe(ctx, "Redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
	}
}

// ConfigurationHealthCheck reports missing required settings. Missing
// optional integrations only degrade the service.
func ConfigurationHealthCheck(required, optional map[string]string) HealthCheck {
	return func(context.Context) CheckResult {
		missing := missingKeys(required)
		if len(missing) > 0 {
			return CheckResult{
				Status:  StatusUnhealthy,
				Message: fmt.Sprintf("Missing required configuration: %v", missing),
			}
		}
		if unset := missingKeys(optional); len(unset) > 0 {
			return CheckResult{
				Status:  StatusDegraded,
				Message: fmt.Sprintf("Running without: %v", unset),
			}
		}
		return CheckResult{
			Status:  StatusHealthy,
			Message: "All required configuration present",
		}
	}
}

func missingKeys(values map[string]string) []string {
	var missing []string
	for key, value := range values {
		if value == "" {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)
	return missing
}
