package health

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Ayash-Bera/coursebot/internal/models"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"

	probeTimeout = 10 * time.Second
)

// ErrDegraded marks a probe failure that leaves the service usable.
var ErrDegraded = errors.New("degraded")

// Probe checks one dependency. Returning an error wrapping ErrDegraded
// reports the service as degraded instead of unhealthy.
type Probe func(ctx context.Context) error

// StatusCache stores the latest status per service, e.g. *database.Cache.
type StatusCache interface {
	CacheSystemHealth(ctx context.Context, health map[string]string, expiration time.Duration) error
	GetCachedSystemHealth(ctx context.Context) (map[string]string, error)
}

// HealthChecker manages health checks for all services
type HealthChecker struct {
	healthRepo models.SystemHealthRepository
	cache      StatusCache
	logger     *logrus.Logger
	startTime  time.Time

	mu     sync.RWMutex
	names  []string
	probes map[string]Probe
}

// NewHealthChecker builds a checker. healthRepo and cache may be nil.
func NewHealthChecker(healthRepo models.SystemHealthRepository, cache StatusCache, logger *logrus.Logger) *HealthChecker {
	return &HealthChecker{
		healthRepo: healthRepo,
		cache:      cache,
		logger:     logger,
		startTime:  time.Now(),
		probes:     make(map[string]Probe),
	}
}

// Register adds or replaces the probe for name. Checks run in registration order.
func (h *HealthChecker) Register(name string, probe Probe) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.probes[name]; !exists {
		h.names = append(h.names, name)
	}
	h.probes[name] = probe
}

// ServiceHealth represents the health status of a service
type ServiceHealth struct {
	Name         string `json:"name"`
	Status       string `json:"status"`
	ResponseTime int    `json:"response_time_ms"`
	Error        string `json:"error,omitempty"`
	LastChecked  string `json:"last_checked,omitempty"`
}

// OverallHealth represents the overall system health
type OverallHealth struct {
	Status   string          `json:"status"`
	Services []ServiceHealth `json:"services"`
	Uptime   string          `json:"uptime"`
}

// Check runs a single named probe.
func (h *HealthChecker) Check(ctx context.Context, name string) (ServiceHealth, bool) {
	h.mu.RLock()
	probe, ok := h.probes[name]
	h.mu.RUnlock()
	if !ok {
		return ServiceHealth{}, false
	}
	return h.run(ctx, name, probe), true
}

func (h *HealthChecker) run(ctx context.Context, name string, probe Probe) ServiceHealth {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	start := time.Now()
	err := probe(ctx)
	responseTime := int(time.Since(start).Milliseconds())

	status := StatusHealthy
	errorMsg := ""
	switch {
	case err == nil:
	case errors.Is(err, ErrDegraded):
		status = StatusDegraded
		errorMsg = err.Error()
		h.logger.WithError(err).WithField("service", name).Warn("Health check degraded")
	default:
		status = StatusUnhealthy
		errorMsg = err.Error()
		h.logger.WithError(err).WithField("service", name).Error("Health check failed")
	}

	if h.healthRepo != nil {
		if err := h.healthRepo.UpdateServiceHealth(name, status, responseTime, errorMsg); err != nil {
			h.logger.WithError(err).WithField("service", name).Warn("Failed to record health status")
		}
	}

	return ServiceHealth{
		Name:         name,
		Status:       status,
		ResponseTime: responseTime,
		Error:        errorMsg,
		LastChecked:  time.Now().Format(time.RFC3339),
	}
}

// CheckAll performs health checks on all services
func (h *HealthChecker) CheckAll(ctx context.Context) OverallHealth {
	h.mu.RLock()
	names := append([]string(nil), h.names...)
	probes := make([]Probe, len(names))
	for i, name := range names {
		probes[i] = h.probes[name]
	}
	h.mu.RUnlock()

	services := make([]ServiceHealth, len(names))
	var wg sync.WaitGroup
	for i := range names {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			services[i] = h.run(ctx, names[i], probes[i])
		}(i)
	}
	wg.Wait()

	return OverallHealth{
		Status:   overallStatus(services),
		Services: services,
		Uptime:   h.getUptime(),
	}
}

// CheckCached returns cached health status if available
func (h *HealthChecker) CheckCached(ctx context.Context) (*OverallHealth, error) {
	if h.cache == nil {
		return nil, errors.New("health cache not configured")
	}
	cached, err := h.cache.GetCachedSystemHealth(ctx)
	if err != nil {
		return nil, err
	}

	h.mu.RLock()
	names := append([]string(nil), h.names...)
	h.mu.RUnlock()

	services := make([]ServiceHealth, 0, len(cached))
	for _, name := range names {
		if status, ok := cached[name]; ok {
			services = append(services, ServiceHealth{Name: name, Status: status})
		}
	}

	return &OverallHealth{
		Status:   overallStatus(services),
		Services: services,
		Uptime:   h.getUptime(),
	}, nil
}

func overallStatus(services []ServiceHealth) string {
	status := StatusHealthy
	for _, service := range services {
		if service.Status == StatusUnhealthy {
			return StatusUnhealthy
		}
		if service.Status == StatusDegraded {
			status = StatusDegraded
		}
	}
	return status
}

func (h *HealthChecker) getUptime() string {
	return time.Since(h.startTime).Round(time.Second).String()
}

// PeriodicHealthCheck runs health checks periodically
func (h *HealthChecker) PeriodicHealthCheck(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			health := h.CheckAll(ctx)
			h.cacheStatus(ctx, health, 2*interval)
			h.logger.WithField("status", health.Status).Debug("Periodic health check completed")
		}
	}
}

func (h *HealthChecker) cacheStatus(ctx context.Context, health OverallHealth, ttl time.Duration) {
	if h.cache == nil {
		return
	}
	statuses := make(map[string]string, len(health.Services))
	for _, service := range health.Services {
		statuses[service.Name] = service.Status
	}

	cacheCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := h.cache.CacheSystemHealth(cacheCtx, statuses, ttl); err != nil {
		h.logger.WithError(err).Error("Failed to cache health status")
	}
}
