package health

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ayash-Bera/coursebot/internal/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type fakeHealthRepo struct {
	mu      sync.Mutex
	updates map[string]string
}

func (f *fakeHealthRepo) UpdateServiceHealth(serviceName, status string, responseTime int, errorMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates[serviceName] = status
	return nil
}

func (f *fakeHealthRepo) GetUnhealthyServices() ([]models.SystemHealth, error) { return nil, nil }

type memoryStatusCache struct {
	stored map[string]string
}

func (m *memoryStatusCache) CacheSystemHealth(ctx context.Context, health map[string]string, expiration time.Duration) error {
	m.stored = health
	return nil
}

func (m *memoryStatusCache) GetCachedSystemHealth(ctx context.Context) (map[string]string, error) {
	if m.stored == nil {
		return nil, errors.New("cache miss")
	}
	return m.stored, nil
}

func ok(ctx context.Context) error { return nil }

func TestCheckAll_Statuses(t *testing.T) {
	repo := &fakeHealthRepo{updates: make(map[string]string)}
	h := NewHealthChecker(repo, nil, testLogger())
	h.Register("postgres", ok)
	h.Register("llm", func(ctx context.Context) error {
		return fmt.Errorf("credential missing: %w", ErrDegraded)
	})

	health := h.CheckAll(context.Background())
	assert.Equal(t, StatusDegraded, health.Status)
	require.Len(t, health.Services, 2)
	assert.Equal(t, "postgres", health.Services[0].Name)
	assert.Equal(t, StatusHealthy, health.Services[0].Status)
	assert.Equal(t, StatusDegraded, health.Services[1].Status)
	assert.Equal(t, StatusDegraded, repo.updates["llm"])

	h.Register("redis", func(ctx context.Context) error { return errors.New("connection refused") })
	health = h.CheckAll(context.Background())
	assert.Equal(t, StatusUnhealthy, health.Status)
	assert.Equal(t, "connection refused", health.Services[2].Error)
}

func TestCheck_Single(t *testing.T) {
	h := NewHealthChecker(nil, nil, testLogger())
	h.Register("knowledge", ok)

	svc, found := h.Check(context.Background(), "knowledge")
	assert.True(t, found)
	assert.Equal(t, StatusHealthy, svc.Status)

	_, found = h.Check(context.Background(), "missing")
	assert.False(t, found)
}

func TestCheckCached(t *testing.T) {
	cache := &memoryStatusCache{}
	h := NewHealthChecker(nil, cache, testLogger())
	h.Register("postgres", ok)
	h.Register("redis", func(ctx context.Context) error { return errors.New("down") })

	_, err := h.CheckCached(context.Background())
	assert.Error(t, err)

	h.cacheStatus(context.Background(), h.CheckAll(context.Background()), time.Minute)

	cached, err := h.CheckCached(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusUnhealthy, cached.Status)
	require.Len(t, cached.Services, 2)
	assert.Equal(t, "postgres", cached.Services[0].Name)
}

func TestNoProbesIsHealthy(t *testing.T) {
	h := NewHealthChecker(nil, nil, testLogger())
	assert.Equal(t, StatusHealthy, h.CheckAll(context.Background()).Status)

	_, err := h.CheckCached(context.Background())
	assert.Error(t, err)
}
