package monitoring

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"onebarn/internal/core/ports"
	"onebarn/pkg/circuitbreaker"

	"github.com/redis/go-redis/v9"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// HealthChecker aggregates readiness checks. A failing critical check makes
// the process unhealthy; any other failing check only degrades it.
type HealthChecker struct {
	checks []HealthCheck
	mu     sync.RWMutex
	now    func() time.Time
}

type HealthCheck struct {
	Name     string
	Check    func(ctx context.Context) error
	Timeout  time.Duration
	Critical bool
}

type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		checks: make([]HealthCheck, 0),
		now:    time.Now,
	}
}

func (h *HealthChecker) AddCheck(name string, check func(ctx context.Context) error, timeout time.Duration, critical bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.checks = append(h.checks, HealthCheck{
		Name:     name,
		Check:    check,
		Timeout:  timeout,
		Critical: critical,
	})
}

func (h *HealthChecker) CheckAll(ctx context.Context) HealthStatus {
	h.mu.RLock()
	checks := append([]HealthCheck(nil), h.checks...)
	h.mu.RUnlock()

	status := HealthStatus{
		Status:    StatusHealthy,
		Timestamp: h.now(),
		Checks:    make(map[string]string, len(checks)),
	}

	for _, check := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, check.Timeout)
		err := check.Check(checkCtx)
		cancel()

		if err == nil {
			status.Checks[check.Name] = StatusHealthy
			continue
		}
		status.Checks[check.Name] = err.Error()
		if check.Critical {
			status.Status = StatusUnhealthy
		} else if status.Status == StatusHealthy {
			status.Status = StatusDegraded
		}
	}

	return status
}

// IsReady reports whether no critical check fails.
func (h *HealthChecker) IsReady(ctx context.Context) bool {
	return h.CheckAll(ctx).Status != StatusUnhealthy
}

// AddRedisCheck adds a critical Redis ping.
func (h *HealthChecker) AddRedisCheck(client *redis.Client, timeout time.Duration) {
	h.AddCheck("redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}, timeout, true)
}

// AddCircuitBreakerCheck degrades readiness while the camera API breaker is open.
func (h *HealthChecker) AddCircuitBreakerCheck(name string, state func() circuitbreaker.State) {
	h.AddCheck(name, func(context.Context) error {
		if s := state(); s == circuitbreaker.StateOpen {
			return fmt.Errorf("circuit %s", s)
		}
		return nil
	}, time.Second, false)
}

// AddBridgeCheck degrades readiness while any tenant's bridge is disconnected.
// Cameras still answer from the demo set then, so it is not critical.
func (h *HealthChecker) AddBridgeCheck(provider ports.BridgeProvider) {
	h.AddCheck("camera_bridge", func(ctx context.Context) error {
		var down []string
		for _, tenant := range provider.Tenants() {
			bridge, err := provider.Get(ctx, tenant)
			if err != nil {
				down = append(down, string(tenant))
				continue
			}
			if !bridge.Connectivity().Connected {
				down = append(down, string(tenant))
			}
		}
		if len(down) > 0 {
			sort.Strings(down)
			return fmt.Errorf("bridge disconnected for tenants %v", down)
		}
		return nil
	}, time.Second, false)
}
