package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"onebarn/internal/core/domain"
	"onebarn/internal/core/ports"
	apperrors "onebarn/pkg/errors"
	"onebarn/pkg/retry"
	"onebarn/pkg/utils"

	"go.uber.org/zap"
)

type HealthMonitorConfig struct {
	Interval         time.Duration
	FailureThreshold int
	Backoff          retry.Backoff
}

// HealthMonitor owns the connectivity state of one bridge. Probes are
// serialized; once FailureThreshold consecutive probes have failed, further
// checks inside the current backoff window return a suspended result without
// touching the network.
type HealthMonitor struct {
	tenantID domain.TenantID
	bridge   ports.BridgeClient
	bus      ports.EventBus
	recorder ports.BridgeMetricsRecorder
	cfg      HealthMonitorConfig
	logger   *zap.SugaredLogger
	now      func() time.Time

	probeMu sync.Mutex

	mu    sync.RWMutex
	state domain.ConnectivityState
}

func NewHealthMonitor(
	tenantID domain.TenantID,
	bridge ports.BridgeClient,
	bus ports.EventBus,
	recorder ports.BridgeMetricsRecorder,
	cfg HealthMonitorConfig,
	logger *zap.SugaredLogger,
) *HealthMonitor {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &HealthMonitor{
		tenantID: tenantID,
		bridge:   bridge,
		bus:      bus,
		recorder: recorder,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		state: domain.ConnectivityState{
			CurrentBackoff: cfg.Backoff.InitialDelay,
		},
	}
}

// State returns a snapshot of the connectivity record.
func (m *HealthMonitor) State() domain.ConnectivityState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *HealthMonitor) Connected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Connected
}

// SuspendedFor reports how long the suppression window still lasts, or zero
// when a probe may be issued now.
func (m *HealthMonitor) SuspendedFor() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.suspendedForLocked(m.now())
}

func (m *HealthMonitor) suspendedForLocked(now time.Time) time.Duration {
	if m.state.ConsecutiveFailures < m.cfg.FailureThreshold || m.state.LastFailedAttempt.IsZero() {
		return 0
	}
	remaining := m.state.CurrentBackoff - now.Sub(m.state.LastFailedAttempt)
	if remaining <= 0 {
		return 0
	}
	return remaining
}

// SuspendedError returns a SUSPENDED error when the suppression window is
// active, nil otherwise.
func (m *HealthMonitor) SuspendedError() error {
	if remaining := m.SuspendedFor(); remaining > 0 {
		return apperrors.NewSuspendedError(utils.FormatDuration(remaining))
	}
	return nil
}

// CheckHealth probes the bridge unless the suppression window is active.
// Connectivity loss is reported in the result, never as a returned error.
func (m *HealthMonitor) CheckHealth(ctx context.Context) domain.HealthResult {
	m.probeMu.Lock()

	if err := m.SuspendedError(); err != nil {
		m.probeMu.Unlock()
		m.logger.Debugw("health check suspended",
			"tenant_id", m.tenantID,
			"error", err,
		)
		return domain.HealthResult{Status: domain.HealthSuspended, Err: err}
	}

	start := time.Now()
	probeErr := m.bridge.Probe(ctx)

	// a caller that went away says nothing about the bridge
	if probeErr != nil && errors.Is(ctx.Err(), context.Canceled) {
		m.probeMu.Unlock()
		return domain.HealthResult{
			Status: domain.HealthDisconnected,
			Err:    apperrors.NewBridgeUnavailableError("health check cancelled", ctx.Err()),
		}
	}
	m.recorder.RecordProbe(m.tenantID, probeErr == nil, time.Since(start))

	var event domain.Event
	if probeErr == nil {
		event = m.recordSuccess()
	} else {
		event = m.recordFailure(probeErr)
	}
	state := m.State()
	m.probeMu.Unlock()

	m.recorder.SetConnectivity(m.tenantID, state)
	if event != nil {
		m.bus.Emit(event)
	}

	if probeErr != nil {
		return domain.HealthResult{
			Status: domain.HealthDisconnected,
			Err:    apperrors.NewBridgeUnavailableError("camera bridge is not reachable", probeErr),
		}
	}
	return domain.HealthResult{Connected: true, Status: domain.HealthConnected}
}

// recordSuccess resets the failure run and returns BridgeConnected on the
// disconnected to connected edge.
func (m *HealthMonitor) recordSuccess() domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	wasConnected := m.state.Connected
	m.state = domain.ConnectivityState{
		Connected:      true,
		CurrentBackoff: m.cfg.Backoff.InitialDelay,
	}

	if wasConnected {
		return nil
	}
	m.logger.Infow("camera bridge connected", "tenant_id", m.tenantID)
	return domain.BridgeConnected{At: m.now()}
}

// recordFailure extends the failure run and returns BridgeDisconnected only
// for the first failure of a run.
func (m *HealthMonitor) recordFailure(probeErr error) domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	first := m.state.ConsecutiveFailures == 0

	m.state.Connected = false
	m.state.ConsecutiveFailures++
	m.state.LastFailedAttempt = now
	if first {
		m.state.CurrentBackoff = m.cfg.Backoff.InitialDelay
	} else {
		m.state.CurrentBackoff = m.cfg.Backoff.Next(m.state.CurrentBackoff)
	}

	if !first {
		m.logger.Debugw("camera bridge still unreachable",
			"tenant_id", m.tenantID,
			"consecutive_failures", m.state.ConsecutiveFailures,
			"backoff", m.state.CurrentBackoff,
			"error", probeErr,
		)
		return nil
	}

	m.logger.Warnw("camera bridge unreachable",
		"tenant_id", m.tenantID,
		"error", probeErr,
	)
	return domain.BridgeDisconnected{
		Reason:              probeErr.Error(),
		ConsecutiveFailures: m.state.ConsecutiveFailures,
		At:                  now,
	}
}

// Run checks health every Interval until ctx is cancelled. A tick that fires
// after cancellation does nothing.
func (m *HealthMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			m.CheckHealth(ctx)
		}
	}
}
