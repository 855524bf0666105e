package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"onebarn/internal/core/domain"
	apperrors "onebarn/pkg/errors"
	"onebarn/pkg/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errRefused = errors.New("connection refused")

func testBackoff() retry.Backoff {
	return retry.Backoff{
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
		MaxJitter:    500 * time.Millisecond,
		Rand:         func() float64 { return 0.5 },
	}
}

func newTestMonitor(bridge *MockBridgeClient, bus *recordingBus) (*HealthMonitor, *fakeClock) {
	clock := newFakeClock()
	m := NewHealthMonitor("ranch-1", bridge, bus, nil, HealthMonitorConfig{
		Interval:         time.Hour,
		FailureThreshold: 5,
		Backoff:          testBackoff(),
	}, zap.NewNop().Sugar())
	m.now = clock.Now
	return m, clock
}

func TestHealthMonitor_EdgeTriggeredDisconnect(t *testing.T) {
	bridge := &MockBridgeClient{}
	bridge.On("Probe", mock.Anything).Return(errRefused)
	bus := newRecordingBus()
	m, _ := newTestMonitor(bridge, bus)

	for i := 0; i < 3; i++ {
		res := m.CheckHealth(context.Background())
		assert.False(t, res.Connected)
		assert.Equal(t, domain.HealthDisconnected, res.Status)
		assert.ErrorIs(t, res.Err, apperrors.ErrBridgeUnavailable)
	}

	assert.Equal(t, 1, bus.count(domain.EventBridgeDisconnected))
	assert.Equal(t, 3, m.State().ConsecutiveFailures)
	ev := bus.last(domain.EventBridgeDisconnected).(domain.BridgeDisconnected)
	assert.Equal(t, 1, ev.ConsecutiveFailures)
}

func TestHealthMonitor_EdgeTriggeredConnect(t *testing.T) {
	bridge := &MockBridgeClient{}
	bridge.On("Probe", mock.Anything).Return(errRefused).Once()
	bridge.On("Probe", mock.Anything).Return(nil)
	bus := newRecordingBus()
	m, _ := newTestMonitor(bridge, bus)

	m.CheckHealth(context.Background())
	res := m.CheckHealth(context.Background())
	assert.True(t, res.Connected)
	assert.Equal(t, domain.HealthConnected, res.Status)
	m.CheckHealth(context.Background())

	assert.Equal(t, 1, bus.count(domain.EventBridgeConnected))
	assert.Equal(t, 1, bus.count(domain.EventBridgeDisconnected))
}

func TestHealthMonitor_BackoffScheduleAndReset(t *testing.T) {
	bridge := &MockBridgeClient{}
	bridge.On("Probe", mock.Anything).Return(errRefused).Times(3)
	bridge.On("Probe", mock.Anything).Return(nil).Once()
	m, _ := newTestMonitor(bridge, newRecordingBus())

	var delays []time.Duration
	for i := 0; i < 3; i++ {
		m.CheckHealth(context.Background())
		delays = append(delays, m.State().CurrentBackoff)
	}

	assert.Equal(t, []time.Duration{
		1000 * time.Millisecond,
		2250 * time.Millisecond,
		4750 * time.Millisecond,
	}, delays)

	m.CheckHealth(context.Background())
	state := m.State()
	assert.True(t, state.Connected)
	assert.Equal(t, 0, state.ConsecutiveFailures)
	assert.Equal(t, time.Second, state.CurrentBackoff)
	assert.True(t, state.LastFailedAttempt.IsZero())
}

func TestHealthMonitor_BackoffMonotonicToCeiling(t *testing.T) {
	bridge := &MockBridgeClient{}
	bridge.On("Probe", mock.Anything).Return(errRefused)
	m, clock := newTestMonitor(bridge, newRecordingBus())

	prev := time.Duration(0)
	for i := 0; i < 20; i++ {
		// step past any suppression window so every check probes
		clock.Advance(time.Minute)
		m.CheckHealth(context.Background())
		cur := m.State().CurrentBackoff
		require.GreaterOrEqual(t, cur, prev, "failure %d", i+1)
		require.LessOrEqual(t, cur, 30*time.Second)
		prev = cur
	}
	assert.Equal(t, 30*time.Second, prev)
}

func TestHealthMonitor_SuppressionWindow(t *testing.T) {
	bridge := &MockBridgeClient{}
	bridge.On("Probe", mock.Anything).Return(errRefused)
	bus := newRecordingBus()
	m, clock := newTestMonitor(bridge, bus)

	for i := 0; i < 5; i++ {
		m.CheckHealth(context.Background())
	}
	bridge.AssertNumberOfCalls(t, "Probe", 5)
	backoff := m.State().CurrentBackoff

	res := m.CheckHealth(context.Background())
	assert.Equal(t, domain.HealthSuspended, res.Status)
	assert.False(t, res.Connected)
	assert.ErrorIs(t, res.Err, apperrors.ErrSuspended)
	bridge.AssertNumberOfCalls(t, "Probe", 5)
	assert.Equal(t, 5, m.State().ConsecutiveFailures, "suspended checks do not count as failures")

	clock.Advance(backoff - time.Millisecond)
	assert.Equal(t, domain.HealthSuspended, m.CheckHealth(context.Background()).Status)
	bridge.AssertNumberOfCalls(t, "Probe", 5)

	clock.Advance(time.Millisecond)
	assert.Equal(t, domain.HealthDisconnected, m.CheckHealth(context.Background()).Status)
	bridge.AssertNumberOfCalls(t, "Probe", 6)
}

func TestHealthMonitor_BelowThresholdNeverSuspends(t *testing.T) {
	bridge := &MockBridgeClient{}
	bridge.On("Probe", mock.Anything).Return(errRefused)
	m, _ := newTestMonitor(bridge, newRecordingBus())

	for i := 0; i < 4; i++ {
		assert.NotEqual(t, domain.HealthSuspended, m.CheckHealth(context.Background()).Status)
	}
	assert.NoError(t, m.SuspendedError())
	bridge.AssertNumberOfCalls(t, "Probe", 4)
}

func TestHealthMonitor_StateMutatedBeforeEmit(t *testing.T) {
	bridge := &MockBridgeClient{}
	bridge.On("Probe", mock.Anything).Return(errRefused)
	bus := newRecordingBus()
	m, _ := newTestMonitor(bridge, bus)

	var seen domain.ConnectivityState
	bus.On(domain.EventBridgeDisconnected, func(domain.Event) { seen = m.State() })

	m.CheckHealth(context.Background())
	assert.Equal(t, 1, seen.ConsecutiveFailures)
	assert.False(t, seen.LastFailedAttempt.IsZero())
}

func TestHealthMonitor_RunStopsOnCancel(t *testing.T) {
	bridge := &MockBridgeClient{}
	bridge.On("Probe", mock.Anything).Return(nil)
	m, _ := newTestMonitor(bridge, newRecordingBus())
	m.cfg.Interval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return m.Connected() }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestHealthMonitor_CancelledProbeIsNotAFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	bridge := &MockBridgeClient{}
	bridge.On("Probe", mock.Anything).Run(func(mock.Arguments) { cancel() }).Return(context.Canceled)
	bus := newRecordingBus()
	m, _ := newTestMonitor(bridge, bus)

	res := m.CheckHealth(ctx)
	assert.False(t, res.Connected)
	assert.Equal(t, 0, m.State().ConsecutiveFailures)
	assert.Equal(t, 0, bus.count(domain.EventBridgeDisconnected))
}
