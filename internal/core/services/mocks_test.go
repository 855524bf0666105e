package services

import (
	"context"
	"sync"
	"time"

	"onebarn/internal/core/domain"
	"onebarn/internal/core/ports"

	"github.com/stretchr/testify/mock"
)

type MockBridgeClient struct {
	mock.Mock
}

func (m *MockBridgeClient) Probe(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockBridgeClient) Snapshot(ctx context.Context, cameraID domain.CameraID) (*domain.Snapshot, error) {
	args := m.Called(ctx, cameraID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Snapshot), args.Error(1)
}

func (m *MockBridgeClient) StreamURL(cameraID domain.CameraID) string {
	return "http://bridge.test:1984/stream/" + string(cameraID)
}

func (m *MockBridgeClient) Protocol() string {
	return "hls"
}

type MockCameraAPIClient struct {
	mock.Mock
}

func (m *MockCameraAPIClient) ControlPTZ(ctx context.Context, tenantID domain.TenantID, cmd domain.PTZCommand) error {
	args := m.Called(ctx, tenantID, cmd)
	return args.Error(0)
}

func (m *MockCameraAPIClient) UpdateSettings(ctx context.Context, tenantID domain.TenantID, cameraID domain.CameraID, patch domain.SettingsPatch) error {
	args := m.Called(ctx, tenantID, cameraID, patch)
	return args.Error(0)
}

type MockMetricsSampler struct {
	mock.Mock
}

func (m *MockMetricsSampler) Sample(ctx context.Context, stream *domain.Stream) (domain.StreamMetrics, error) {
	args := m.Called(ctx, stream)
	return args.Get(0).(domain.StreamMetrics), args.Error(1)
}

// recordingBus is a minimal synchronous bus that keeps every emitted event.
type recordingBus struct {
	mu       sync.Mutex
	events   []domain.Event
	handlers map[domain.EventName][]ports.EventHandler
}

func newRecordingBus() *recordingBus {
	return &recordingBus{handlers: make(map[domain.EventName][]ports.EventHandler)}
}

func (b *recordingBus) On(name domain.EventName, h ports.EventHandler) ports.SubscriptionID {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], h)
	return ports.SubscriptionID(len(b.handlers[name]))
}

func (b *recordingBus) Off(domain.EventName, ports.SubscriptionID) bool { return false }

func (b *recordingBus) Emit(e domain.Event) {
	b.mu.Lock()
	b.events = append(b.events, e)
	hs := b.handlers[e.Name()]
	b.mu.Unlock()
	for _, h := range hs {
		h(e)
	}
}

func (b *recordingBus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[domain.EventName][]ports.EventHandler)
}

func (b *recordingBus) count(name domain.EventName) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e.Name() == name {
			n++
		}
	}
	return n
}

func (b *recordingBus) last(name domain.EventName) domain.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.events) - 1; i >= 0; i-- {
		if b.events[i].Name() == name {
			return b.events[i]
		}
	}
	return nil
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
