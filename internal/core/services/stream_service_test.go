package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"onebarn/internal/core/domain"
	"onebarn/internal/core/ports"
	"onebarn/internal/infrastructure/repositories/memory"
	apperrors "onebarn/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type streamFixture struct {
	svc     *StreamService
	streams ports.StreamRepository
	bus     *recordingBus
	clock   *fakeClock
}

func newStreamFixture(t *testing.T, maxActive int) *streamFixture {
	t.Helper()
	ctx := context.Background()
	cameras := memory.NewMemoryCameraRepository()
	for _, c := range testSources() {
		camera := c
		require.NoError(t, cameras.Save(ctx, &camera))
	}
	demo, _ := domain.FallbackCamera("ranch-1", "demo-stall-1", time.Now())
	require.NoError(t, cameras.Save(ctx, demo))

	streams := memory.NewMemoryStreamRepository()
	bus := newRecordingBus()
	clock := newFakeClock()
	svc := NewStreamService("ranch-1", streams, cameras, &MockBridgeClient{}, NewQualityService(), bus, nil,
		maxActive, domain.QualityMedium, zap.NewNop().Sugar())
	svc.now = clock.Now
	return &streamFixture{svc: svc, streams: streams, bus: bus, clock: clock}
}

func TestStreamService_StartStream(t *testing.T) {
	f := newStreamFixture(t, 4)

	stream, err := f.svc.StartStream(context.Background(), "stall-a", domain.QualityHigh)
	require.NoError(t, err)
	assert.True(t, stream.Active)
	assert.Equal(t, "http://bridge.test:1984/stream/stall-a", stream.URL)
	assert.Equal(t, "hls", stream.Protocol)
	assert.Equal(t, "1920x1080", stream.Resolution)
	assert.Equal(t, 4000, stream.Bitrate)
	assert.False(t, stream.Simulated)
	assert.Contains(t, string(stream.ID), "stall-a_")

	ev, ok := f.bus.last(domain.EventStreamStarted).(domain.StreamStarted)
	require.True(t, ok)
	assert.Equal(t, stream.ID, ev.Stream.ID)
}

func TestStreamService_StartStreamIsIdempotentPerCamera(t *testing.T) {
	f := newStreamFixture(t, 4)
	ctx := context.Background()

	first, err := f.svc.StartStream(ctx, "stall-a", domain.QualityMedium)
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	second, err := f.svc.StartStream(ctx, "stall-a", domain.QualityLow)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, f.bus.count(domain.EventStreamStarted))
}

func TestStreamService_ConcurrentStartsShareOneStream(t *testing.T) {
	f := newStreamFixture(t, 4)

	var wg sync.WaitGroup
	ids := make([]domain.StreamID, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := f.svc.StartStream(context.Background(), "paddock", "")
			if err == nil {
				ids[i] = s.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, 1, f.bus.count(domain.EventStreamStarted))
}

func TestStreamService_StartStreamErrors(t *testing.T) {
	f := newStreamFixture(t, 4)
	ctx := context.Background()

	_, err := f.svc.StartStream(ctx, "stall-a", "ultra")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = f.svc.StartStream(ctx, "foaling-barn", domain.QualityLow)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	assert.Equal(t, 0, f.bus.count(domain.EventStreamStarted))
}

func TestStreamService_CapacityLimit(t *testing.T) {
	f := newStreamFixture(t, 2)
	ctx := context.Background()

	_, err := f.svc.StartStream(ctx, "stall-a", domain.QualityLow)
	require.NoError(t, err)
	second, err := f.svc.StartStream(ctx, "paddock", domain.QualityLow)
	require.NoError(t, err)

	_, err = f.svc.StartStream(ctx, "demo-stall-1", domain.QualityLow)
	assert.ErrorIs(t, err, apperrors.ErrCapacityExceeded)

	require.NoError(t, f.svc.StopStream(ctx, second.ID))
	demo, err := f.svc.StartStream(ctx, "demo-stall-1", domain.QualityLow)
	require.NoError(t, err)
	assert.True(t, demo.Simulated)
}

func TestStreamService_StopStreamIsIdempotent(t *testing.T) {
	f := newStreamFixture(t, 4)
	ctx := context.Background()

	stream, err := f.svc.StartStream(ctx, "stall-a", domain.QualityMedium)
	require.NoError(t, err)
	f.clock.Advance(90 * time.Second)

	require.NoError(t, f.svc.StopStream(ctx, stream.ID))
	require.NoError(t, f.svc.StopStream(ctx, stream.ID))
	assert.Equal(t, 1, f.bus.count(domain.EventStreamStopped))

	stopped, err := f.svc.GetStream(ctx, stream.ID)
	require.NoError(t, err)
	assert.False(t, stopped.Active)
	require.NotNil(t, stopped.EndedAt)
	assert.Equal(t, 90*time.Second, stopped.EndedAt.Sub(stopped.StartedAt))

	err = f.svc.StopStream(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	restarted, err := f.svc.StartStream(ctx, "stall-a", domain.QualityMedium)
	require.NoError(t, err)
	assert.NotEqual(t, stream.ID, restarted.ID)
}

func TestStreamService_StopAll(t *testing.T) {
	f := newStreamFixture(t, 4)
	ctx := context.Background()

	for _, id := range []domain.CameraID{"stall-a", "paddock", "demo-stall-1"} {
		_, err := f.svc.StartStream(ctx, id, domain.QualityLow)
		require.NoError(t, err)
	}

	f.svc.StopAll(ctx)
	active, err := f.streams.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
	assert.Equal(t, 3, f.bus.count(domain.EventStreamStopped))

	all, err := f.svc.ListStreams(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestStreamService_AutoQualityFollowsBandwidth(t *testing.T) {
	f := newStreamFixture(t, 4)
	ctx := context.Background()

	s, err := f.svc.StartStream(ctx, "stall-a", domain.QualityAuto)
	require.NoError(t, err)
	assert.Equal(t, 1500, s.Bitrate, "medium until bandwidth has been sampled")
	require.NoError(t, f.svc.StopStream(ctx, s.ID))

	f.svc.ObserveMetrics(domain.StreamMetrics{Bandwidth: 600})
	f.clock.Advance(time.Millisecond)
	s, err = f.svc.StartStream(ctx, "stall-a", domain.QualityAuto)
	require.NoError(t, err)
	assert.Equal(t, 500, s.Bitrate)
	assert.Equal(t, domain.QualityAuto, s.Quality)
}
