package bridge

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"onebarn/internal/core/domain"
	"onebarn/internal/core/ports"
	"onebarn/pkg/tracing"
)

// Sample measures a live stream by timing a HEAD request against its URL.
// The bridge may report the delivered rate in X-Stream-Bitrate (kbps);
// otherwise the negotiated rate is assumed.
func (c *Client) Sample(ctx context.Context, stream *domain.Stream) (domain.StreamMetrics, error) {
	ctx, span := tracing.TraceBridgeCall(ctx, "bridge.sample", string(stream.CameraID))
	defer span.End()

	start := time.Now()
	resp, err := c.http.R().SetContext(ctx).Head(stream.URL)
	latency := time.Since(start)
	if err != nil {
		tracing.RecordError(ctx, err)
		return domain.StreamMetrics{}, fmt.Errorf("sample %s: %w", stream.ID, err)
	}
	if !resp.IsSuccess() {
		return domain.StreamMetrics{}, fmt.Errorf("sample %s: status %d", stream.ID, resp.StatusCode())
	}

	bitrate := stream.Bitrate
	if v, err := strconv.Atoi(resp.Header().Get("X-Stream-Bitrate")); err == nil && v > 0 {
		bitrate = v
	}

	return domain.StreamMetrics{
		Bitrate:   bitrate,
		FPS:       stream.FrameRate,
		Latency:   latency,
		Bandwidth: bitrate,
		SampledAt: time.Now(),
	}, nil
}

// SimulatedSampler produces plausible metrics for streams of fallback cameras,
// which have no media behind them.
type SimulatedSampler struct {
	mu   sync.Mutex
	rand *rand.Rand
	now  func() time.Time
}

func NewSimulatedSampler(seed int64) *SimulatedSampler {
	return &SimulatedSampler{
		rand: rand.New(rand.NewSource(seed)),
		now:  time.Now,
	}
}

func (s *SimulatedSampler) Sample(ctx context.Context, stream *domain.Stream) (domain.StreamMetrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// bitrate within 90-105% of target
	bitrate := int(float64(stream.Bitrate) * (0.90 + 0.15*s.rand.Float64()))
	fps := stream.FrameRate
	if fps > 1 && s.rand.Intn(4) == 0 {
		fps--
	}

	return domain.StreamMetrics{
		Bitrate:    bitrate,
		FPS:        fps,
		Latency:    time.Duration(40+s.rand.Intn(80)) * time.Millisecond,
		PacketLoss: s.rand.Float64() * 0.5,
		Bandwidth:  bitrate + bitrate/5,
		SampledAt:  s.now(),
	}, nil
}

// RoutingSampler sends simulated streams to the simulated sampler and live
// streams to the bridge.
type RoutingSampler struct {
	Live      ports.MetricsSampler
	Simulated ports.MetricsSampler
}

func (r RoutingSampler) Sample(ctx context.Context, stream *domain.Stream) (domain.StreamMetrics, error) {
	if stream.Simulated {
		return r.Simulated.Sample(ctx, stream)
	}
	return r.Live.Sample(ctx, stream)
}
