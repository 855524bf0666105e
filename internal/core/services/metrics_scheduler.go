package services

import (
	"context"
	"time"

	"onebarn/internal/core/domain"
	"onebarn/internal/core/ports"

	"go.uber.org/zap"
)

// MetricsScheduler samples every active stream of a tenant on one shared
// ticker. A stream stopped between listing and sampling is skipped.
type MetricsScheduler struct {
	tenantID domain.TenantID
	streams  ports.StreamRepository
	sampler  ports.MetricsSampler
	bus      ports.EventBus
	recorder ports.BridgeMetricsRecorder
	interval time.Duration
	observe  func(domain.StreamMetrics)
	logger   *zap.SugaredLogger
	now      func() time.Time
}

func NewMetricsScheduler(
	tenantID domain.TenantID,
	streams ports.StreamRepository,
	sampler ports.MetricsSampler,
	bus ports.EventBus,
	recorder ports.BridgeMetricsRecorder,
	interval time.Duration,
	observe func(domain.StreamMetrics),
	logger *zap.SugaredLogger,
) *MetricsScheduler {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	if observe == nil {
		observe = func(domain.StreamMetrics) {}
	}
	return &MetricsScheduler{
		tenantID: tenantID,
		streams:  streams,
		sampler:  sampler,
		bus:      bus,
		recorder: recorder,
		interval: interval,
		observe:  observe,
		logger:   logger,
		now:      time.Now,
	}
}

// Run samples on every tick until ctx is cancelled.
func (s *MetricsScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			s.SampleActive(ctx)
		}
	}
}

// SampleActive takes one sample of each active stream and returns how many
// samples were published.
func (s *MetricsScheduler) SampleActive(ctx context.Context) int {
	active, err := s.streams.ListActive(ctx)
	if err != nil {
		s.logger.Warnw("failed to list active streams", "tenant_id", s.tenantID, "error", err)
		return 0
	}

	published := 0
	for _, stream := range active {
		if ctx.Err() != nil {
			return published
		}

		metrics, err := s.sampler.Sample(ctx, stream)
		if err != nil {
			if incErr := s.streams.IncrementErrors(ctx, stream.ID); incErr != nil {
				s.logger.Debugw("failed to count sample error", "stream_id", stream.ID, "error", incErr)
			}
			s.logger.Debugw("stream sample failed",
				"tenant_id", s.tenantID,
				"stream_id", stream.ID,
				"error", err,
			)
			continue
		}
		if metrics.SampledAt.IsZero() {
			metrics.SampledAt = s.now()
		}

		stillActive, err := s.streams.UpdateMetrics(ctx, stream.ID, metrics)
		if err != nil || !stillActive {
			continue
		}

		s.recorder.RecordStreamMetrics(s.tenantID, stream.CameraID, metrics)
		s.observe(metrics)
		s.bus.Emit(domain.StreamMetricsSampled{
			StreamID: stream.ID,
			CameraID: stream.CameraID,
			Metrics:  metrics,
		})
		published++
	}
	return published
}
