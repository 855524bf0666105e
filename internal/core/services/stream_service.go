package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"onebarn/internal/core/domain"
	"onebarn/internal/core/ports"
	apperrors "onebarn/pkg/errors"
	"onebarn/pkg/utils"
	"onebarn/pkg/validation"

	"go.uber.org/zap"
)

// StreamService enforces at most one active stream per camera. Start and stop
// are serialized; events are emitted after the table is updated.
type StreamService struct {
	tenantID       domain.TenantID
	streams        ports.StreamRepository
	cameras        ports.CameraRepository
	bridge         ports.BridgeClient
	quality        *QualityService
	bus            ports.EventBus
	recorder       ports.BridgeMetricsRecorder
	maxActive      int
	defaultQuality domain.Quality
	logger         *zap.SugaredLogger
	now            func() time.Time

	mu            sync.Mutex
	lastBandwidth atomic.Int64
}

func NewStreamService(
	tenantID domain.TenantID,
	streams ports.StreamRepository,
	cameras ports.CameraRepository,
	bridge ports.BridgeClient,
	quality *QualityService,
	bus ports.EventBus,
	recorder ports.BridgeMetricsRecorder,
	maxActive int,
	defaultQuality domain.Quality,
	logger *zap.SugaredLogger,
) *StreamService {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	if defaultQuality == "" {
		defaultQuality = domain.QualityMedium
	}
	return &StreamService{
		tenantID:       tenantID,
		streams:        streams,
		cameras:        cameras,
		bridge:         bridge,
		quality:        quality,
		bus:            bus,
		recorder:       recorder,
		maxActive:      maxActive,
		defaultQuality: defaultQuality,
		logger:         logger,
		now:            time.Now,
	}
}

// StartStream returns the camera's active stream if there is one, otherwise
// creates, stores and announces a new stream.
func (s *StreamService) StartStream(ctx context.Context, cameraID domain.CameraID, quality domain.Quality) (*domain.Stream, error) {
	if quality == "" {
		quality = s.defaultQuality
	}
	if err := validation.ValidateQuality(string(quality)); err != nil {
		return nil, apperrors.NewInvalidInputError(err.Error())
	}

	camera, err := s.cameras.GetByID(ctx, cameraID)
	if err != nil {
		if errors.Is(err, domain.ErrCameraNotFound) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("camera %s", cameraID))
		}
		return nil, apperrors.WrapInternal(err, "failed to read camera registry")
	}

	s.mu.Lock()

	if existing, err := s.streams.FindActiveByCamera(ctx, cameraID); err == nil {
		s.mu.Unlock()
		return existing, nil
	}

	active, err := s.streams.ListActive(ctx)
	if err != nil {
		s.mu.Unlock()
		return nil, apperrors.WrapInternal(err, "failed to read stream table")
	}
	if s.maxActive > 0 && len(active) >= s.maxActive {
		s.mu.Unlock()
		return nil, apperrors.NewCapacityExceededError(
			fmt.Sprintf("%d streams are already running, stop one before starting another", len(active)))
	}

	profile := s.quality.Resolve(quality, int(s.lastBandwidth.Load()))
	now := s.now()
	stream := &domain.Stream{
		ID:         domain.StreamID(utils.GenerateStreamID(string(cameraID), now)),
		CameraID:   cameraID,
		URL:        s.bridge.StreamURL(cameraID),
		Protocol:   s.bridge.Protocol(),
		Resolution: fmt.Sprintf("%dx%d", profile.Width, profile.Height),
		FrameRate:  profile.FPS,
		Bitrate:    profile.Bitrate,
		Active:     true,
		StartedAt:  now,
		Quality:    quality,
		Simulated:  camera.IsFallback,
	}

	if err := s.streams.Create(ctx, stream); err != nil {
		s.mu.Unlock()
		return nil, apperrors.WrapInternal(err, "failed to store stream")
	}
	count := len(active) + 1
	s.mu.Unlock()

	s.logger.Infow("stream started",
		"tenant_id", s.tenantID,
		"camera_id", cameraID,
		"stream_id", stream.ID,
		"quality", quality,
		"profile", profile.Quality,
	)
	s.recorder.SetActiveStreams(s.tenantID, count)
	s.bus.Emit(domain.StreamStarted{Stream: stream.Clone()})

	return stream, nil
}

// StopStream marks a stream inactive and keeps it in the table. Stopping an
// inactive stream succeeds without emitting anything.
func (s *StreamService) StopStream(ctx context.Context, streamID domain.StreamID) error {
	s.mu.Lock()

	stream, err := s.streams.GetByID(ctx, streamID)
	if err != nil {
		s.mu.Unlock()
		if errors.Is(err, domain.ErrStreamNotFound) {
			return apperrors.NewNotFoundError(fmt.Sprintf("stream %s", streamID))
		}
		return apperrors.WrapInternal(err, "failed to read stream table")
	}
	if !stream.Active {
		s.mu.Unlock()
		return nil
	}

	ended := s.now()
	stream.Active = false
	stream.EndedAt = &ended
	if err := s.streams.Update(ctx, stream); err != nil {
		s.mu.Unlock()
		return apperrors.WrapInternal(err, "failed to update stream")
	}
	active, _ := s.streams.ListActive(ctx)
	s.mu.Unlock()

	s.logger.Infow("stream stopped",
		"tenant_id", s.tenantID,
		"camera_id", stream.CameraID,
		"stream_id", streamID,
		"duration", utils.FormatDuration(ended.Sub(stream.StartedAt)),
	)
	s.recorder.SetActiveStreams(s.tenantID, len(active))
	s.bus.Emit(domain.StreamStopped{Stream: stream.Clone()})

	return nil
}

// StopAll stops every active stream through StopStream.
func (s *StreamService) StopAll(ctx context.Context) {
	active, err := s.streams.ListActive(ctx)
	if err != nil {
		s.logger.Warnw("failed to list active streams", "tenant_id", s.tenantID, "error", err)
		return
	}
	for _, stream := range active {
		if err := s.StopStream(ctx, stream.ID); err != nil {
			s.logger.Warnw("failed to stop stream",
				"tenant_id", s.tenantID,
				"stream_id", stream.ID,
				"error", err,
			)
		}
	}
}

func (s *StreamService) GetStream(ctx context.Context, streamID domain.StreamID) (*domain.Stream, error) {
	if err := validation.ValidateStreamID(string(streamID)); err != nil {
		return nil, apperrors.NewInvalidInputError(err.Error())
	}
	stream, err := s.streams.GetByID(ctx, streamID)
	if err != nil {
		if errors.Is(err, domain.ErrStreamNotFound) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("stream %s", streamID))
		}
		return nil, apperrors.WrapInternal(err, "failed to read stream table")
	}
	return stream, nil
}

func (s *StreamService) ListStreams(ctx context.Context) ([]*domain.Stream, error) {
	return s.streams.List(ctx)
}

// ObserveMetrics records the latest sampled bandwidth for auto quality.
func (s *StreamService) ObserveMetrics(m domain.StreamMetrics) {
	if m.Bandwidth > 0 {
		s.lastBandwidth.Store(int64(m.Bandwidth))
	}
}

// Clear empties the stream table.
func (s *StreamService) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streams.Clear(ctx)
}
