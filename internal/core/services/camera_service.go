package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"onebarn/internal/core/domain"
	"onebarn/internal/core/ports"
	"onebarn/pkg/cache"
	apperrors "onebarn/pkg/errors"
	"onebarn/pkg/utils"
	"onebarn/pkg/validation"

	"go.uber.org/zap"
)

// CameraService owns the camera registry of one tenant: discovery with
// fallback to the demo set, lookups, snapshots and camera controls.
type CameraService struct {
	tenantID  domain.TenantID
	cameras   ports.CameraRepository
	bridge    ports.BridgeClient
	api       ports.CameraAPIClient
	monitor   *HealthMonitor
	bus       ports.EventBus
	sources   []domain.Camera
	snapshots *cache.Cache[string]
	logger    *zap.SugaredLogger
	now       func() time.Time
}

func NewCameraService(
	tenantID domain.TenantID,
	cameras ports.CameraRepository,
	bridge ports.BridgeClient,
	api ports.CameraAPIClient,
	monitor *HealthMonitor,
	bus ports.EventBus,
	sources []domain.Camera,
	snapshotTTL time.Duration,
	logger *zap.SugaredLogger,
) *CameraService {
	return &CameraService{
		tenantID:  tenantID,
		cameras:   cameras,
		bridge:    bridge,
		api:       api,
		monitor:   monitor,
		bus:       bus,
		sources:   sources,
		snapshots: cache.New[string](snapshotTTL),
		logger:    logger,
		now:       time.Now,
	}
}

// DiscoverCameras never returns an empty success: it yields the cameras the
// bridge serves, or the demo set when the bridge cannot be reached.
func (s *CameraService) DiscoverCameras(ctx context.Context) (*domain.DiscoveryResult, error) {
	if err := s.monitor.SuspendedError(); err != nil {
		return nil, err
	}

	if !s.monitor.Connected() {
		res := s.monitor.CheckHealth(ctx)
		if res.Status == domain.HealthSuspended {
			return nil, res.Err
		}
		if !res.Connected {
			return s.useFallback(ctx)
		}
	}

	return s.discoverFromBridge(ctx)
}

// discoverFromBridge synthesizes entries for the configured sources; the
// bridge has no listing endpoint, only the verified probe.
func (s *CameraService) discoverFromBridge(ctx context.Context) (*domain.DiscoveryResult, error) {
	if err := s.cameras.DeleteFallback(ctx); err != nil {
		return nil, apperrors.WrapInternal(err, "failed to update camera registry")
	}

	now := s.now()
	discovered := make([]*domain.Camera, 0, len(s.sources))
	for _, src := range s.sources {
		camera := src
		camera.TenantID = s.tenantID
		camera.Address = s.bridge.StreamURL(src.ID)
		camera.Status = domain.CameraOnline
		camera.LastSeen = now
		camera.IsFallback = false

		// keep settings the user already changed
		if existing, err := s.cameras.GetByID(ctx, src.ID); err == nil {
			camera.Settings = existing.Settings
		}

		if err := s.cameras.Save(ctx, &camera); err != nil {
			return nil, apperrors.WrapInternal(err, "failed to update camera registry")
		}
		discovered = append(discovered, &camera)
	}

	if len(discovered) == 0 {
		return nil, apperrors.NewBridgeUnavailableError("camera bridge is reachable but no camera sources are configured", nil)
	}

	s.logger.Infow("cameras discovered",
		"tenant_id", s.tenantID,
		"count", len(discovered),
	)
	return &domain.DiscoveryResult{Cameras: discovered}, nil
}

func (s *CameraService) useFallback(ctx context.Context) (*domain.DiscoveryResult, error) {
	now := s.now()

	existing, err := s.cameras.List(ctx)
	if err != nil {
		return nil, apperrors.WrapInternal(err, "failed to read camera registry")
	}
	for _, camera := range existing {
		if !camera.IsFallback && camera.Status != domain.CameraOffline {
			camera.Status = domain.CameraOffline
			_ = s.cameras.Save(ctx, camera)
		}
	}

	fallback := domain.FallbackCameras(s.tenantID, now)
	for _, camera := range fallback {
		if err := s.cameras.Save(ctx, camera); err != nil {
			return nil, apperrors.WrapInternal(err, "failed to update camera registry")
		}
	}

	s.logger.Infow("camera bridge unreachable, serving demo cameras",
		"tenant_id", s.tenantID,
		"count", len(fallback),
	)
	return &domain.DiscoveryResult{Cameras: fallback, UsedFallback: true}, nil
}

func (s *CameraService) ListCameras(ctx context.Context) ([]*domain.Camera, error) {
	return s.cameras.List(ctx)
}

// GetCamera looks in the registry, then in the demo set; a demo camera found
// this way is added to the registry.
func (s *CameraService) GetCamera(ctx context.Context, id domain.CameraID) (*domain.Camera, error) {
	if err := validation.ValidateCameraID(string(id)); err != nil {
		return nil, apperrors.NewInvalidInputError(err.Error())
	}

	camera, err := s.cameras.GetByID(ctx, id)
	if err == nil {
		return camera, nil
	}
	if !errors.Is(err, domain.ErrCameraNotFound) {
		return nil, apperrors.WrapInternal(err, "failed to read camera registry")
	}

	if fallback, ok := domain.FallbackCamera(s.tenantID, id, s.now()); ok {
		if err := s.cameras.Save(ctx, fallback); err != nil {
			return nil, apperrors.WrapInternal(err, "failed to update camera registry")
		}
		return fallback, nil
	}

	return nil, apperrors.NewNotFoundError(fmt.Sprintf("camera %s", id))
}

// TakeSnapshot returns the current frame as a data URL. Frames are cached
// briefly so several panels refreshing together cost one bridge request.
func (s *CameraService) TakeSnapshot(ctx context.Context, id domain.CameraID) (string, error) {
	camera, err := s.GetCamera(ctx, id)
	if err != nil {
		return "", err
	}
	if camera.IsFallback {
		return "", s.fail("snapshot", id, apperrors.NewBridgeUnavailableError(
			fmt.Sprintf("%s is a demo camera and has no live picture", camera.Name), nil))
	}
	if err := s.monitor.SuspendedError(); err != nil {
		return "", err
	}

	dataURL, err := s.snapshots.GetOrSet(ctx, "snapshot:"+string(id), func(ctx context.Context) (string, error) {
		snap, err := s.bridge.Snapshot(ctx, id)
		if err != nil {
			return "", err
		}
		return snap.DataURL(), nil
	})
	if err != nil {
		return "", s.fail("snapshot", id, err)
	}

	s.bus.Emit(domain.SnapshotTaken{CameraID: id, DataURL: dataURL, At: s.now()})
	return dataURL, nil
}

func (s *CameraService) ControlPTZ(ctx context.Context, id domain.CameraID, action domain.PTZAction, value *float64) error {
	if !action.Valid() {
		return apperrors.NewInvalidInputError(fmt.Sprintf("unknown PTZ action %q", action))
	}
	if action.RequiresValue() && value == nil {
		return apperrors.NewInvalidInputError(fmt.Sprintf("PTZ action %q needs a value", action))
	}

	camera, err := s.GetCamera(ctx, id)
	if err != nil {
		return err
	}
	if !camera.Capabilities.PTZ {
		return apperrors.NewUnsupportedError(fmt.Sprintf("%s does not support pan, tilt or zoom", camera.Name))
	}
	if camera.IsFallback {
		return s.fail("ptz", id, apperrors.NewBridgeUnavailableError(
			fmt.Sprintf("%s is a demo camera and cannot be moved", camera.Name), nil))
	}

	cmd := domain.PTZCommand{CameraID: id, Action: action, Value: value}
	if err := s.api.ControlPTZ(ctx, s.tenantID, cmd); err != nil {
		return s.fail("ptz", id, err)
	}

	s.logger.Debugw("ptz command sent",
		"tenant_id", s.tenantID,
		"camera_id", id,
		"action", action,
	)
	return nil
}

// UpdateCameraSettings validates a partial update, pushes it to the API for
// real cameras and applies it to the registry. Demo cameras are updated
// locally only.
func (s *CameraService) UpdateCameraSettings(ctx context.Context, id domain.CameraID, patch domain.SettingsPatch) (*domain.Camera, error) {
	if err := validateSettingsPatch(patch); err != nil {
		return nil, err
	}

	camera, err := s.GetCamera(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.MotionSensitivity != nil && !camera.Capabilities.MotionDetection {
		return nil, apperrors.NewUnsupportedError(fmt.Sprintf("%s has no motion detection", camera.Name))
	}
	if patch.RecordingEnabled != nil && *patch.RecordingEnabled && !camera.Capabilities.Recording {
		return nil, apperrors.NewUnsupportedError(fmt.Sprintf("%s cannot record", camera.Name))
	}

	if !camera.IsFallback {
		if err := s.api.UpdateSettings(ctx, s.tenantID, id, patch); err != nil {
			return nil, s.fail("settings", id, err)
		}
	}

	camera.Settings = patch.Apply(camera.Settings)
	if err := s.cameras.Save(ctx, camera); err != nil {
		return nil, apperrors.WrapInternal(err, "failed to update camera registry")
	}
	s.snapshots.Delete("snapshot:" + string(id))

	return camera, nil
}

// Clear empties the registry and stops the snapshot cache.
func (s *CameraService) Clear(ctx context.Context) error {
	s.snapshots.Stop()
	s.snapshots.Clear()
	return s.cameras.Clear(ctx)
}

// fail emits an Error event for a failed camera operation and returns err.
func (s *CameraService) fail(operation string, id domain.CameraID, err error) error {
	message := err.Error()
	if appErr := apperrors.GetAppError(err); appErr != nil {
		message = appErr.Message
	}

	s.logger.Warnw("camera operation failed",
		"tenant_id", s.tenantID,
		"camera_id", id,
		"operation", operation,
		"error", err,
	)
	s.bus.Emit(domain.Error{
		Operation: operation,
		CameraID:  id,
		Message:   utils.TruncateString(message, 200),
	})
	return err
}

func validateSettingsPatch(p domain.SettingsPatch) error {
	if p.IsEmpty() {
		return apperrors.NewInvalidInputError("no settings to update")
	}
	if p.Resolution != nil {
		if err := validation.ValidateResolution(*p.Resolution); err != nil {
			return apperrors.NewInvalidInputError(err.Error())
		}
	}
	if p.FrameRate != nil {
		if err := validation.ValidateFrameRate(*p.FrameRate); err != nil {
			return apperrors.NewInvalidInputError(err.Error())
		}
	}
	if p.Bitrate != nil {
		if err := validation.ValidateBitrate(*p.Bitrate); err != nil {
			return apperrors.NewInvalidInputError(err.Error())
		}
	}
	if p.MotionSensitivity != nil {
		if err := validation.ValidateMotionSensitivity(*p.MotionSensitivity); err != nil {
			return apperrors.NewInvalidInputError(err.Error())
		}
	}
	return nil
}
