package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"onebarn/internal/core/domain"
	"onebarn/internal/core/ports"
	"onebarn/pkg/config"
	apperrors "onebarn/pkg/errors"
	"onebarn/pkg/retry"
	"onebarn/pkg/utils"
	"onebarn/pkg/validation"

	"go.uber.org/zap"
)

// BridgeFactory builds the bridge transport for a host and port together with
// the sampler used for stream metrics.
type BridgeFactory func(host string, port int) (ports.BridgeClient, ports.MetricsSampler)

// Dependencies are the adapters a BridgeService is assembled from.
type Dependencies struct {
	NewBridge BridgeFactory
	API       ports.CameraAPIClient
	Cameras   ports.CameraRepository
	Streams   ports.StreamRepository
	Bus       ports.EventBus
	Recorder  ports.BridgeMetricsRecorder
	Logger    *zap.SugaredLogger
}

type Option func(*bridgeOptions)

type bridgeOptions struct {
	host  string
	port  int
	sinks []ports.EventSink
	now   func() time.Time
}

// WithBridgeAddress overrides the configured bridge host and port.
func WithBridgeAddress(host string, port int) Option {
	return func(o *bridgeOptions) {
		if host != "" {
			o.host = host
		}
		if port > 0 {
			o.port = port
		}
	}
}

// WithEventSinks forwards every bus event to the given sinks.
func WithEventSinks(sinks ...ports.EventSink) Option {
	return func(o *bridgeOptions) {
		o.sinks = append(o.sinks, sinks...)
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *bridgeOptions) {
		o.now = now
	}
}

// BridgeService is the per-tenant entry point the dashboard talks to. It owns
// the health loop and the metrics scheduler and tears both down in Destroy.
type BridgeService struct {
	tenantID  domain.TenantID
	monitor   *HealthMonitor
	cameras   *CameraService
	streams   *StreamService
	scheduler *MetricsScheduler
	bus       ports.EventBus
	forwarder *eventForwarder
	logger    *zap.SugaredLogger
	now       func() time.Time

	cancel      context.CancelFunc
	wg          sync.WaitGroup
	destroyed   atomic.Bool
	destroyOnce sync.Once
}

// NewBridgeService wires the tenant's services, probes the bridge once and
// starts the background loops before returning.
func NewBridgeService(
	ctx context.Context,
	tenantID domain.TenantID,
	cfg *config.Config,
	deps Dependencies,
	opts ...Option,
) (*BridgeService, error) {
	if tenantID == "" {
		return nil, apperrors.NewInvalidInputError("tenant ID is required")
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("invalid camera bridge configuration: %v", err))
	}
	if deps.NewBridge == nil || deps.Cameras == nil || deps.Streams == nil || deps.Bus == nil {
		return nil, apperrors.NewInternalError("camera bridge service is missing dependencies")
	}

	o := bridgeOptions{
		host: cfg.Bridge.Host,
		port: cfg.Bridge.Port,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	logger = logger.With("tenant_id", tenantID)

	recorder := deps.Recorder
	if recorder == nil {
		recorder = noopRecorder{}
	}

	bridge, sampler := deps.NewBridge(o.host, o.port)

	monitor := NewHealthMonitor(tenantID, bridge, deps.Bus, recorder, HealthMonitorConfig{
		Interval:         cfg.Health.Interval,
		FailureThreshold: cfg.Health.FailureThreshold,
		Backoff: retry.Backoff{
			InitialDelay: cfg.Health.InitialBackoff,
			MaxDelay:     cfg.Health.MaxBackoff,
			Multiplier:   cfg.Health.Multiplier,
			MaxJitter:    cfg.Health.MaxJitter,
		},
	}, logger)
	monitor.now = o.now

	cameras := NewCameraService(tenantID, deps.Cameras, bridge, deps.API, monitor, deps.Bus,
		CamerasFromSources(cfg.Bridge.Sources), cfg.Snapshot.CacheTTL, logger)
	cameras.now = o.now

	streams := NewStreamService(tenantID, deps.Streams, deps.Cameras, bridge, NewQualityService(), deps.Bus,
		recorder, cfg.Streams.MaxActive, domain.Quality(cfg.Streams.DefaultQuality), logger)
	streams.now = o.now

	scheduler := NewMetricsScheduler(tenantID, deps.Streams, sampler, deps.Bus, recorder,
		cfg.Streams.MetricsInterval, streams.ObserveMetrics, logger)
	scheduler.now = o.now

	b := &BridgeService{
		tenantID:  tenantID,
		monitor:   monitor,
		cameras:   cameras,
		streams:   streams,
		scheduler: scheduler,
		bus:       deps.Bus,
		logger:    logger,
		now:       o.now,
	}

	for _, name := range domain.AllEvents {
		name := name
		deps.Bus.On(name, func(domain.Event) { recorder.RecordEvent(tenantID, name) })
	}
	if len(o.sinks) > 0 {
		b.forwarder = newEventForwarder(tenantID, o.sinks, forwarderQueueSize, logger)
		for _, name := range domain.AllEvents {
			deps.Bus.On(name, b.forwarder.enqueue)
		}
		go b.forwarder.run()
	}

	res := monitor.CheckHealth(ctx)
	logger.Infow("camera bridge service started",
		"bridge", fmt.Sprintf("%s:%d", o.host, o.port),
		"connected", res.Connected,
		"status", res.Status,
	)

	loopCtx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.wg.Add(2)
	go func() {
		defer b.wg.Done()
		monitor.Run(loopCtx)
	}()
	go func() {
		defer b.wg.Done()
		scheduler.Run(loopCtx)
	}()

	return b, nil
}

func (b *BridgeService) TenantID() domain.TenantID {
	return b.tenantID
}

func (b *BridgeService) CheckHealth(ctx context.Context) domain.HealthResult {
	if err := b.checkAlive(); err != nil {
		return domain.HealthResult{Status: domain.HealthDisconnected, Err: err}
	}
	return b.monitor.CheckHealth(ctx)
}

func (b *BridgeService) Connectivity() domain.ConnectivityState {
	return b.monitor.State()
}

func (b *BridgeService) DiscoverCameras(ctx context.Context) (*domain.DiscoveryResult, error) {
	if err := b.checkAlive(); err != nil {
		return nil, err
	}
	return b.cameras.DiscoverCameras(ctx)
}

func (b *BridgeService) ListCameras(ctx context.Context) ([]*domain.Camera, error) {
	if err := b.checkAlive(); err != nil {
		return nil, err
	}
	return b.cameras.ListCameras(ctx)
}

func (b *BridgeService) GetCamera(ctx context.Context, id domain.CameraID) (*domain.Camera, error) {
	if err := b.checkAlive(); err != nil {
		return nil, err
	}
	return b.cameras.GetCamera(ctx, id)
}

func (b *BridgeService) StartStream(ctx context.Context, cameraID domain.CameraID, quality domain.Quality) (*domain.Stream, error) {
	if err := b.checkAlive(); err != nil {
		return nil, err
	}
	if err := validation.ValidateCameraID(string(cameraID)); err != nil {
		return nil, apperrors.NewInvalidInputError(err.Error())
	}
	return b.streams.StartStream(ctx, cameraID, quality)
}

func (b *BridgeService) StopStream(ctx context.Context, streamID domain.StreamID) error {
	if err := b.checkAlive(); err != nil {
		return err
	}
	return b.streams.StopStream(ctx, streamID)
}

func (b *BridgeService) GetStream(ctx context.Context, streamID domain.StreamID) (*domain.Stream, error) {
	if err := b.checkAlive(); err != nil {
		return nil, err
	}
	return b.streams.GetStream(ctx, streamID)
}

func (b *BridgeService) ListStreams(ctx context.Context) ([]*domain.Stream, error) {
	if err := b.checkAlive(); err != nil {
		return nil, err
	}
	return b.streams.ListStreams(ctx)
}

func (b *BridgeService) TakeSnapshot(ctx context.Context, cameraID domain.CameraID) (string, error) {
	if err := b.checkAlive(); err != nil {
		return "", err
	}
	return b.cameras.TakeSnapshot(ctx, cameraID)
}

func (b *BridgeService) ControlPTZ(ctx context.Context, cameraID domain.CameraID, action domain.PTZAction, value *float64) error {
	if err := b.checkAlive(); err != nil {
		return err
	}
	return b.cameras.ControlPTZ(ctx, cameraID, action, value)
}

func (b *BridgeService) UpdateCameraSettings(ctx context.Context, cameraID domain.CameraID, patch domain.SettingsPatch) (*domain.Camera, error) {
	if err := b.checkAlive(); err != nil {
		return nil, err
	}
	return b.cameras.UpdateCameraSettings(ctx, cameraID, patch)
}

// PublishAlert puts an alert raised by another component (motion or vision
// analysis) on the bus.
func (b *BridgeService) PublishAlert(ctx context.Context, alert domain.Alert) error {
	if err := b.checkAlive(); err != nil {
		return err
	}

	alert.Message = utils.SanitizeString(alert.Message)
	if alert.Message == "" {
		return apperrors.NewInvalidInputError("alert message is required")
	}
	switch alert.Severity {
	case "":
		alert.Severity = domain.SeverityInfo
	case domain.SeverityInfo, domain.SeverityWarning, domain.SeverityCritical:
	default:
		return apperrors.NewInvalidInputError(fmt.Sprintf("unknown alert severity %q", alert.Severity))
	}
	if alert.CameraID != "" {
		if _, err := b.cameras.GetCamera(ctx, alert.CameraID); err != nil {
			return err
		}
	}
	if alert.At.IsZero() {
		alert.At = b.now()
	}

	b.bus.Emit(alert)
	return nil
}

func (b *BridgeService) On(name domain.EventName, handler ports.EventHandler) ports.SubscriptionID {
	return b.bus.On(name, handler)
}

func (b *BridgeService) Off(name domain.EventName, id ports.SubscriptionID) bool {
	return b.bus.Off(name, id)
}

// Destroy stops the background loops, stops every active stream so listeners
// see StreamStopped, and clears the registry and subscriptions. Calling it
// again does nothing.
func (b *BridgeService) Destroy() {
	b.destroyOnce.Do(func() {
		b.destroyed.Store(true)
		b.cancel()
		b.wg.Wait()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		b.streams.StopAll(ctx)
		if err := b.cameras.Clear(ctx); err != nil {
			b.logger.Warnw("failed to clear camera registry", "error", err)
		}
		if err := b.streams.Clear(ctx); err != nil {
			b.logger.Warnw("failed to clear stream table", "error", err)
		}

		b.bus.Clear()
		if b.forwarder != nil {
			b.forwarder.close()
		}
		b.logger.Infow("camera bridge service stopped")
	})
}

func (b *BridgeService) checkAlive() error {
	if b.destroyed.Load() {
		return apperrors.NewBridgeUnavailableError("camera bridge service has been shut down", domain.ErrServiceStopped)
	}
	return nil
}

// CamerasFromSources turns configured bridge sources into registry entries
// with default settings.
func CamerasFromSources(sources []config.CameraSource) []domain.Camera {
	cameras := make([]domain.Camera, 0, len(sources))
	for _, src := range sources {
		name := src.Name
		if name == "" {
			name = src.ID
		}
		if src.Location != "" && !strings.Contains(name, src.Location) {
			name = fmt.Sprintf("%s (%s)", name, src.Location)
		}
		cameras = append(cameras, domain.Camera{
			ID:         domain.CameraID(src.ID),
			MACAddress: src.MACAddress,
			Name:       name,
			Model:      src.Model,
			Capabilities: domain.CameraCapabilities{
				PTZ:             src.PTZ,
				Audio:           src.Audio,
				NightVision:     true,
				MotionDetection: true,
				Recording:       true,
			},
			Settings: domain.CameraSettings{
				Resolution:        "1280x720",
				FrameRate:         25,
				Bitrate:           1500,
				MotionSensitivity: 50,
			},
			Status: domain.CameraOffline,
		})
	}
	return cameras
}

var _ ports.CameraBridge = (*BridgeService)(nil)
