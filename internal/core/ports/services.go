package ports

import (
	"context"

	"onebarn/internal/core/domain"
)

type CameraBridge interface {
	TenantID() domain.TenantID
	CheckHealth(ctx context.Context) domain.HealthResult
	Connectivity() domain.ConnectivityState
	DiscoverCameras(ctx context.Context) (*domain.DiscoveryResult, error)
	ListCameras(ctx context.Context) ([]*domain.Camera, error)
	GetCamera(ctx context.Context, id domain.CameraID) (*domain.Camera, error)
	StartStream(ctx context.Context, cameraID domain.CameraID, quality domain.Quality) (*domain.Stream, error)
	StopStream(ctx context.Context, streamID domain.StreamID) error
	GetStream(ctx context.Context, streamID domain.StreamID) (*domain.Stream, error)
	ListStreams(ctx context.Context) ([]*domain.Stream, error)
	TakeSnapshot(ctx context.Context, cameraID domain.CameraID) (string, error)
	ControlPTZ(ctx context.Context, cameraID domain.CameraID, action domain.PTZAction, value *float64) error
	UpdateCameraSettings(ctx context.Context, cameraID domain.CameraID, patch domain.SettingsPatch) (*domain.Camera, error)
	PublishAlert(ctx context.Context, alert domain.Alert) error
	On(name domain.EventName, handler EventHandler) SubscriptionID
	Off(name domain.EventName, id SubscriptionID) bool
	Destroy()
}

type BridgeProvider interface {
	Get(ctx context.Context, tenantID domain.TenantID) (CameraBridge, error)
	Tenants() []domain.TenantID
}
