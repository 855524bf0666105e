package ports

import (
	"context"

	"onebarn/internal/core/domain"
)

// BridgeClient talks directly to the local video bridge process.
type BridgeClient interface {
	// Probe succeeds only when the bridge answers 2xx with image or video content.
	Probe(ctx context.Context) error
	Snapshot(ctx context.Context, cameraID domain.CameraID) (*domain.Snapshot, error)
	StreamURL(cameraID domain.CameraID) string
	Protocol() string
}

// CameraAPIClient talks to the application API tier for camera control.
type CameraAPIClient interface {
	ControlPTZ(ctx context.Context, tenantID domain.TenantID, cmd domain.PTZCommand) error
	UpdateSettings(ctx context.Context, tenantID domain.TenantID, cameraID domain.CameraID, patch domain.SettingsPatch) error
}

type MetricsSampler interface {
	Sample(ctx context.Context, stream *domain.Stream) (domain.StreamMetrics, error)
}
