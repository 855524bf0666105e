package ports

import (
	"context"
	"time"

	"onebarn/internal/core/domain"
)

type EventHandler func(event domain.Event)

type SubscriptionID uint64

type EventBus interface {
	On(name domain.EventName, handler EventHandler) SubscriptionID
	Off(name domain.EventName, id SubscriptionID) bool
	Emit(event domain.Event)
	Clear()
}

// EventSink receives a tenant's events outside the process (pub/sub, MQTT).
type EventSink interface {
	Publish(ctx context.Context, tenantID domain.TenantID, event domain.Event) error
}

type BridgeMetricsRecorder interface {
	RecordProbe(tenantID domain.TenantID, ok bool, duration time.Duration)
	SetConnectivity(tenantID domain.TenantID, state domain.ConnectivityState)
	SetActiveStreams(tenantID domain.TenantID, count int)
	RecordStreamMetrics(tenantID domain.TenantID, cameraID domain.CameraID, metrics domain.StreamMetrics)
	RecordEvent(tenantID domain.TenantID, name domain.EventName)
}
