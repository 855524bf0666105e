package ports

import (
	"context"

	"onebarn/internal/core/domain"
)

type CameraRepository interface {
	Save(ctx context.Context, camera *domain.Camera) error
	GetByID(ctx context.Context, id domain.CameraID) (*domain.Camera, error)
	List(ctx context.Context) ([]*domain.Camera, error)
	DeleteFallback(ctx context.Context) error
	Clear(ctx context.Context) error
}

type StreamRepository interface {
	Create(ctx context.Context, stream *domain.Stream) error
	GetByID(ctx context.Context, id domain.StreamID) (*domain.Stream, error)
	Update(ctx context.Context, stream *domain.Stream) error
	// UpdateMetrics stores a sample only while the stream is active and reports
	// whether it did.
	UpdateMetrics(ctx context.Context, id domain.StreamID, metrics domain.StreamMetrics) (bool, error)
	IncrementErrors(ctx context.Context, id domain.StreamID) error
	FindActiveByCamera(ctx context.Context, cameraID domain.CameraID) (*domain.Stream, error)
	List(ctx context.Context) ([]*domain.Stream, error)
	ListActive(ctx context.Context) ([]*domain.Stream, error)
	Clear(ctx context.Context) error
}
