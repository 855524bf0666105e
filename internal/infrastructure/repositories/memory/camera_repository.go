package memory

import (
	"context"
	"sort"
	"sync"

	"onebarn/internal/core/domain"
	"onebarn/internal/core/ports"
)

type MemoryCameraRepository struct {
	cameras map[domain.CameraID]*domain.Camera
	mu      sync.RWMutex
}

func NewMemoryCameraRepository() ports.CameraRepository {
	return &MemoryCameraRepository{
		cameras: make(map[domain.CameraID]*domain.Camera),
	}
}

func (r *MemoryCameraRepository) Save(ctx context.Context, camera *domain.Camera) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *camera
	r.cameras[camera.ID] = &c
	return nil
}

func (r *MemoryCameraRepository) GetByID(ctx context.Context, id domain.CameraID) (*domain.Camera, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	camera, exists := r.cameras[id]
	if !exists {
		return nil, domain.ErrCameraNotFound
	}

	c := *camera
	return &c, nil
}

func (r *MemoryCameraRepository) List(ctx context.Context) ([]*domain.Camera, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cameras := make([]*domain.Camera, 0, len(r.cameras))
	for _, camera := range r.cameras {
		c := *camera
		cameras = append(cameras, &c)
	}

	sort.Slice(cameras, func(i, j int) bool { return cameras[i].ID < cameras[j].ID })
	return cameras, nil
}

func (r *MemoryCameraRepository) DeleteFallback(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, camera := range r.cameras {
		if camera.IsFallback {
			delete(r.cameras, id)
		}
	}
	return nil
}

func (r *MemoryCameraRepository) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cameras = make(map[domain.CameraID]*domain.Camera)
	return nil
}
