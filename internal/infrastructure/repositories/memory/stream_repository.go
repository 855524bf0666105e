package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"onebarn/internal/core/domain"
	"onebarn/internal/core/ports"
)

// MemoryStreamRepository keeps every stream of one service instance, active or
// stopped, until Clear. Callers always receive copies.
type MemoryStreamRepository struct {
	streams map[domain.StreamID]*domain.Stream
	mu      sync.RWMutex
}

func NewMemoryStreamRepository() ports.StreamRepository {
	return &MemoryStreamRepository{
		streams: make(map[domain.StreamID]*domain.Stream),
	}
}

func (r *MemoryStreamRepository) Create(ctx context.Context, stream *domain.Stream) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.streams[stream.ID]; exists {
		return fmt.Errorf("stream already exists: %s", stream.ID)
	}

	r.streams[stream.ID] = stream.Clone()
	return nil
}

func (r *MemoryStreamRepository) GetByID(ctx context.Context, id domain.StreamID) (*domain.Stream, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stream, exists := r.streams[id]
	if !exists {
		return nil, domain.ErrStreamNotFound
	}

	return stream.Clone(), nil
}

func (r *MemoryStreamRepository) Update(ctx context.Context, stream *domain.Stream) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.streams[stream.ID]; !exists {
		return domain.ErrStreamNotFound
	}

	r.streams[stream.ID] = stream.Clone()
	return nil
}

func (r *MemoryStreamRepository) UpdateMetrics(ctx context.Context, id domain.StreamID, metrics domain.StreamMetrics) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stream, exists := r.streams[id]
	if !exists {
		return false, domain.ErrStreamNotFound
	}
	if !stream.Active {
		return false, nil
	}

	stream.Metrics = metrics
	if metrics.Bitrate > 0 {
		stream.Bitrate = metrics.Bitrate
	}
	return true, nil
}

func (r *MemoryStreamRepository) IncrementErrors(ctx context.Context, id domain.StreamID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stream, exists := r.streams[id]
	if !exists {
		return domain.ErrStreamNotFound
	}

	stream.ErrorCount++
	return nil
}

func (r *MemoryStreamRepository) FindActiveByCamera(ctx context.Context, cameraID domain.CameraID) (*domain.Stream, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, stream := range r.streams {
		if stream.Active && stream.CameraID == cameraID {
			return stream.Clone(), nil
		}
	}

	return nil, domain.ErrStreamNotFound
}

func (r *MemoryStreamRepository) List(ctx context.Context) ([]*domain.Stream, error) {
	return r.collect(func(*domain.Stream) bool { return true }), nil
}

func (r *MemoryStreamRepository) ListActive(ctx context.Context) ([]*domain.Stream, error) {
	return r.collect(func(s *domain.Stream) bool { return s.Active }), nil
}

func (r *MemoryStreamRepository) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.streams = make(map[domain.StreamID]*domain.Stream)
	return nil
}

// collect returns matching streams ordered by start time.
func (r *MemoryStreamRepository) collect(match func(*domain.Stream) bool) []*domain.Stream {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Stream, 0, len(r.streams))
	for _, stream := range r.streams {
		if match(stream) {
			result = append(result, stream.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].StartedAt.Equal(result[j].StartedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].StartedAt.Before(result[j].StartedAt)
	})
	return result
}
