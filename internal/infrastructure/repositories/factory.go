package repositories

import (
	"context"

	"onebarn/internal/core/ports"
	"onebarn/internal/infrastructure/distributed"
	"onebarn/internal/infrastructure/repositories/memory"
	"onebarn/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RepositoryFactory hands every tenant service its own registries and owns the
// optional shared Redis connection used for event mirroring.
type RepositoryFactory struct {
	useRedis    bool
	redisClient *redis.Client
	logger      *zap.SugaredLogger
}

// NewRepositoryFactory connects to Redis when enabled and degrades to
// process-local operation when it cannot.
func NewRepositoryFactory(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) *RepositoryFactory {
	factory := &RepositoryFactory{
		useRedis: cfg.Redis.Enabled,
		logger:   logger,
	}

	if cfg.Redis.Enabled {
		client, err := distributed.NewRedisClient(ctx,
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			logger,
		)
		if err != nil {
			logger.Warnw("failed to connect to Redis, events stay process-local",
				"error", err,
			)
			factory.useRedis = false
		} else {
			factory.redisClient = client
		}
	}

	return factory
}

// CreateCameraRepository creates a camera registry for one service instance
func (f *RepositoryFactory) CreateCameraRepository() ports.CameraRepository {
	return memory.NewMemoryCameraRepository()
}

// CreateStreamRepository creates a stream table for one service instance
func (f *RepositoryFactory) CreateStreamRepository() ports.StreamRepository {
	return memory.NewMemoryStreamRepository()
}

// RedisClient returns the shared client, or nil when Redis is not in use
func (f *RepositoryFactory) RedisClient() *redis.Client {
	if !f.useRedis {
		return nil
	}
	return f.redisClient
}

// Close closes Redis connection if used
func (f *RepositoryFactory) Close() error {
	if f.redisClient != nil {
		return f.redisClient.Close()
	}
	return nil
}

// HealthCheck checks Redis connection health
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.useRedis && f.redisClient != nil {
		return f.redisClient.Ping(ctx).Err()
	}
	return nil
}
