package repositories

import (
	"context"

	"tempvox/internal/core/ports"
	"tempvox/internal/infrastructure/repositories/memory"
	redisrepo "tempvox/internal/infrastructure/repositories/redis"
	"tempvox/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RepositoryFactory creates repositories with fallback support
type RepositoryFactory struct {
	useRedis    bool
	redisClient *redis.Client
	logger      *zap.SugaredLogger
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(cfg *config.Config, logger *zap.SugaredLogger) (*RepositoryFactory, error) {
	factory := &RepositoryFactory{
		useRedis: cfg.Redis.Enabled,
		logger:   logger,
	}

	if cfg.Redis.Enabled {
		client, err := redisrepo.NewRedisClient(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			logger,
		)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory repositories",
				"error", err,
			)
			factory.useRedis = false
		} else {
			factory.redisClient = client
			logger.Info("using Redis repositories")
		}
	}

	if !factory.useRedis {
		logger.Info("using memory repositories")
	}

	return factory, nil
}

// RedisClient exposes the shared client for non-repository consumers
// (the Redis cooldown backend). Nil when running on memory.
func (f *RepositoryFactory) RedisClient() *redis.Client {
	if f.useRedis {
		return f.redisClient
	}
	return nil
}

// CreateInstanceRepository creates an instance repository (Redis or memory with fallback)
func (f *RepositoryFactory) CreateInstanceRepository() ports.InstanceRepository {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewRedisInstanceRepository(f.redisClient)
	}
	return memory.NewMemoryInstanceRepository()
}

// CreateProfileRepository creates a profile repository (Redis or memory with fallback)
func (f *RepositoryFactory) CreateProfileRepository() ports.ProfileRepository {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewRedisProfileRepository(f.redisClient)
	}
	return memory.NewMemoryProfileRepository()
}

// CreatePolicyRepository creates a policy repository (Redis or memory with fallback)
func (f *RepositoryFactory) CreatePolicyRepository() ports.PolicyRepository {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewRedisPolicyRepository(f.redisClient)
	}
	return memory.NewMemoryPolicyRepository()
}

// Close closes Redis connection if used
func (f *RepositoryFactory) Close() error {
	if f.redisClient != nil {
		return redisrepo.CloseRedisClient(f.redisClient)
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
