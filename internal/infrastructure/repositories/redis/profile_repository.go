package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"tempvox/internal/core/domain"
	"tempvox/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

type RedisProfileRepository struct {
	client *redis.Client
}

func NewRedisProfileRepository(client *redis.Client) ports.ProfileRepository {
	return &RedisProfileRepository{client: client}
}

func (r *RedisProfileRepository) profileKey(communityID domain.CommunityID, userID domain.MemberID) string {
	return fmt.Sprintf("tempvox:profile:%s:%s", communityID, userID)
}

func (r *RedisProfileRepository) Get(ctx context.Context, communityID domain.CommunityID, userID domain.MemberID) (*domain.UserDefaultProfile, error) {
	data, err := r.client.Get(ctx, r.profileKey(communityID, userID)).Result()
	if err == redis.Nil {
		return nil, domain.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile from Redis: %w", err)
	}

	var profile domain.UserDefaultProfile
	if err := json.Unmarshal([]byte(data), &profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}

	return &profile, nil
}

func (r *RedisProfileRepository) Upsert(ctx context.Context, profile *domain.UserDefaultProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	key := r.profileKey(profile.CommunityID, profile.UserID)
	if err := r.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to upsert profile in Redis: %w", err)
	}

	return nil
}
