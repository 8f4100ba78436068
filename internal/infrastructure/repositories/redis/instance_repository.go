package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"tempvox/internal/core/domain"
	"tempvox/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

type RedisInstanceRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisInstanceRepository(client *redis.Client) ports.InstanceRepository {
	return &RedisInstanceRepository{
		client: client,
		prefix: "tempvox:instance:",
	}
}

func (r *RedisInstanceRepository) instanceKey(id domain.ChannelID) string {
	return r.prefix + string(id)
}

func (r *RedisInstanceRepository) communityKey(id domain.CommunityID) string {
	return fmt.Sprintf("tempvox:community:%s:instances", id)
}

func (r *RedisInstanceRepository) Create(ctx context.Context, instance *domain.ChannelInstance) error {
	data, err := json.Marshal(instance)
	if err != nil {
		return fmt.Errorf("failed to marshal instance: %w", err)
	}

	key := r.instanceKey(instance.ChannelID)
	ok, err := r.client.SetNX(ctx, key, data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to set instance in Redis: %w", err)
	}
	if !ok {
		return fmt.Errorf("instance already exists: %s", instance.ChannelID)
	}

	if err := r.client.SAdd(ctx, r.communityKey(instance.CommunityID), string(instance.ChannelID)).Err(); err != nil {
		return fmt.Errorf("failed to add instance to community set: %w", err)
	}

	return nil
}

func (r *RedisInstanceRepository) GetByChannel(ctx context.Context, id domain.ChannelID) (*domain.ChannelInstance, error) {
	data, err := r.client.Get(ctx, r.instanceKey(id)).Result()
	if err == redis.Nil {
		return nil, domain.ErrInstanceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get instance from Redis: %w", err)
	}

	var instance domain.ChannelInstance
	if err := json.Unmarshal([]byte(data), &instance); err != nil {
		return nil, fmt.Errorf("failed to unmarshal instance: %w", err)
	}

	return &instance, nil
}

func (r *RedisInstanceRepository) Update(ctx context.Context, instance *domain.ChannelInstance) error {
	exists, err := r.client.Exists(ctx, r.instanceKey(instance.ChannelID)).Result()
	if err != nil {
		return fmt.Errorf("failed to check instance in Redis: %w", err)
	}
	if exists == 0 {
		return domain.ErrInstanceNotFound
	}

	data, err := json.Marshal(instance)
	if err != nil {
		return fmt.Errorf("failed to marshal instance: %w", err)
	}

	if err := r.client.Set(ctx, r.instanceKey(instance.ChannelID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to update instance in Redis: %w", err)
	}

	return nil
}

func (r *RedisInstanceRepository) Delete(ctx context.Context, id domain.ChannelID) error {
	instance, err := r.GetByChannel(ctx, id)
	if err != nil {
		return err
	}

	if err := r.client.SRem(ctx, r.communityKey(instance.CommunityID), string(id)).Err(); err != nil {
		return fmt.Errorf("failed to remove instance from community set: %w", err)
	}

	if err := r.client.Del(ctx, r.instanceKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete instance from Redis: %w", err)
	}

	return nil
}

func (r *RedisInstanceRepository) ListByCommunity(ctx context.Context, communityID domain.CommunityID) ([]*domain.ChannelInstance, error) {
	channelIDs, err := r.client.SMembers(ctx, r.communityKey(communityID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get community instances from Redis: %w", err)
	}

	var instances []*domain.ChannelInstance
	for _, idStr := range channelIDs {
		instance, err := r.GetByChannel(ctx, domain.ChannelID(idStr))
		if err != nil {
			// Skip instances that no longer exist
			continue
		}
		instances = append(instances, instance)
	}

	return instances, nil
}

func (r *RedisInstanceRepository) CountByOwner(ctx context.Context, communityID domain.CommunityID, ownerID domain.MemberID) (int, error) {
	instances, err := r.ListByCommunity(ctx, communityID)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, instance := range instances {
		if instance.OwnerID == ownerID {
			count++
		}
	}

	return count, nil
}
