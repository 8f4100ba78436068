package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"tempvox/internal/core/domain"
	"tempvox/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

type RedisPolicyRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisPolicyRepository(client *redis.Client) ports.PolicyRepository {
	return &RedisPolicyRepository{
		client: client,
		prefix: "tempvox:policy:",
	}
}

func (r *RedisPolicyRepository) policyKey(id domain.CommunityID) string {
	return r.prefix + string(id)
}

func (r *RedisPolicyRepository) enabledKey() string {
	return r.prefix + "enabled"
}

func (r *RedisPolicyRepository) Get(ctx context.Context, communityID domain.CommunityID) (*domain.CommunityPolicy, error) {
	data, err := r.client.Get(ctx, r.policyKey(communityID)).Result()
	if err == redis.Nil {
		return nil, domain.ErrPolicyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get policy from Redis: %w", err)
	}

	var policy domain.CommunityPolicy
	if err := json.Unmarshal([]byte(data), &policy); err != nil {
		return nil, fmt.Errorf("failed to unmarshal policy: %w", err)
	}

	return &policy, nil
}

func (r *RedisPolicyRepository) ListEnabled(ctx context.Context) ([]*domain.CommunityPolicy, error) {
	communityIDs, err := r.client.SMembers(ctx, r.enabledKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get enabled policies from Redis: %w", err)
	}

	var policies []*domain.CommunityPolicy
	for _, idStr := range communityIDs {
		policy, err := r.Get(ctx, domain.CommunityID(idStr))
		if err != nil {
			continue
		}
		if policy.Enabled {
			policies = append(policies, policy)
		}
	}

	return policies, nil
}

func (r *RedisPolicyRepository) Put(ctx context.Context, policy *domain.CommunityPolicy) error {
	data, err := json.Marshal(policy)
	if err != nil {
		return fmt.Errorf("failed to marshal policy: %w", err)
	}

	if err := r.client.Set(ctx, r.policyKey(policy.CommunityID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set policy in Redis: %w", err)
	}

	if policy.Enabled {
		if err := r.client.SAdd(ctx, r.enabledKey(), string(policy.CommunityID)).Err(); err != nil {
			return fmt.Errorf("failed to add policy to enabled set: %w", err)
		}
	} else {
		if err := r.client.SRem(ctx, r.enabledKey(), string(policy.CommunityID)).Err(); err != nil {
			return fmt.Errorf("failed to remove policy from enabled set: %w", err)
		}
	}

	return nil
}
