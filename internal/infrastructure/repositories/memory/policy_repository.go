package memory

import (
	"context"
	"sync"

	"tempvox/internal/core/domain"
	"tempvox/internal/core/ports"
)

type MemoryPolicyRepository struct {
	policies map[domain.CommunityID]*domain.CommunityPolicy
	mu       sync.RWMutex
}

func NewMemoryPolicyRepository() ports.PolicyRepository {
	return &MemoryPolicyRepository{
		policies: make(map[domain.CommunityID]*domain.CommunityPolicy),
	}
}

func (r *MemoryPolicyRepository) Get(ctx context.Context, communityID domain.CommunityID) (*domain.CommunityPolicy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	policy, exists := r.policies[communityID]
	if !exists {
		return nil, domain.ErrPolicyNotFound
	}

	clone := *policy
	return &clone, nil
}

func (r *MemoryPolicyRepository) ListEnabled(ctx context.Context) ([]*domain.CommunityPolicy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var enabled []*domain.CommunityPolicy
	for _, policy := range r.policies {
		if policy.Enabled {
			clone := *policy
			enabled = append(enabled, &clone)
		}
	}

	return enabled, nil
}

func (r *MemoryPolicyRepository) Put(ctx context.Context, policy *domain.CommunityPolicy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *policy
	r.policies[policy.CommunityID] = &clone
	return nil
}
