package memory

import (
	"context"
	"fmt"
	"sync"

	"tempvox/internal/core/domain"
	"tempvox/internal/core/ports"
)

type MemoryInstanceRepository struct {
	instances map[domain.ChannelID]*domain.ChannelInstance
	mu        sync.RWMutex
}

func NewMemoryInstanceRepository() ports.InstanceRepository {
	return &MemoryInstanceRepository{
		instances: make(map[domain.ChannelID]*domain.ChannelInstance),
	}
}

func (r *MemoryInstanceRepository) Create(ctx context.Context, instance *domain.ChannelInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.instances[instance.ChannelID]; exists {
		return fmt.Errorf("instance already exists: %s", instance.ChannelID)
	}

	r.instances[instance.ChannelID] = cloneInstance(instance)
	return nil
}

func (r *MemoryInstanceRepository) GetByChannel(ctx context.Context, id domain.ChannelID) (*domain.ChannelInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	instance, exists := r.instances[id]
	if !exists {
		return nil, domain.ErrInstanceNotFound
	}

	return cloneInstance(instance), nil
}

func (r *MemoryInstanceRepository) Update(ctx context.Context, instance *domain.ChannelInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.instances[instance.ChannelID]; !exists {
		return domain.ErrInstanceNotFound
	}

	r.instances[instance.ChannelID] = cloneInstance(instance)
	return nil
}

func (r *MemoryInstanceRepository) Delete(ctx context.Context, id domain.ChannelID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.instances[id]; !exists {
		return domain.ErrInstanceNotFound
	}

	delete(r.instances, id)
	return nil
}

func (r *MemoryInstanceRepository) ListByCommunity(ctx context.Context, communityID domain.CommunityID) ([]*domain.ChannelInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var instances []*domain.ChannelInstance
	for _, instance := range r.instances {
		if instance.CommunityID == communityID {
			instances = append(instances, cloneInstance(instance))
		}
	}

	return instances, nil
}

func (r *MemoryInstanceRepository) CountByOwner(ctx context.Context, communityID domain.CommunityID, ownerID domain.MemberID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, instance := range r.instances {
		if instance.CommunityID == communityID && instance.OwnerID == ownerID {
			count++
		}
	}

	return count, nil
}

// cloneInstance keeps callers from mutating stored state in place, which
// would bypass the write-path invariant checks.
func cloneInstance(instance *domain.ChannelInstance) *domain.ChannelInstance {
	clone := *instance
	clone.AllowedUsers = append([]domain.MemberID(nil), instance.AllowedUsers...)
	clone.BlockedUsers = append([]domain.MemberID(nil), instance.BlockedUsers...)
	clone.Moderators = append([]domain.MemberID(nil), instance.Moderators...)
	if instance.Surface != nil {
		surface := *instance.Surface
		clone.Surface = &surface
	}
	if instance.DeleteAfter != nil {
		deadline := *instance.DeleteAfter
		clone.DeleteAfter = &deadline
	}
	return &clone
}
