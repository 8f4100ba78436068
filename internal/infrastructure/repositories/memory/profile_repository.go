package memory

import (
	"context"
	"sync"

	"tempvox/internal/core/domain"
	"tempvox/internal/core/ports"
)

type profileKey struct {
	communityID domain.CommunityID
	userID      domain.MemberID
}

type MemoryProfileRepository struct {
	profiles map[profileKey]*domain.UserDefaultProfile
	mu       sync.RWMutex
}

func NewMemoryProfileRepository() ports.ProfileRepository {
	return &MemoryProfileRepository{
		profiles: make(map[profileKey]*domain.UserDefaultProfile),
	}
}

func (r *MemoryProfileRepository) Get(ctx context.Context, communityID domain.CommunityID, userID domain.MemberID) (*domain.UserDefaultProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	profile, exists := r.profiles[profileKey{communityID, userID}]
	if !exists {
		return nil, domain.ErrProfileNotFound
	}

	return cloneProfile(profile), nil
}

func (r *MemoryProfileRepository) Upsert(ctx context.Context, profile *domain.UserDefaultProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.profiles[profileKey{profile.CommunityID, profile.UserID}] = cloneProfile(profile)
	return nil
}

func cloneProfile(profile *domain.UserDefaultProfile) *domain.UserDefaultProfile {
	clone := *profile
	clone.BlockedUsers = append([]domain.MemberID(nil), profile.BlockedUsers...)
	return &clone
}
