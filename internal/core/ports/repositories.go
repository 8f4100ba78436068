package ports

import (
	"context"

	"tempvox/internal/core/domain"
)

type InstanceRepository interface {
	Create(ctx context.Context, instance *domain.ChannelInstance) error
	GetByChannel(ctx context.Context, id domain.ChannelID) (*domain.ChannelInstance, error)
	Update(ctx context.Context, instance *domain.ChannelInstance) error
	Delete(ctx context.Context, id domain.ChannelID) error
	ListByCommunity(ctx context.Context, communityID domain.CommunityID) ([]*domain.ChannelInstance, error)
	CountByOwner(ctx context.Context, communityID domain.CommunityID, ownerID domain.MemberID) (int, error)
}

type ProfileRepository interface {
	Get(ctx context.Context, communityID domain.CommunityID, userID domain.MemberID) (*domain.UserDefaultProfile, error)
	Upsert(ctx context.Context, profile *domain.UserDefaultProfile) error
}

type PolicyRepository interface {
	Get(ctx context.Context, communityID domain.CommunityID) (*domain.CommunityPolicy, error)
	ListEnabled(ctx context.Context) ([]*domain.CommunityPolicy, error)
	Put(ctx context.Context, policy *domain.CommunityPolicy) error
}
