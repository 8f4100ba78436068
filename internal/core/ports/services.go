package ports

import (
	"context"
	"time"

	"tempvox/internal/core/domain"
)

// PermissionOverride is a partial view/connect override for one subject.
// A nil field leaves that permission untouched.
type PermissionOverride struct {
	View    *bool
	Connect *bool
}

// ChannelProperties is a partial property update for the underlying
// channel. Nil fields are left unchanged.
type ChannelProperties struct {
	Name      *string
	UserLimit *int
	Bitrate   *int
	Region    *string
}

// ChannelGateway programs the platform: channel allocation, ACL overrides
// and roster queries. Every call is independently fallible and assumed
// eventually consistent.
type ChannelGateway interface {
	CreateChannel(ctx context.Context, communityID domain.CommunityID, categoryID, name string, settings domain.ChannelSettings) (domain.ChannelID, error)
	// DeleteChannel treats an already-missing channel as success.
	DeleteChannel(ctx context.Context, id domain.ChannelID) error
	ChannelExists(ctx context.Context, id domain.ChannelID) (bool, error)
	SetChannelProperties(ctx context.Context, id domain.ChannelID, props ChannelProperties) error
	SetOverride(ctx context.Context, id domain.ChannelID, subject domain.MemberID, override PermissionOverride) error
	ClearOverride(ctx context.Context, id domain.ChannelID, subject domain.MemberID) error
	ClearAllOverrides(ctx context.Context, id domain.ChannelID, keep []domain.MemberID) error
	ForceDisconnect(ctx context.Context, id domain.ChannelID, member domain.MemberID) error
	Roster(ctx context.Context, id domain.ChannelID) ([]domain.RosterEntry, error)
	ResolveMember(ctx context.Context, communityID domain.CommunityID, id domain.MemberID) (*domain.Member, error)
}

// SurfaceHost publishes and edits rendered control-surface views. A
// missing target is a non-fatal outcome for Update and Remove.
type SurfaceHost interface {
	Publish(ctx context.Context, host domain.ChannelID, view *domain.SurfaceView) (domain.SurfaceID, error)
	Update(ctx context.Context, ref domain.SurfaceRef, view *domain.SurfaceView) error
	Remove(ctx context.Context, ref domain.SurfaceRef) error
}

// CooldownService is the clock-keyed acquisition gate for creation
// cooldowns. TryAcquire returns false with the remaining window while the
// key is held. State is best-effort; losing it on restart is acceptable.
type CooldownService interface {
	TryAcquire(ctx context.Context, key string, window time.Duration) (bool, time.Duration, error)
	Release(ctx context.Context, key string) error
}

// MetricsRecorder receives lifecycle observations. Implementations must be
// safe for concurrent use.
type MetricsRecorder interface {
	RecordCreation(communityID domain.CommunityID)
	RecordDeletion(reason string)
	RecordTransfer(automatic bool)
	SetLiveInstances(communityID domain.CommunityID, n int)
	ObserveSweep(d time.Duration, reaped int)
}

// Orchestrator is the lifecycle service consumed by the gateway adapter
// and the command-dispatch handlers.
type Orchestrator interface {
	CreateChannel(ctx context.Context, communityID domain.CommunityID, requesterID domain.MemberID) (*domain.ChannelInstance, error)
	OnMemberJoined(ctx context.Context, channelID domain.ChannelID, memberID domain.MemberID) error
	OnMemberLeft(ctx context.Context, channelID domain.ChannelID, memberID domain.MemberID) error
	Dispatch(ctx context.Context, intent domain.Intent) error
	GetInstance(ctx context.Context, channelID domain.ChannelID) (*domain.ChannelInstance, error)
	ListInstances(ctx context.Context, communityID domain.CommunityID) ([]*domain.ChannelInstance, error)
	Delete(ctx context.Context, channelID domain.ChannelID) error
	FinalizeExpired(ctx context.Context, channelID domain.ChannelID) error
}
