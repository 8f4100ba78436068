package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"tempvox/internal/core/domain"
	"tempvox/internal/core/ports"
	apperrors "tempvox/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type orchestratorFixture struct {
	instanceRepo *MockInstanceRepository
	profileRepo  *MockProfileRepository
	policyRepo   *MockPolicyRepository
	gateway      *MockChannelGateway
	surfaceHost  *MockSurfaceHost
	cooldowns    *MockCooldownService
	metrics      *MockMetricsRecorder
	orchestrator ports.Orchestrator
}

func newOrchestratorFixture() *orchestratorFixture {
	f := &orchestratorFixture{
		instanceRepo: new(MockInstanceRepository),
		profileRepo:  new(MockProfileRepository),
		policyRepo:   new(MockPolicyRepository),
		gateway:      new(MockChannelGateway),
		surfaceHost:  new(MockSurfaceHost),
		cooldowns:    new(MockCooldownService),
		metrics:      new(MockMetricsRecorder),
	}

	log := zap.NewNop().Sugar()
	profiles := NewProfileSync(f.profileRepo, log)
	surface := NewSurfaceSynchronizer(f.surfaceHost, f.gateway, f.instanceRepo, log)

	f.orchestrator = NewOrchestrator(
		f.instanceRepo,
		f.policyRepo,
		f.gateway,
		profiles,
		surface,
		f.cooldowns,
		f.metrics,
		NewKeyedExecutor(),
		log,
	)
	return f
}

func testPolicy() *domain.CommunityPolicy {
	return &domain.CommunityPolicy{
		CommunityID:      "community-1",
		Enabled:          true,
		TargetCategoryID: "category-1",
		NameTemplate:     "{display}'s channel",
		Defaults:         domain.ChannelSettings{UserLimit: 10, Bitrate: 64000},
		AutoDelete:       domain.AutoDeletePolicy{Enabled: true, GraceMinutes: 5},
		MaxChannelsPer:   2,
		CooldownMinutes:  5,
		MaxBitrate:       128000,
	}
}

func testMember(id domain.MemberID) *domain.Member {
	return &domain.Member{
		ID:          id,
		DisplayName: "Alice",
		Username:    "alice",
	}
}

// allowSurfaceRefresh registers the best-effort surface calls so tests can
// focus on the mutation under test.
func (f *orchestratorFixture) allowSurfaceRefresh() {
	f.gateway.On("Roster", mock.Anything, mock.Anything).Return([]domain.RosterEntry{}, nil).Maybe()
	f.surfaceHost.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(domain.SurfaceID("surf-1"), nil).Maybe()
	f.surfaceHost.On("Update", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	f.instanceRepo.On("Update", mock.Anything, mock.Anything).Return(nil).Maybe()
}

func TestOrchestrator_CreateChannel(t *testing.T) {
	ctx := context.Background()

	t.Run("successful creation with community defaults", func(t *testing.T) {
		f := newOrchestratorFixture()
		policy := testPolicy()

		f.policyRepo.On("Get", ctx, domain.CommunityID("community-1")).Return(policy, nil)
		f.gateway.On("ResolveMember", ctx, domain.CommunityID("community-1"), domain.MemberID("alice")).
			Return(testMember("alice"), nil)
		f.cooldowns.On("TryAcquire", ctx, "create:community-1:alice", 5*time.Minute).
			Return(true, time.Duration(0), nil)
		f.instanceRepo.On("CountByOwner", ctx, domain.CommunityID("community-1"), domain.MemberID("alice")).
			Return(0, nil)
		f.profileRepo.On("Get", ctx, domain.CommunityID("community-1"), domain.MemberID("alice")).
			Return(nil, domain.ErrProfileNotFound)
		f.gateway.On("CreateChannel", ctx, domain.CommunityID("community-1"), "category-1", "Alice's channel", policy.Defaults).
			Return(domain.ChannelID("chan-1"), nil)
		f.gateway.On("SetOverride", ctx, domain.ChannelID("chan-1"), domain.MemberID("alice"), mock.Anything).
			Return(nil)
		f.gateway.On("ClearOverride", ctx, domain.ChannelID("chan-1"), domain.EveryoneSubject).
			Return(nil)
		f.instanceRepo.On("Create", ctx, mock.AnythingOfType("*domain.ChannelInstance")).Return(nil)
		f.metrics.On("RecordCreation", domain.CommunityID("community-1")).Return()
		f.allowSurfaceRefresh()

		instance, err := f.orchestrator.CreateChannel(ctx, "community-1", "alice")

		assert.NoError(t, err)
		assert.NotNil(t, instance)
		assert.Equal(t, domain.ChannelID("chan-1"), instance.ChannelID)
		assert.Equal(t, domain.MemberID("alice"), instance.OwnerID)
		assert.Equal(t, "Alice's channel", instance.CurrentName)
		assert.False(t, instance.HasCustomName())
		assert.Equal(t, policy.Defaults, instance.Settings)

		f.instanceRepo.AssertExpectations(t)
		f.cooldowns.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
	})

	t.Run("restored profile wins over defaults", func(t *testing.T) {
		f := newOrchestratorFixture()
		policy := testPolicy()
		profile := &domain.UserDefaultProfile{
			CommunityID:  "community-1",
			UserID:       "alice",
			CustomName:   "secret hideout",
			Settings:     domain.ChannelSettings{UserLimit: 4, Bitrate: 256000, Locked: true},
			BlockedUsers: []domain.MemberID{"bob"},
			AutoSave:     true,
		}

		f.policyRepo.On("Get", ctx, domain.CommunityID("community-1")).Return(policy, nil)
		f.gateway.On("ResolveMember", ctx, domain.CommunityID("community-1"), domain.MemberID("alice")).
			Return(testMember("alice"), nil)
		f.cooldowns.On("TryAcquire", ctx, mock.Anything, 5*time.Minute).
			Return(true, time.Duration(0), nil)
		f.instanceRepo.On("CountByOwner", ctx, domain.CommunityID("community-1"), domain.MemberID("alice")).
			Return(0, nil)
		f.profileRepo.On("Get", ctx, domain.CommunityID("community-1"), domain.MemberID("alice")).
			Return(profile, nil)
		f.gateway.On("CreateChannel", ctx, domain.CommunityID("community-1"), "category-1", "secret hideout",
			mock.AnythingOfType("domain.ChannelSettings")).
			Return(domain.ChannelID("chan-1"), nil)
		f.gateway.On("SetOverride", ctx, domain.ChannelID("chan-1"), mock.Anything, mock.Anything).Return(nil)
		f.instanceRepo.On("Create", ctx, mock.AnythingOfType("*domain.ChannelInstance")).Return(nil)
		f.metrics.On("RecordCreation", mock.Anything).Return()
		f.allowSurfaceRefresh()

		instance, err := f.orchestrator.CreateChannel(ctx, "community-1", "alice")

		assert.NoError(t, err)
		assert.Equal(t, "secret hideout", instance.CurrentName)
		assert.True(t, instance.HasCustomName())
		// Bitrate clamped to the community ceiling.
		assert.Equal(t, 128000, instance.Settings.Bitrate)
		assert.True(t, instance.Settings.Locked)
		assert.True(t, instance.AutoSave)
		assert.Contains(t, instance.BlockedUsers, domain.MemberID("bob"))
	})

	t.Run("feature disabled", func(t *testing.T) {
		f := newOrchestratorFixture()
		policy := testPolicy()
		policy.Enabled = false
		f.policyRepo.On("Get", ctx, domain.CommunityID("community-1")).Return(policy, nil)

		_, err := f.orchestrator.CreateChannel(ctx, "community-1", "alice")

		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodePolicyDenied))
	})

	t.Run("cooldown active", func(t *testing.T) {
		f := newOrchestratorFixture()
		f.policyRepo.On("Get", ctx, domain.CommunityID("community-1")).Return(testPolicy(), nil)
		f.gateway.On("ResolveMember", ctx, mock.Anything, mock.Anything).Return(testMember("alice"), nil)
		f.cooldowns.On("TryAcquire", ctx, mock.Anything, 5*time.Minute).
			Return(false, 3*time.Minute, nil)

		_, err := f.orchestrator.CreateChannel(ctx, "community-1", "alice")

		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodePolicyDenied))
		assert.Contains(t, apperrors.GetAppError(err).Message, "3 minutes")
	})

	t.Run("channel cap releases the cooldown", func(t *testing.T) {
		f := newOrchestratorFixture()
		f.policyRepo.On("Get", ctx, domain.CommunityID("community-1")).Return(testPolicy(), nil)
		f.gateway.On("ResolveMember", ctx, mock.Anything, mock.Anything).Return(testMember("alice"), nil)
		f.cooldowns.On("TryAcquire", ctx, mock.Anything, 5*time.Minute).
			Return(true, time.Duration(0), nil)
		f.instanceRepo.On("CountByOwner", ctx, mock.Anything, mock.Anything).Return(2, nil)
		f.cooldowns.On("Release", mock.Anything, "create:community-1:alice").Return(nil)

		_, err := f.orchestrator.CreateChannel(ctx, "community-1", "alice")

		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodePolicyDenied))
		f.cooldowns.AssertCalled(t, "Release", mock.Anything, "create:community-1:alice")
	})

	t.Run("barred creator is denied", func(t *testing.T) {
		f := newOrchestratorFixture()
		policy := testPolicy()
		policy.Creation.BlockedUsers = []domain.MemberID{"alice"}
		f.policyRepo.On("Get", ctx, domain.CommunityID("community-1")).Return(policy, nil)
		f.gateway.On("ResolveMember", ctx, mock.Anything, mock.Anything).Return(testMember("alice"), nil)
		f.cooldowns.On("TryAcquire", ctx, mock.Anything, mock.Anything).Return(true, time.Duration(0), nil)
		f.cooldowns.On("Release", mock.Anything, mock.Anything).Return(nil)

		_, err := f.orchestrator.CreateChannel(ctx, "community-1", "alice")

		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodePolicyDenied))
	})

	t.Run("system account cannot create", func(t *testing.T) {
		f := newOrchestratorFixture()
		member := testMember("bot")
		member.IsSystem = true
		f.policyRepo.On("Get", ctx, domain.CommunityID("community-1")).Return(testPolicy(), nil)
		f.gateway.On("ResolveMember", ctx, mock.Anything, mock.Anything).Return(member, nil)

		_, err := f.orchestrator.CreateChannel(ctx, "community-1", "bot")

		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodePolicyDenied))
	})

	t.Run("store failure tears the channel down", func(t *testing.T) {
		f := newOrchestratorFixture()
		f.policyRepo.On("Get", ctx, domain.CommunityID("community-1")).Return(testPolicy(), nil)
		f.gateway.On("ResolveMember", ctx, mock.Anything, mock.Anything).Return(testMember("alice"), nil)
		f.cooldowns.On("TryAcquire", ctx, mock.Anything, mock.Anything).Return(true, time.Duration(0), nil)
		f.instanceRepo.On("CountByOwner", ctx, mock.Anything, mock.Anything).Return(0, nil)
		f.profileRepo.On("Get", ctx, mock.Anything, mock.Anything).Return(nil, domain.ErrProfileNotFound)
		f.gateway.On("CreateChannel", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(domain.ChannelID("chan-1"), nil)
		f.gateway.On("SetOverride", ctx, mock.Anything, mock.Anything, mock.Anything).Return(nil)
		f.gateway.On("ClearOverride", ctx, mock.Anything, mock.Anything).Return(nil)
		f.instanceRepo.On("Create", ctx, mock.Anything).Return(errors.New("store down"))
		f.gateway.On("DeleteChannel", mock.Anything, domain.ChannelID("chan-1")).Return(nil)
		f.cooldowns.On("Release", mock.Anything, mock.Anything).Return(nil)

		_, err := f.orchestrator.CreateChannel(ctx, "community-1", "alice")

		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeExternalUnavailable))
		f.gateway.AssertCalled(t, "DeleteChannel", mock.Anything, domain.ChannelID("chan-1"))
		f.cooldowns.AssertCalled(t, "Release", mock.Anything, mock.Anything)
	})
}

func TestOrchestrator_MembershipChanges(t *testing.T) {
	ctx := context.Background()

	liveInstance := func() *domain.ChannelInstance {
		return &domain.ChannelInstance{
			CommunityID:        "community-1",
			ChannelID:          "chan-1",
			OwnerID:            "alice",
			OriginalName:       "Alice's channel",
			CurrentName:        "Alice's channel",
			CurrentMemberCount: 2,
			Surface:            &domain.SurfaceRef{SurfaceID: "surf-1", HostChannelID: "chan-1"},
			CreatedAt:          time.Now().Add(-time.Hour),
		}
	}

	t.Run("unmanaged channel is ignored", func(t *testing.T) {
		f := newOrchestratorFixture()
		f.instanceRepo.On("GetByChannel", mock.Anything, domain.ChannelID("other")).
			Return(nil, domain.ErrInstanceNotFound)

		assert.NoError(t, f.orchestrator.OnMemberJoined(ctx, "other", "alice"))
		f.gateway.AssertNotCalled(t, "Roster", mock.Anything, mock.Anything)
	})

	t.Run("owner departure transfers to longest-tenured occupant", func(t *testing.T) {
		f := newOrchestratorFixture()
		instance := liveInstance()
		base := time.Now().Add(-30 * time.Minute)

		f.instanceRepo.On("GetByChannel", mock.Anything, domain.ChannelID("chan-1")).Return(instance, nil)
		f.gateway.On("Roster", mock.Anything, domain.ChannelID("chan-1")).Return([]domain.RosterEntry{
			{MemberID: "carol", JoinedAt: base.Add(10 * time.Minute)},
			{MemberID: "bob", JoinedAt: base},
			{MemberID: "helper-bot", JoinedAt: base.Add(-time.Hour), IsSystem: true},
		}, nil)
		f.gateway.On("SetOverride", mock.Anything, domain.ChannelID("chan-1"), domain.MemberID("bob"), mock.Anything).
			Return(nil)
		f.metrics.On("RecordTransfer", true).Return()
		f.instanceRepo.On("Update", mock.Anything, instance).Return(nil)
		f.surfaceHost.On("Update", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		assert.NoError(t, f.orchestrator.OnMemberLeft(ctx, "chan-1", "alice"))

		assert.Equal(t, domain.MemberID("bob"), instance.OwnerID)
		assert.Contains(t, instance.Moderators, domain.MemberID("alice"))
		f.metrics.AssertCalled(t, "RecordTransfer", true)
	})

	t.Run("emptying schedules deletion after the grace window", func(t *testing.T) {
		f := newOrchestratorFixture()
		instance := liveInstance()

		f.instanceRepo.On("GetByChannel", mock.Anything, domain.ChannelID("chan-1")).Return(instance, nil)
		f.gateway.On("Roster", mock.Anything, domain.ChannelID("chan-1")).Return([]domain.RosterEntry{}, nil)
		f.policyRepo.On("Get", mock.Anything, domain.CommunityID("community-1")).Return(testPolicy(), nil)
		f.instanceRepo.On("Update", mock.Anything, instance).Return(nil)
		f.surfaceHost.On("Update", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		assert.NoError(t, f.orchestrator.OnMemberLeft(ctx, "chan-1", "alice"))

		assert.Equal(t, 0, instance.CurrentMemberCount)
		assert.NotNil(t, instance.DeleteAfter)
		assert.WithinDuration(t, time.Now().Add(5*time.Minute), *instance.DeleteAfter, 10*time.Second)
	})

	t.Run("zero grace deletes immediately", func(t *testing.T) {
		f := newOrchestratorFixture()
		instance := liveInstance()
		policy := testPolicy()
		policy.AutoDelete.GraceMinutes = 0

		f.instanceRepo.On("GetByChannel", mock.Anything, domain.ChannelID("chan-1")).Return(instance, nil)
		f.gateway.On("Roster", mock.Anything, domain.ChannelID("chan-1")).Return([]domain.RosterEntry{}, nil)
		f.policyRepo.On("Get", mock.Anything, domain.CommunityID("community-1")).Return(policy, nil)
		f.surfaceHost.On("Remove", mock.Anything, *instance.Surface).Return(nil)
		f.gateway.On("DeleteChannel", mock.Anything, domain.ChannelID("chan-1")).Return(nil)
		f.instanceRepo.On("Delete", mock.Anything, domain.ChannelID("chan-1")).Return(nil)
		f.metrics.On("RecordDeletion", "emptied").Return()

		assert.NoError(t, f.orchestrator.OnMemberLeft(ctx, "chan-1", "alice"))

		f.metrics.AssertCalled(t, "RecordDeletion", "emptied")
		f.instanceRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("rejoin clears a pending deadline", func(t *testing.T) {
		f := newOrchestratorFixture()
		instance := liveInstance()
		deadline := time.Now().Add(time.Minute)
		instance.CurrentMemberCount = 0
		instance.DeleteAfter = &deadline

		f.instanceRepo.On("GetByChannel", mock.Anything, domain.ChannelID("chan-1")).Return(instance, nil)
		f.gateway.On("Roster", mock.Anything, domain.ChannelID("chan-1")).Return([]domain.RosterEntry{
			{MemberID: "bob", JoinedAt: time.Now()},
		}, nil)
		f.instanceRepo.On("Update", mock.Anything, instance).Return(nil)
		f.surfaceHost.On("Update", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		assert.NoError(t, f.orchestrator.OnMemberJoined(ctx, "chan-1", "bob"))

		assert.Nil(t, instance.DeleteAfter)
		assert.Equal(t, 1, instance.CurrentMemberCount)
	})
}

func TestOrchestrator_Dispatch(t *testing.T) {
	ctx := context.Background()

	managed := func() *domain.ChannelInstance {
		return &domain.ChannelInstance{
			CommunityID:  "community-1",
			ChannelID:    "chan-1",
			OwnerID:      "alice",
			OriginalName: "Alice's channel",
			CurrentName:  "Alice's channel",
			Settings:     domain.ChannelSettings{UserLimit: 10, Bitrate: 64000},
			Moderators:   []domain.MemberID{"mod-1"},
			Surface:      &domain.SurfaceRef{SurfaceID: "surf-1", HostChannelID: "chan-1"},
		}
	}

	t.Run("unknown channel", func(t *testing.T) {
		f := newOrchestratorFixture()
		f.instanceRepo.On("GetByChannel", mock.Anything, domain.ChannelID("nope")).
			Return(nil, domain.ErrInstanceNotFound)

		err := f.orchestrator.Dispatch(ctx, domain.Intent{Kind: domain.IntentRename, ChannelID: "nope", ActorID: "alice"})
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeTargetNotFound))
	})

	t.Run("non-moderator is denied", func(t *testing.T) {
		f := newOrchestratorFixture()
		f.instanceRepo.On("GetByChannel", mock.Anything, domain.ChannelID("chan-1")).Return(managed(), nil)

		err := f.orchestrator.Dispatch(ctx, domain.Intent{Kind: domain.IntentRename, ChannelID: "chan-1", ActorID: "randomer", Name: "x"})
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodePolicyDenied))
	})

	t.Run("profile commands are owner-only", func(t *testing.T) {
		f := newOrchestratorFixture()
		f.instanceRepo.On("GetByChannel", mock.Anything, domain.ChannelID("chan-1")).Return(managed(), nil)

		err := f.orchestrator.Dispatch(ctx, domain.Intent{Kind: domain.IntentSaveProfile, ChannelID: "chan-1", ActorID: "mod-1"})
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodePolicyDenied))
	})

	t.Run("moderator renames", func(t *testing.T) {
		f := newOrchestratorFixture()
		instance := managed()
		f.instanceRepo.On("GetByChannel", mock.Anything, domain.ChannelID("chan-1")).Return(instance, nil)
		f.instanceRepo.On("Update", mock.Anything, instance).Return(nil)
		f.gateway.On("SetChannelProperties", mock.Anything, domain.ChannelID("chan-1"), mock.Anything).Return(nil)
		f.allowSurfaceRefresh()

		err := f.orchestrator.Dispatch(ctx, domain.Intent{Kind: domain.IntentRename, ChannelID: "chan-1", ActorID: "mod-1", Name: "war room"})

		assert.NoError(t, err)
		assert.Equal(t, "war room", instance.CurrentName)
		assert.True(t, instance.HasCustomName())
	})

	t.Run("empty rename is rejected", func(t *testing.T) {
		f := newOrchestratorFixture()
		f.instanceRepo.On("GetByChannel", mock.Anything, domain.ChannelID("chan-1")).Return(managed(), nil)

		err := f.orchestrator.Dispatch(ctx, domain.Intent{Kind: domain.IntentRename, ChannelID: "chan-1", ActorID: "alice", Name: "   "})
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidationFailed))
	})

	t.Run("bitrate above community ceiling is rejected", func(t *testing.T) {
		f := newOrchestratorFixture()
		f.instanceRepo.On("GetByChannel", mock.Anything, domain.ChannelID("chan-1")).Return(managed(), nil)
		f.policyRepo.On("Get", mock.Anything, domain.CommunityID("community-1")).Return(testPolicy(), nil)

		err := f.orchestrator.Dispatch(ctx, domain.Intent{Kind: domain.IntentSetBitrate, ChannelID: "chan-1", ActorID: "alice", Bitrate: 512000})
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidationFailed))
	})

	t.Run("lock programs the community override", func(t *testing.T) {
		f := newOrchestratorFixture()
		instance := managed()
		f.instanceRepo.On("GetByChannel", mock.Anything, domain.ChannelID("chan-1")).Return(instance, nil)
		f.instanceRepo.On("Update", mock.Anything, instance).Return(nil)
		f.gateway.On("SetOverride", mock.Anything, domain.ChannelID("chan-1"), domain.EveryoneSubject,
			mock.MatchedBy(func(o ports.PermissionOverride) bool {
				return o.View != nil && *o.View && o.Connect != nil && !*o.Connect
			})).Return(nil)
		f.allowSurfaceRefresh()

		err := f.orchestrator.Dispatch(ctx, domain.Intent{Kind: domain.IntentToggleLock, ChannelID: "chan-1", ActorID: "alice"})

		assert.NoError(t, err)
		assert.True(t, instance.Settings.Locked)
	})

	t.Run("unlock clears the community override", func(t *testing.T) {
		f := newOrchestratorFixture()
		instance := managed()
		instance.Settings.Locked = true
		f.instanceRepo.On("GetByChannel", mock.Anything, domain.ChannelID("chan-1")).Return(instance, nil)
		f.instanceRepo.On("Update", mock.Anything, instance).Return(nil)
		f.gateway.On("ClearOverride", mock.Anything, domain.ChannelID("chan-1"), domain.EveryoneSubject).Return(nil)
		f.allowSurfaceRefresh()

		err := f.orchestrator.Dispatch(ctx, domain.Intent{Kind: domain.IntentToggleLock, ChannelID: "chan-1", ActorID: "alice"})

		assert.NoError(t, err)
		assert.False(t, instance.Settings.Locked)
		f.gateway.AssertCalled(t, "ClearOverride", mock.Anything, domain.ChannelID("chan-1"), domain.EveryoneSubject)
	})

	t.Run("exclude blocks, denies and disconnects", func(t *testing.T) {
		f := newOrchestratorFixture()
		instance := managed()
		f.instanceRepo.On("GetByChannel", mock.Anything, domain.ChannelID("chan-1")).Return(instance, nil)
		f.instanceRepo.On("Update", mock.Anything, instance).Return(nil)
		f.gateway.On("SetOverride", mock.Anything, domain.ChannelID("chan-1"), domain.MemberID("bob"),
			mock.MatchedBy(func(o ports.PermissionOverride) bool {
				return o.View != nil && !*o.View && o.Connect != nil && !*o.Connect
			})).Return(nil)
		f.gateway.On("Roster", mock.Anything, domain.ChannelID("chan-1")).Return([]domain.RosterEntry{
			{MemberID: "bob", JoinedAt: time.Now()},
		}, nil)
		f.gateway.On("ForceDisconnect", mock.Anything, domain.ChannelID("chan-1"), domain.MemberID("bob")).Return(nil)
		f.surfaceHost.On("Update", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		err := f.orchestrator.Dispatch(ctx, domain.Intent{Kind: domain.IntentExclude, ChannelID: "chan-1", ActorID: "alice", TargetID: "bob"})

		assert.NoError(t, err)
		assert.True(t, instance.IsBlocked("bob"))
		f.gateway.AssertCalled(t, "ForceDisconnect", mock.Anything, domain.ChannelID("chan-1"), domain.MemberID("bob"))
	})

	t.Run("include lifts an earlier block", func(t *testing.T) {
		f := newOrchestratorFixture()
		instance := managed()
		instance.BlockedUsers = []domain.MemberID{"bob"}
		f.instanceRepo.On("GetByChannel", mock.Anything, domain.ChannelID("chan-1")).Return(instance, nil)
		f.instanceRepo.On("Update", mock.Anything, instance).Return(nil)
		f.gateway.On("SetOverride", mock.Anything, domain.ChannelID("chan-1"), domain.MemberID("bob"),
			mock.MatchedBy(func(o ports.PermissionOverride) bool {
				return o.View != nil && *o.View && o.Connect != nil && *o.Connect
			})).Return(nil)
		f.allowSurfaceRefresh()

		err := f.orchestrator.Dispatch(ctx, domain.Intent{Kind: domain.IntentInclude, ChannelID: "chan-1", ActorID: "alice", TargetID: "bob"})

		assert.NoError(t, err)
		assert.False(t, instance.IsBlocked("bob"))
		assert.Contains(t, instance.AllowedUsers, domain.MemberID("bob"))
	})

	t.Run("owner cannot be a permission target", func(t *testing.T) {
		f := newOrchestratorFixture()
		f.instanceRepo.On("GetByChannel", mock.Anything, domain.ChannelID("chan-1")).Return(managed(), nil)

		err := f.orchestrator.Dispatch(ctx, domain.Intent{Kind: domain.IntentExclude, ChannelID: "chan-1", ActorID: "alice", TargetID: "alice"})
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidationFailed))
	})

	t.Run("transfer requires an occupant", func(t *testing.T) {
		f := newOrchestratorFixture()
		f.instanceRepo.On("GetByChannel", mock.Anything, domain.ChannelID("chan-1")).Return(managed(), nil)
		f.gateway.On("Roster", mock.Anything, domain.ChannelID("chan-1")).Return([]domain.RosterEntry{}, nil)

		err := f.orchestrator.Dispatch(ctx, domain.Intent{Kind: domain.IntentTransfer, ChannelID: "chan-1", ActorID: "alice", TargetID: "bob"})
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeTargetNotFound))
	})

	t.Run("transfer to a system account is denied", func(t *testing.T) {
		f := newOrchestratorFixture()
		bot := testMember("helper-bot")
		bot.IsSystem = true
		f.instanceRepo.On("GetByChannel", mock.Anything, domain.ChannelID("chan-1")).Return(managed(), nil)
		f.gateway.On("Roster", mock.Anything, domain.ChannelID("chan-1")).Return([]domain.RosterEntry{
			{MemberID: "helper-bot", JoinedAt: time.Now(), IsSystem: true},
		}, nil)
		f.gateway.On("ResolveMember", mock.Anything, domain.CommunityID("community-1"), domain.MemberID("helper-bot")).
			Return(bot, nil)

		err := f.orchestrator.Dispatch(ctx, domain.Intent{Kind: domain.IntentTransfer, ChannelID: "chan-1", ActorID: "alice", TargetID: "helper-bot"})
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodePolicyDenied))
	})

	t.Run("reset restores defaults and clears overrides", func(t *testing.T) {
		f := newOrchestratorFixture()
		instance := managed()
		instance.CurrentName = "war room"
		instance.Settings.Locked = true
		instance.BlockedUsers = []domain.MemberID{"bob"}

		f.instanceRepo.On("GetByChannel", mock.Anything, domain.ChannelID("chan-1")).Return(instance, nil)
		f.policyRepo.On("Get", mock.Anything, domain.CommunityID("community-1")).Return(testPolicy(), nil)
		f.instanceRepo.On("Update", mock.Anything, instance).Return(nil)
		f.gateway.On("ClearAllOverrides", mock.Anything, domain.ChannelID("chan-1"), []domain.MemberID{"alice"}).Return(nil)
		f.gateway.On("ClearOverride", mock.Anything, domain.ChannelID("chan-1"), domain.EveryoneSubject).Return(nil)
		f.gateway.On("SetChannelProperties", mock.Anything, domain.ChannelID("chan-1"), mock.Anything).Return(nil)
		f.allowSurfaceRefresh()

		err := f.orchestrator.Dispatch(ctx, domain.Intent{Kind: domain.IntentReset, ChannelID: "chan-1", ActorID: "alice"})

		assert.NoError(t, err)
		assert.Equal(t, "Alice's channel", instance.CurrentName)
		assert.False(t, instance.Settings.Locked)
		assert.Empty(t, instance.BlockedUsers)
		assert.Empty(t, instance.Moderators)
	})

	t.Run("unknown intent", func(t *testing.T) {
		f := newOrchestratorFixture()
		f.instanceRepo.On("GetByChannel", mock.Anything, domain.ChannelID("chan-1")).Return(managed(), nil)

		err := f.orchestrator.Dispatch(ctx, domain.Intent{Kind: "bogus", ChannelID: "chan-1", ActorID: "alice"})
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidationFailed))
	})
}

func TestOrchestrator_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("delete persists blocked users first", func(t *testing.T) {
		f := newOrchestratorFixture()
		instance := &domain.ChannelInstance{
			CommunityID:  "community-1",
			ChannelID:    "chan-1",
			OwnerID:      "alice",
			BlockedUsers: []domain.MemberID{"bob"},
			Surface:      &domain.SurfaceRef{SurfaceID: "surf-1", HostChannelID: "chan-1"},
		}

		f.instanceRepo.On("GetByChannel", mock.Anything, domain.ChannelID("chan-1")).Return(instance, nil)
		f.surfaceHost.On("Remove", mock.Anything, *instance.Surface).Return(nil)
		f.gateway.On("DeleteChannel", mock.Anything, domain.ChannelID("chan-1")).Return(nil)
		f.profileRepo.On("Get", mock.Anything, domain.CommunityID("community-1"), domain.MemberID("alice")).
			Return(nil, domain.ErrProfileNotFound)
		f.profileRepo.On("Upsert", mock.Anything, mock.MatchedBy(func(p *domain.UserDefaultProfile) bool {
			return len(p.BlockedUsers) == 1 && p.BlockedUsers[0] == "bob"
		})).Return(nil)
		f.instanceRepo.On("Delete", mock.Anything, domain.ChannelID("chan-1")).Return(nil)
		f.metrics.On("RecordDeletion", "explicit").Return()

		assert.NoError(t, f.orchestrator.Delete(ctx, "chan-1"))
		f.profileRepo.AssertExpectations(t)
	})

	t.Run("second delete is a no-op", func(t *testing.T) {
		f := newOrchestratorFixture()
		f.instanceRepo.On("GetByChannel", mock.Anything, domain.ChannelID("chan-1")).
			Return(nil, domain.ErrInstanceNotFound)

		assert.NoError(t, f.orchestrator.Delete(ctx, "chan-1"))
		f.gateway.AssertNotCalled(t, "DeleteChannel", mock.Anything, mock.Anything)
	})

	t.Run("missing channel still removes the record", func(t *testing.T) {
		f := newOrchestratorFixture()
		instance := &domain.ChannelInstance{CommunityID: "community-1", ChannelID: "chan-1", OwnerID: "alice"}

		f.instanceRepo.On("GetByChannel", mock.Anything, domain.ChannelID("chan-1")).Return(instance, nil)
		f.gateway.On("DeleteChannel", mock.Anything, domain.ChannelID("chan-1")).Return(errors.New("gone"))
		f.instanceRepo.On("Delete", mock.Anything, domain.ChannelID("chan-1")).Return(nil)
		f.metrics.On("RecordDeletion", "explicit").Return()

		assert.NoError(t, f.orchestrator.Delete(ctx, "chan-1"))
		f.instanceRepo.AssertCalled(t, "Delete", mock.Anything, domain.ChannelID("chan-1"))
	})
}

func TestOrchestrator_FinalizeExpired(t *testing.T) {
	ctx := context.Background()

	t.Run("occupied channel survives", func(t *testing.T) {
		f := newOrchestratorFixture()
		deadline := time.Now().Add(-time.Minute)
		instance := &domain.ChannelInstance{
			ChannelID:          "chan-1",
			CurrentMemberCount: 1,
			DeleteAfter:        &deadline,
		}
		f.instanceRepo.On("GetByChannel", mock.Anything, domain.ChannelID("chan-1")).Return(instance, nil)

		assert.NoError(t, f.orchestrator.FinalizeExpired(ctx, "chan-1"))
		f.gateway.AssertNotCalled(t, "DeleteChannel", mock.Anything, mock.Anything)
	})

	t.Run("future deadline survives", func(t *testing.T) {
		f := newOrchestratorFixture()
		deadline := time.Now().Add(time.Hour)
		instance := &domain.ChannelInstance{ChannelID: "chan-1", DeleteAfter: &deadline}
		f.instanceRepo.On("GetByChannel", mock.Anything, domain.ChannelID("chan-1")).Return(instance, nil)

		assert.NoError(t, f.orchestrator.FinalizeExpired(ctx, "chan-1"))
		f.gateway.AssertNotCalled(t, "DeleteChannel", mock.Anything, mock.Anything)
	})

	t.Run("elapsed deadline deletes", func(t *testing.T) {
		f := newOrchestratorFixture()
		deadline := time.Now().Add(-time.Minute)
		instance := &domain.ChannelInstance{CommunityID: "community-1", ChannelID: "chan-1", OwnerID: "alice", DeleteAfter: &deadline}

		f.instanceRepo.On("GetByChannel", mock.Anything, domain.ChannelID("chan-1")).Return(instance, nil)
		f.gateway.On("DeleteChannel", mock.Anything, domain.ChannelID("chan-1")).Return(nil)
		f.instanceRepo.On("Delete", mock.Anything, domain.ChannelID("chan-1")).Return(nil)
		f.metrics.On("RecordDeletion", "expired").Return()

		assert.NoError(t, f.orchestrator.FinalizeExpired(ctx, "chan-1"))
		f.metrics.AssertCalled(t, "RecordDeletion", "expired")
	})
}

func TestPickTransferCandidate(t *testing.T) {
	base := time.Now()

	t.Run("earliest joiner wins", func(t *testing.T) {
		candidate := pickTransferCandidate([]domain.RosterEntry{
			{MemberID: "carol", JoinedAt: base.Add(time.Minute)},
			{MemberID: "bob", JoinedAt: base},
		}, "alice")
		assert.Equal(t, domain.MemberID("bob"), candidate)
	})

	t.Run("ties break on member id", func(t *testing.T) {
		candidate := pickTransferCandidate([]domain.RosterEntry{
			{MemberID: "zed", JoinedAt: base},
			{MemberID: "amy", JoinedAt: base},
		}, "alice")
		assert.Equal(t, domain.MemberID("amy"), candidate)
	})

	t.Run("system accounts and the departed owner are skipped", func(t *testing.T) {
		candidate := pickTransferCandidate([]domain.RosterEntry{
			{MemberID: "helper-bot", JoinedAt: base.Add(-time.Hour), IsSystem: true},
			{MemberID: "alice", JoinedAt: base.Add(-time.Hour)},
			{MemberID: "bob", JoinedAt: base},
		}, "alice")
		assert.Equal(t, domain.MemberID("bob"), candidate)
	})

	t.Run("no eligible candidate", func(t *testing.T) {
		candidate := pickTransferCandidate([]domain.RosterEntry{
			{MemberID: "helper-bot", JoinedAt: base, IsSystem: true},
		}, "alice")
		assert.Equal(t, domain.MemberID(""), candidate)
	})
}
