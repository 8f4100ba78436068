package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"tempvox/internal/core/domain"
	"tempvox/internal/core/ports"
	apperrors "tempvox/pkg/errors"
	"tempvox/pkg/retry"
	"tempvox/pkg/utils"
	"tempvox/pkg/validation"

	"go.uber.org/zap"
)

type orchestrator struct {
	instanceRepo ports.InstanceRepository
	policyRepo   ports.PolicyRepository
	gateway      ports.ChannelGateway
	profiles     *ProfileSync
	surface      *SurfaceSynchronizer
	cooldowns    ports.CooldownService
	metrics      ports.MetricsRecorder
	executor     *KeyedExecutor
	retryCfg     retry.Config
	logger       *zap.SugaredLogger

	// creation idempotency guard, keyed by community:requester
	inflightMu sync.Mutex
	inflight   map[string]struct{}
}

func NewOrchestrator(
	instanceRepo ports.InstanceRepository,
	policyRepo ports.PolicyRepository,
	gateway ports.ChannelGateway,
	profiles *ProfileSync,
	surface *SurfaceSynchronizer,
	cooldowns ports.CooldownService,
	metrics ports.MetricsRecorder,
	executor *KeyedExecutor,
	logger *zap.SugaredLogger,
) ports.Orchestrator {
	return &orchestrator{
		instanceRepo: instanceRepo,
		policyRepo:   policyRepo,
		gateway:      gateway,
		profiles:     profiles,
		surface:      surface,
		cooldowns:    cooldowns,
		metrics:      metrics,
		executor:     executor,
		retryCfg:     retry.DefaultConfig(),
		logger:       logger,
		inflight:     make(map[string]struct{}),
	}
}

func cooldownKey(communityID domain.CommunityID, requesterID domain.MemberID) string {
	return fmt.Sprintf("create:%s:%s", communityID, requesterID)
}

// CreateChannel runs the creation preconditions in order (first failure
// wins), allocates the channel, applies the derived ACL and persists the
// instance. Any failure after allocation tears the channel back down so
// no orphan record or channel survives the attempt.
func (o *orchestrator) CreateChannel(ctx context.Context, communityID domain.CommunityID, requesterID domain.MemberID) (*domain.ChannelInstance, error) {
	policy, err := o.policyRepo.Get(ctx, communityID)
	if errors.Is(err, domain.ErrPolicyNotFound) {
		return nil, apperrors.NewTargetNotFoundError("community policy")
	}
	if err != nil {
		return nil, apperrors.NewExternalUnavailableError("policy store unavailable", err)
	}
	if !policy.Enabled {
		return nil, apperrors.NewPolicyDeniedError("ephemeral channels are disabled for this community")
	}

	requester, err := o.gateway.ResolveMember(ctx, communityID, requesterID)
	if errors.Is(err, domain.ErrMemberNotFound) {
		return nil, apperrors.NewTargetNotFoundError("member")
	}
	if err != nil {
		return nil, apperrors.NewExternalUnavailableError("member lookup failed", err)
	}
	if requester.IsSystem {
		return nil, apperrors.NewPolicyDeniedError("system accounts cannot own channels")
	}

	// (a) cooldown. Acquiring doubles as the check; every failure below
	// releases the hold so only a successful creation starts the window.
	window := time.Duration(policy.CooldownMinutes) * time.Minute
	key := cooldownKey(communityID, requesterID)
	if window > 0 {
		ok, remaining, err := o.cooldowns.TryAcquire(ctx, key, window)
		if err != nil {
			return nil, apperrors.NewExternalUnavailableError("cooldown store unavailable", err)
		}
		if !ok {
			return nil, apperrors.NewPolicyDeniedError(
				fmt.Sprintf("cooldown active, roughly %s remaining", formatRemaining(remaining)))
		}
	}
	releaseCooldown := func() {
		if window > 0 {
			if err := o.cooldowns.Release(context.WithoutCancel(ctx), key); err != nil {
				o.logger.Warnw("failed to release cooldown", "key", key, "error", err)
			}
		}
	}

	// (b) creation policy
	if err := checkCreationPolicy(&policy.Creation, requester); err != nil {
		releaseCooldown()
		return nil, err
	}

	// (c) per-user cap
	if policy.MaxChannelsPer > 0 {
		owned, err := o.instanceRepo.CountByOwner(ctx, communityID, requesterID)
		if err != nil {
			releaseCooldown()
			return nil, apperrors.NewExternalUnavailableError("instance store unavailable", err)
		}
		if owned >= policy.MaxChannelsPer {
			releaseCooldown()
			return nil, apperrors.NewPolicyDeniedError(
				fmt.Sprintf("channel cap reached (%d of %d)", owned, policy.MaxChannelsPer))
		}
	}

	// (d) idempotency guard
	o.inflightMu.Lock()
	if _, busy := o.inflight[key]; busy {
		o.inflightMu.Unlock()
		releaseCooldown()
		return nil, apperrors.NewPolicyDeniedError("a channel is already being created for you")
	}
	o.inflight[key] = struct{}{}
	o.inflightMu.Unlock()
	defer func() {
		o.inflightMu.Lock()
		delete(o.inflight, key)
		o.inflightMu.Unlock()
	}()

	profile, err := o.profiles.Lookup(ctx, communityID, requesterID)
	if err != nil {
		releaseCooldown()
		return nil, apperrors.NewExternalUnavailableError("profile store unavailable", err)
	}
	resolved := ResolveCreationSettings(policy, profile, requester)

	channelID, err := o.gateway.CreateChannel(ctx, communityID, policy.TargetCategoryID, resolved.Name, resolved.Settings)
	if err != nil {
		releaseCooldown()
		return nil, apperrors.NewExternalUnavailableError("channel allocation failed", err)
	}

	now := utils.Now()
	originalName := resolved.Name
	if resolved.CustomName {
		// A restored custom name must read as a rename, so the next save
		// keeps treating it as custom.
		originalName = RenderNameTemplate(policy.NameTemplate, requester)
	}
	instance := &domain.ChannelInstance{
		CommunityID:  communityID,
		ChannelID:    channelID,
		OwnerID:      requesterID,
		OriginalName: originalName,
		CurrentName:  resolved.Name,
		Settings:     resolved.Settings,
		LastActiveAt: now,
		CreatedAt:    now,
	}
	if profile != nil {
		instance.AutoSave = profile.AutoSave
	}
	for _, blocked := range resolved.BlockedUsers {
		if blocked == requesterID {
			continue
		}
		instance.Block(blocked)
	}

	if err := o.applyCreationACL(ctx, instance); err != nil {
		o.teardownChannel(ctx, channelID)
		releaseCooldown()
		return nil, apperrors.NewExternalUnavailableError("acl programming failed", err)
	}

	if err := o.instanceRepo.Create(ctx, instance); err != nil {
		o.teardownChannel(ctx, channelID)
		releaseCooldown()
		return nil, apperrors.NewExternalUnavailableError("instance store unavailable", err)
	}

	o.metrics.RecordCreation(communityID)
	o.surface.Refresh(ctx, instance)

	o.logger.Infow("channel created",
		"community_id", communityID,
		"channel_id", channelID,
		"owner_id", requesterID,
		"name", resolved.Name,
	)
	return instance, nil
}

func (o *orchestrator) teardownChannel(ctx context.Context, channelID domain.ChannelID) {
	if err := o.gateway.DeleteChannel(context.WithoutCancel(ctx), channelID); err != nil {
		o.logger.Errorw("failed to tear down channel after aborted creation",
			"channel_id", channelID,
			"error", err,
		)
	}
}

func checkCreationPolicy(policy *domain.CreationPolicy, requester *domain.Member) error {
	for _, blocked := range policy.BlockedUsers {
		if blocked == requester.ID {
			return apperrors.NewPolicyDeniedError("you are barred from creating channels")
		}
	}
	if requester.HasRole(policy.BlockedRoles) {
		return apperrors.NewPolicyDeniedError("one of your roles is barred from creating channels")
	}

	switch policy.Kind {
	case domain.CreationEveryone, "":
		return nil
	case domain.CreationRole:
		if !requester.HasRole(policy.AllowedRoles) {
			return apperrors.NewPolicyDeniedError("channel creation requires an allowed role")
		}
	case domain.CreationSpecific:
		for _, allowed := range policy.AllowedUsers {
			if allowed == requester.ID {
				return nil
			}
		}
		return apperrors.NewPolicyDeniedError("channel creation is restricted to specific members")
	}
	return nil
}

// applyCreationACL programs the initial overrides: full control for the
// owner, channel-wide visibility state, and pre-denied entries for every
// blocked user restored from the profile.
func (o *orchestrator) applyCreationACL(ctx context.Context, instance *domain.ChannelInstance) error {
	allow := true
	if err := o.setOverride(ctx, instance.ChannelID, instance.OwnerID, ports.PermissionOverride{View: &allow, Connect: &allow}); err != nil {
		return err
	}
	if err := o.applyVisibilityACL(ctx, instance); err != nil {
		return err
	}
	deny := false
	for _, blocked := range instance.BlockedUsers {
		if err := o.setOverride(ctx, instance.ChannelID, blocked, ports.PermissionOverride{View: &deny, Connect: &deny}); err != nil {
			return err
		}
	}
	return nil
}

// applyVisibilityACL programs the community-wide override implied by the
// lock and hide flags. With neither active the override is removed.
func (o *orchestrator) applyVisibilityACL(ctx context.Context, instance *domain.ChannelInstance) error {
	if !instance.Settings.Locked && !instance.Settings.Hidden {
		return o.clearOverride(ctx, instance.ChannelID, domain.EveryoneSubject)
	}
	view := !instance.Settings.Hidden
	connect := !instance.Settings.Locked
	return o.setOverride(ctx, instance.ChannelID, domain.EveryoneSubject, ports.PermissionOverride{View: &view, Connect: &connect})
}

func (o *orchestrator) setOverride(ctx context.Context, channelID domain.ChannelID, subject domain.MemberID, override ports.PermissionOverride) error {
	return retry.Do(ctx, o.retryCfg, func() error {
		return o.gateway.SetOverride(ctx, channelID, subject, override)
	})
}

func (o *orchestrator) clearOverride(ctx context.Context, channelID domain.ChannelID, subject domain.MemberID) error {
	return retry.Do(ctx, o.retryCfg, func() error {
		return o.gateway.ClearOverride(ctx, channelID, subject)
	})
}

// OnMemberJoined handles a join signal. The member count is recounted
// from the live roster so missed events self-heal.
func (o *orchestrator) OnMemberJoined(ctx context.Context, channelID domain.ChannelID, memberID domain.MemberID) error {
	return o.executor.Do(ctx, channelID, func(ctx context.Context) error {
		return o.handleMembershipChange(ctx, channelID, memberID, false)
	})
}

// OnMemberLeft handles a leave signal, covering auto-transfer on owner
// departure and auto-delete scheduling when the channel empties.
func (o *orchestrator) OnMemberLeft(ctx context.Context, channelID domain.ChannelID, memberID domain.MemberID) error {
	return o.executor.Do(ctx, channelID, func(ctx context.Context) error {
		return o.handleMembershipChange(ctx, channelID, memberID, true)
	})
}

func (o *orchestrator) handleMembershipChange(ctx context.Context, channelID domain.ChannelID, memberID domain.MemberID, departure bool) error {
	instance, err := o.instanceRepo.GetByChannel(ctx, channelID)
	if errors.Is(err, domain.ErrInstanceNotFound) {
		// Not a managed channel.
		return nil
	}
	if err != nil {
		return apperrors.NewExternalUnavailableError("instance store unavailable", err)
	}

	roster, err := o.gateway.Roster(ctx, channelID)
	if err != nil {
		return apperrors.NewExternalUnavailableError("roster unavailable", err)
	}

	instance.ApplyRoster(len(roster), utils.Now())

	if departure && memberID == instance.OwnerID && instance.CurrentMemberCount > 0 {
		if candidate := pickTransferCandidate(roster, instance.OwnerID); candidate != "" {
			o.promote(ctx, instance, candidate, true)
		}
	}

	if instance.CurrentMemberCount == 0 {
		policy, err := o.policyRepo.Get(ctx, instance.CommunityID)
		if err == nil && policy.AutoDelete.Enabled {
			if policy.AutoDelete.GraceMinutes == 0 {
				return o.deleteLocked(ctx, instance, "emptied")
			}
			instance.ScheduleDeletion(utils.Now().Add(time.Duration(policy.AutoDelete.GraceMinutes) * time.Minute))
		} else if err != nil {
			o.logger.Warnw("policy lookup failed during membership change",
				"community_id", instance.CommunityID,
				"error", err,
			)
		}
	}

	if err := o.instanceRepo.Update(ctx, instance); err != nil {
		return apperrors.NewExternalUnavailableError("instance store unavailable", err)
	}

	o.surface.Refresh(ctx, instance)
	return nil
}

// pickTransferCandidate returns the longest-tenured non-system occupant,
// with lexicographic member id as the tie-break. Deterministic so
// concurrent handlers converge on the same choice.
func pickTransferCandidate(roster []domain.RosterEntry, exclude domain.MemberID) domain.MemberID {
	candidates := make([]domain.RosterEntry, 0, len(roster))
	for _, e := range roster {
		if e.IsSystem || e.MemberID == exclude {
			continue
		}
		candidates = append(candidates, e)
	}
	if len(candidates) == 0 {
		return ""
	}
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].JoinedAt.Equal(candidates[j].JoinedAt) {
			return candidates[i].JoinedAt.Before(candidates[j].JoinedAt)
		}
		return candidates[i].MemberID < candidates[j].MemberID
	})
	return candidates[0].MemberID
}

// promote rewires ownership on the record and grants the new owner full
// control at the ACL level. Record state is authoritative; a failed grant
// is logged and left to the next mutation to reconverge.
func (o *orchestrator) promote(ctx context.Context, instance *domain.ChannelInstance, newOwner domain.MemberID, automatic bool) {
	oldOwner := instance.OwnerID
	if err := instance.PromoteOwner(newOwner); err != nil {
		return
	}

	allow := true
	if err := o.setOverride(ctx, instance.ChannelID, newOwner, ports.PermissionOverride{View: &allow, Connect: &allow}); err != nil {
		o.logger.Warnw("failed to grant control to new owner",
			"channel_id", instance.ChannelID,
			"new_owner", newOwner,
			"error", err,
		)
	}

	o.metrics.RecordTransfer(automatic)
	o.logger.Infow("ownership transferred",
		"channel_id", instance.ChannelID,
		"old_owner", oldOwner,
		"new_owner", newOwner,
		"automatic", automatic,
	)
}

// Dispatch executes one typed command intent under the channel's lock.
func (o *orchestrator) Dispatch(ctx context.Context, intent domain.Intent) error {
	return o.executor.Do(ctx, intent.ChannelID, func(ctx context.Context) error {
		return o.dispatchLocked(ctx, intent)
	})
}

func (o *orchestrator) dispatchLocked(ctx context.Context, intent domain.Intent) error {
	instance, err := o.instanceRepo.GetByChannel(ctx, intent.ChannelID)
	if errors.Is(err, domain.ErrInstanceNotFound) {
		return apperrors.NewTargetNotFoundError("channel instance")
	}
	if err != nil {
		return apperrors.NewExternalUnavailableError("instance store unavailable", err)
	}

	switch intent.Kind {
	case domain.IntentSaveProfile, domain.IntentLoadProfile, domain.IntentToggleAutoSave:
		// Profile commands write the owner's profile, so moderators are
		// not enough.
		if !instance.IsOwner(intent.ActorID) {
			return apperrors.NewPolicyDeniedError("only the owner can manage saved settings")
		}
	default:
		if !instance.IsModerator(intent.ActorID) {
			return apperrors.NewPolicyDeniedError("you are not a moderator of this channel")
		}
	}

	switch intent.Kind {
	case domain.IntentRename:
		return o.rename(ctx, instance, intent.Name)
	case domain.IntentSetLimit:
		return o.setLimit(ctx, instance, intent.Limit)
	case domain.IntentSetBitrate:
		return o.setBitrate(ctx, instance, intent.Bitrate)
	case domain.IntentSetRegion:
		return o.setRegion(ctx, instance, intent.Region)
	case domain.IntentToggleLock:
		return o.toggleLock(ctx, instance)
	case domain.IntentToggleHide:
		return o.toggleHide(ctx, instance)
	case domain.IntentExclude:
		return o.setExclusion(ctx, instance, intent.TargetID, true)
	case domain.IntentInclude:
		return o.setInclusion(ctx, instance, intent.TargetID)
	case domain.IntentKick:
		return o.kick(ctx, instance, intent.TargetID)
	case domain.IntentTransfer:
		return o.transferManual(ctx, instance, intent.TargetID)
	case domain.IntentReset:
		return o.reset(ctx, instance)
	case domain.IntentDelete:
		return o.deleteLocked(ctx, instance, "command")
	case domain.IntentSaveProfile:
		if err := o.profiles.SaveNow(ctx, instance); err != nil {
			return apperrors.NewExternalUnavailableError("profile store unavailable", err)
		}
		o.surface.Refresh(ctx, instance)
		return nil
	case domain.IntentLoadProfile:
		return o.loadProfile(ctx, instance)
	case domain.IntentToggleAutoSave:
		if _, err := o.profiles.ToggleAutoSave(ctx, instance); err != nil {
			return apperrors.NewExternalUnavailableError("profile store unavailable", err)
		}
		if err := o.instanceRepo.Update(ctx, instance); err != nil {
			return apperrors.NewExternalUnavailableError("instance store unavailable", err)
		}
		o.surface.Refresh(ctx, instance)
		return nil
	default:
		return apperrors.NewValidationError(fmt.Sprintf("unknown intent %q", intent.Kind))
	}
}

// commit persists the record, applies external channel properties, runs
// the auto-save hook and refreshes the surface. The record write comes
// first: it is the source of truth when an external call fails midway.
func (o *orchestrator) commit(ctx context.Context, instance *domain.ChannelInstance, props *ports.ChannelProperties) error {
	if err := o.instanceRepo.Update(ctx, instance); err != nil {
		return apperrors.NewExternalUnavailableError("instance store unavailable", err)
	}

	if props != nil {
		if err := o.gateway.SetChannelProperties(ctx, instance.ChannelID, *props); err != nil {
			o.logger.Warnw("channel property update failed",
				"channel_id", instance.ChannelID,
				"error", err,
			)
		}
	}

	o.profiles.AutoSaveIfEnabled(ctx, instance)
	o.surface.Refresh(ctx, instance)
	return nil
}

func (o *orchestrator) rename(ctx context.Context, instance *domain.ChannelInstance, name string) error {
	name = strings.TrimSpace(name)
	if err := validation.ValidateChannelName(name); err != nil {
		return apperrors.NewValidationError(err.Error())
	}
	instance.CurrentName = name
	return o.commit(ctx, instance, &ports.ChannelProperties{Name: &name})
}

func (o *orchestrator) setLimit(ctx context.Context, instance *domain.ChannelInstance, limit int) error {
	if err := validation.ValidateUserLimit(limit); err != nil {
		return apperrors.NewValidationError(err.Error())
	}
	instance.Settings.UserLimit = limit
	return o.commit(ctx, instance, &ports.ChannelProperties{UserLimit: &limit})
}

func (o *orchestrator) setBitrate(ctx context.Context, instance *domain.ChannelInstance, bitrate int) error {
	policy, err := o.policyRepo.Get(ctx, instance.CommunityID)
	if err != nil {
		return apperrors.NewExternalUnavailableError("policy store unavailable", err)
	}
	if err := validation.ValidateBitrate(bitrate, policy.MaxBitrate); err != nil {
		return apperrors.NewValidationError(err.Error())
	}
	instance.Settings.Bitrate = bitrate
	return o.commit(ctx, instance, &ports.ChannelProperties{Bitrate: &bitrate})
}

func (o *orchestrator) setRegion(ctx context.Context, instance *domain.ChannelInstance, region string) error {
	if err := validation.ValidateRegion(region); err != nil {
		return apperrors.NewValidationError(err.Error())
	}
	instance.Settings.Region = region
	return o.commit(ctx, instance, &ports.ChannelProperties{Region: &region})
}

func (o *orchestrator) toggleLock(ctx context.Context, instance *domain.ChannelInstance) error {
	instance.Settings.Locked = !instance.Settings.Locked
	if err := o.instanceRepo.Update(ctx, instance); err != nil {
		return apperrors.NewExternalUnavailableError("instance store unavailable", err)
	}
	if err := o.applyVisibilityACL(ctx, instance); err != nil {
		o.logger.Warnw("lock override failed",
			"channel_id", instance.ChannelID,
			"error", err,
		)
	}
	o.profiles.AutoSaveIfEnabled(ctx, instance)
	o.surface.Refresh(ctx, instance)
	return nil
}

func (o *orchestrator) toggleHide(ctx context.Context, instance *domain.ChannelInstance) error {
	instance.Settings.Hidden = !instance.Settings.Hidden
	if err := o.instanceRepo.Update(ctx, instance); err != nil {
		return apperrors.NewExternalUnavailableError("instance store unavailable", err)
	}
	if err := o.applyVisibilityACL(ctx, instance); err != nil {
		o.logger.Warnw("hide override failed",
			"channel_id", instance.ChannelID,
			"error", err,
		)
	}
	o.profiles.AutoSaveIfEnabled(ctx, instance)
	o.surface.Refresh(ctx, instance)
	return nil
}

// setExclusion is the unified ban/unban primitive. Banning denies view
// and connect and removes the target from the channel when present;
// unbanning deletes the deny entry.
func (o *orchestrator) setExclusion(ctx context.Context, instance *domain.ChannelInstance, target domain.MemberID, excluded bool) error {
	if target == "" {
		return apperrors.NewValidationError("a target member is required")
	}
	if target == instance.OwnerID {
		return apperrors.NewValidationError("the owner cannot be a permission target")
	}

	if excluded {
		if err := instance.Block(target); err != nil {
			return apperrors.NewValidationError(err.Error())
		}
	} else {
		if err := instance.Unblock(target); err != nil {
			return apperrors.NewValidationError(err.Error())
		}
	}

	if err := o.instanceRepo.Update(ctx, instance); err != nil {
		return apperrors.NewExternalUnavailableError("instance store unavailable", err)
	}

	if excluded {
		deny := false
		if err := o.setOverride(ctx, instance.ChannelID, target, ports.PermissionOverride{View: &deny, Connect: &deny}); err != nil {
			o.logger.Warnw("deny override failed", "channel_id", instance.ChannelID, "target", target, "error", err)
		}
		if o.occupies(ctx, instance.ChannelID, target) {
			if err := o.gateway.ForceDisconnect(ctx, instance.ChannelID, target); err != nil {
				o.logger.Warnw("force disconnect failed", "channel_id", instance.ChannelID, "target", target, "error", err)
			}
		}
	} else {
		if err := o.clearOverride(ctx, instance.ChannelID, target); err != nil {
			o.logger.Warnw("override clear failed", "channel_id", instance.ChannelID, "target", target, "error", err)
		}
	}

	o.profiles.AutoSaveIfEnabled(ctx, instance)
	o.surface.Refresh(ctx, instance)
	return nil
}

// setInclusion allows the target explicitly, lifting any block and
// granting view and connect.
func (o *orchestrator) setInclusion(ctx context.Context, instance *domain.ChannelInstance, target domain.MemberID) error {
	if target == "" {
		return apperrors.NewValidationError("a target member is required")
	}
	if target == instance.OwnerID {
		return apperrors.NewValidationError("the owner cannot be a permission target")
	}

	if err := instance.Allow(target); err != nil {
		return apperrors.NewValidationError(err.Error())
	}
	if err := o.instanceRepo.Update(ctx, instance); err != nil {
		return apperrors.NewExternalUnavailableError("instance store unavailable", err)
	}

	allow := true
	if err := o.setOverride(ctx, instance.ChannelID, target, ports.PermissionOverride{View: &allow, Connect: &allow}); err != nil {
		o.logger.Warnw("allow override failed", "channel_id", instance.ChannelID, "target", target, "error", err)
	}

	o.profiles.AutoSaveIfEnabled(ctx, instance)
	o.surface.Refresh(ctx, instance)
	return nil
}

func (o *orchestrator) kick(ctx context.Context, instance *domain.ChannelInstance, target domain.MemberID) error {
	if target == "" {
		return apperrors.NewValidationError("a target member is required")
	}
	if target == instance.OwnerID {
		return apperrors.NewValidationError("the owner cannot be kicked")
	}
	if !o.occupies(ctx, instance.ChannelID, target) {
		return apperrors.NewTargetNotFoundError("member in channel")
	}
	if err := o.gateway.ForceDisconnect(ctx, instance.ChannelID, target); err != nil {
		return apperrors.NewExternalUnavailableError("force disconnect failed", err)
	}
	o.surface.Refresh(ctx, instance)
	return nil
}

// transferManual transfers ownership by command. Unlike automatic
// transfer the candidate must currently occupy the channel and must be an
// eligible (non-system) account.
func (o *orchestrator) transferManual(ctx context.Context, instance *domain.ChannelInstance, target domain.MemberID) error {
	if target == "" {
		return apperrors.NewValidationError("a target member is required")
	}
	if target == instance.OwnerID {
		return apperrors.NewValidationError("member already owns this channel")
	}
	if !o.occupies(ctx, instance.ChannelID, target) {
		return apperrors.NewTargetNotFoundError("member in channel")
	}

	member, err := o.gateway.ResolveMember(ctx, instance.CommunityID, target)
	if errors.Is(err, domain.ErrMemberNotFound) {
		return apperrors.NewTargetNotFoundError("member")
	}
	if err != nil {
		return apperrors.NewExternalUnavailableError("member lookup failed", err)
	}
	if member.IsSystem {
		return apperrors.NewPolicyDeniedError("system accounts cannot own channels")
	}

	o.promote(ctx, instance, target, false)
	if err := o.instanceRepo.Update(ctx, instance); err != nil {
		return apperrors.NewExternalUnavailableError("instance store unavailable", err)
	}
	o.surface.Refresh(ctx, instance)
	return nil
}

// reset restores community defaults, clears every permission set and
// removes all non-owner ACL overrides.
func (o *orchestrator) reset(ctx context.Context, instance *domain.ChannelInstance) error {
	policy, err := o.policyRepo.Get(ctx, instance.CommunityID)
	if err != nil {
		return apperrors.NewExternalUnavailableError("policy store unavailable", err)
	}

	instance.Settings = policy.Defaults
	instance.CurrentName = instance.OriginalName
	instance.ResetPermissions()

	if err := o.instanceRepo.Update(ctx, instance); err != nil {
		return apperrors.NewExternalUnavailableError("instance store unavailable", err)
	}

	if err := o.gateway.ClearAllOverrides(ctx, instance.ChannelID, []domain.MemberID{instance.OwnerID}); err != nil {
		o.logger.Warnw("override reset failed", "channel_id", instance.ChannelID, "error", err)
	}
	if err := o.applyVisibilityACL(ctx, instance); err != nil {
		o.logger.Warnw("visibility reset failed", "channel_id", instance.ChannelID, "error", err)
	}

	name := instance.CurrentName
	limit := instance.Settings.UserLimit
	bitrate := instance.Settings.Bitrate
	region := instance.Settings.Region
	if err := o.gateway.SetChannelProperties(ctx, instance.ChannelID, ports.ChannelProperties{
		Name: &name, UserLimit: &limit, Bitrate: &bitrate, Region: &region,
	}); err != nil {
		o.logger.Warnw("channel property reset failed", "channel_id", instance.ChannelID, "error", err)
	}

	o.surface.Refresh(ctx, instance)
	return nil
}

// loadProfile applies the owner's saved profile onto the running channel:
// record first, then channel properties and visibility overrides.
func (o *orchestrator) loadProfile(ctx context.Context, instance *domain.ChannelInstance) error {
	_, err := o.profiles.LoadSaved(ctx, instance)
	if errors.Is(err, domain.ErrProfileNotFound) {
		return apperrors.NewTargetNotFoundError("profile")
	}
	if err != nil {
		return apperrors.NewExternalUnavailableError("profile store unavailable", err)
	}

	if err := o.instanceRepo.Update(ctx, instance); err != nil {
		return apperrors.NewExternalUnavailableError("instance store unavailable", err)
	}

	name := instance.CurrentName
	limit := instance.Settings.UserLimit
	bitrate := instance.Settings.Bitrate
	region := instance.Settings.Region
	if err := o.gateway.SetChannelProperties(ctx, instance.ChannelID, ports.ChannelProperties{
		Name: &name, UserLimit: &limit, Bitrate: &bitrate, Region: &region,
	}); err != nil {
		o.logger.Warnw("channel property update failed", "channel_id", instance.ChannelID, "error", err)
	}
	if err := o.applyVisibilityACL(ctx, instance); err != nil {
		o.logger.Warnw("visibility override failed", "channel_id", instance.ChannelID, "error", err)
	}
	deny := false
	for _, blocked := range instance.BlockedUsers {
		if err := o.setOverride(ctx, instance.ChannelID, blocked, ports.PermissionOverride{View: &deny, Connect: &deny}); err != nil {
			o.logger.Warnw("deny override failed", "channel_id", instance.ChannelID, "target", blocked, "error", err)
		}
	}

	o.surface.Refresh(ctx, instance)
	return nil
}

func (o *orchestrator) occupies(ctx context.Context, channelID domain.ChannelID, member domain.MemberID) bool {
	roster, err := o.gateway.Roster(ctx, channelID)
	if err != nil {
		o.logger.Debugw("roster unavailable", "channel_id", channelID, "error", err)
		return false
	}
	for _, e := range roster {
		if e.MemberID == member {
			return true
		}
	}
	return false
}

// Delete removes the surface, the channel and the record, persisting
// blocked users to the owner's profile first so bans survive recreation.
// Safe to call twice: a missing record is a no-op.
func (o *orchestrator) Delete(ctx context.Context, channelID domain.ChannelID) error {
	return o.executor.Do(ctx, channelID, func(ctx context.Context) error {
		instance, err := o.instanceRepo.GetByChannel(ctx, channelID)
		if errors.Is(err, domain.ErrInstanceNotFound) {
			return nil
		}
		if err != nil {
			return apperrors.NewExternalUnavailableError("instance store unavailable", err)
		}
		return o.deleteLocked(ctx, instance, "explicit")
	})
}

func (o *orchestrator) deleteLocked(ctx context.Context, instance *domain.ChannelInstance, reason string) error {
	o.surface.Remove(ctx, instance)

	if err := o.gateway.DeleteChannel(ctx, instance.ChannelID); err != nil {
		o.logger.Warnw("channel deletion failed, removing record anyway",
			"channel_id", instance.ChannelID,
			"error", err,
		)
	}

	if err := o.profiles.PersistBlocked(ctx, instance); err != nil {
		o.logger.Warnw("failed to persist blocked users on deletion",
			"channel_id", instance.ChannelID,
			"owner_id", instance.OwnerID,
			"error", err,
		)
	}

	if err := o.instanceRepo.Delete(ctx, instance.ChannelID); err != nil && !errors.Is(err, domain.ErrInstanceNotFound) {
		return apperrors.NewExternalUnavailableError("instance store unavailable", err)
	}

	o.metrics.RecordDeletion(reason)
	o.logger.Infow("channel deleted",
		"channel_id", instance.ChannelID,
		"community_id", instance.CommunityID,
		"reason", reason,
	)
	return nil
}

// FinalizeExpired deletes the channel only if, re-read under the lock,
// it is still empty with an elapsed deadline. The sweeper's scan result
// may be stale by the time this runs.
func (o *orchestrator) FinalizeExpired(ctx context.Context, channelID domain.ChannelID) error {
	return o.executor.Do(ctx, channelID, func(ctx context.Context) error {
		instance, err := o.instanceRepo.GetByChannel(ctx, channelID)
		if errors.Is(err, domain.ErrInstanceNotFound) {
			return nil
		}
		if err != nil {
			return apperrors.NewExternalUnavailableError("instance store unavailable", err)
		}
		if instance.CurrentMemberCount > 0 || instance.DeleteAfter == nil {
			return nil
		}
		if utils.Now().Before(*instance.DeleteAfter) {
			return nil
		}
		return o.deleteLocked(ctx, instance, "expired")
	})
}

func (o *orchestrator) GetInstance(ctx context.Context, channelID domain.ChannelID) (*domain.ChannelInstance, error) {
	instance, err := o.instanceRepo.GetByChannel(ctx, channelID)
	if errors.Is(err, domain.ErrInstanceNotFound) {
		return nil, apperrors.NewTargetNotFoundError("channel instance")
	}
	if err != nil {
		return nil, apperrors.NewExternalUnavailableError("instance store unavailable", err)
	}
	return instance, nil
}

func (o *orchestrator) ListInstances(ctx context.Context, communityID domain.CommunityID) ([]*domain.ChannelInstance, error) {
	instances, err := o.instanceRepo.ListByCommunity(ctx, communityID)
	if err != nil {
		return nil, apperrors.NewExternalUnavailableError("instance store unavailable", err)
	}
	return instances, nil
}

func formatRemaining(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%d seconds", int(d.Seconds()))
	}
	minutes := int((d + time.Minute - 1) / time.Minute)
	return fmt.Sprintf("%d minutes", minutes)
}
