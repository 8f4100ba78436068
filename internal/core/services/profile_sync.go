package services

import (
	"context"
	"errors"
	"fmt"

	"tempvox/internal/core/domain"
	"tempvox/internal/core/ports"
	"tempvox/pkg/utils"

	"go.uber.org/zap"
)

// ProfileSync keeps the owner's UserDefaultProfile in step with the live
// instance. Saves are snapshots of the instance; loads apply a snapshot
// back onto a running channel.
type ProfileSync struct {
	profileRepo ports.ProfileRepository
	logger      *zap.SugaredLogger
}

func NewProfileSync(profileRepo ports.ProfileRepository, logger *zap.SugaredLogger) *ProfileSync {
	return &ProfileSync{
		profileRepo: profileRepo,
		logger:      logger,
	}
}

// AutoSaveIfEnabled snapshots the instance into the owner's profile after
// a settings mutation, when the instance has auto-save on. Failures are
// logged, not surfaced: the mutation itself already succeeded.
func (p *ProfileSync) AutoSaveIfEnabled(ctx context.Context, instance *domain.ChannelInstance) {
	if !instance.AutoSave {
		return
	}
	if err := p.SaveNow(ctx, instance); err != nil {
		p.logger.Warnw("auto-save failed",
			"channel_id", instance.ChannelID,
			"owner_id", instance.OwnerID,
			"error", err,
		)
	}
}

// SaveNow snapshots the instance into the owner's profile unconditionally.
// The saved name stays empty while the channel still carries its
// auto-generated name, so recreation re-renders the template.
func (p *ProfileSync) SaveNow(ctx context.Context, instance *domain.ChannelInstance) error {
	profile, err := p.getOrNew(ctx, instance.CommunityID, instance.OwnerID)
	if err != nil {
		return err
	}

	if instance.HasCustomName() {
		profile.CustomName = instance.CurrentName
	} else {
		profile.CustomName = ""
	}
	profile.Settings = instance.Settings
	profile.BlockedUsers = append([]domain.MemberID(nil), instance.BlockedUsers...)
	profile.AutoSave = instance.AutoSave
	profile.SavedAt = utils.Now()

	if err := p.profileRepo.Upsert(ctx, profile); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// PersistBlocked folds the instance's blocked set into the owner's
// profile on deletion, so bans survive across channel recreations. Creates
// no profile when there is nothing to persist.
func (p *ProfileSync) PersistBlocked(ctx context.Context, instance *domain.ChannelInstance) error {
	if len(instance.BlockedUsers) == 0 {
		return nil
	}

	profile, err := p.getOrNew(ctx, instance.CommunityID, instance.OwnerID)
	if err != nil {
		return err
	}

	profile.MergeBlocked(instance.BlockedUsers)
	if err := p.profileRepo.Upsert(ctx, profile); err != nil {
		return fmt.Errorf("failed to persist blocked users: %w", err)
	}
	return nil
}

// LoadSaved applies the owner's saved profile onto the live instance
// record. Returns the loaded profile; external property and ACL
// application stays with the caller.
func (p *ProfileSync) LoadSaved(ctx context.Context, instance *domain.ChannelInstance) (*domain.UserDefaultProfile, error) {
	profile, err := p.profileRepo.Get(ctx, instance.CommunityID, instance.OwnerID)
	if err != nil {
		return nil, err
	}

	instance.Settings = profile.Settings
	if profile.CustomName != "" {
		instance.CurrentName = profile.CustomName
	}
	for _, blocked := range profile.BlockedUsers {
		if blocked == instance.OwnerID {
			continue
		}
		instance.Block(blocked)
	}
	instance.AutoSave = profile.AutoSave

	profile.LastUsedAt = utils.Now()
	if err := p.profileRepo.Upsert(ctx, profile); err != nil {
		p.logger.Warnw("failed to stamp profile usage",
			"community_id", instance.CommunityID,
			"owner_id", instance.OwnerID,
			"error", err,
		)
	}

	return profile, nil
}

// ToggleAutoSave flips the flag on both the instance and the profile,
// creating a profile record if none exists yet. Returns the new state.
func (p *ProfileSync) ToggleAutoSave(ctx context.Context, instance *domain.ChannelInstance) (bool, error) {
	profile, err := p.getOrNew(ctx, instance.CommunityID, instance.OwnerID)
	if err != nil {
		return false, err
	}

	instance.AutoSave = !instance.AutoSave
	profile.AutoSave = instance.AutoSave

	if err := p.profileRepo.Upsert(ctx, profile); err != nil {
		return false, fmt.Errorf("failed to persist auto-save flag: %w", err)
	}
	return instance.AutoSave, nil
}

// Lookup fetches a profile, mapping absence to nil rather than an error.
func (p *ProfileSync) Lookup(ctx context.Context, communityID domain.CommunityID, userID domain.MemberID) (*domain.UserDefaultProfile, error) {
	profile, err := p.profileRepo.Get(ctx, communityID, userID)
	if errors.Is(err, domain.ErrProfileNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return profile, nil
}

func (p *ProfileSync) getOrNew(ctx context.Context, communityID domain.CommunityID, userID domain.MemberID) (*domain.UserDefaultProfile, error) {
	profile, err := p.profileRepo.Get(ctx, communityID, userID)
	if errors.Is(err, domain.ErrProfileNotFound) {
		return &domain.UserDefaultProfile{
			CommunityID: communityID,
			UserID:      userID,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return profile, nil
}
