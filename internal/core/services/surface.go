package services

import (
	"context"

	"tempvox/internal/core/domain"
	"tempvox/internal/core/ports"
	"tempvox/pkg/utils"

	"go.uber.org/zap"
)

// SurfaceSynchronizer re-renders and republishes the control surface after
// every mutation. It never propagates failures into the mutation path: a
// missing host or surface is logged and swallowed.
type SurfaceSynchronizer struct {
	host         ports.SurfaceHost
	gateway      ports.ChannelGateway
	instanceRepo ports.InstanceRepository
	logger       *zap.SugaredLogger
}

func NewSurfaceSynchronizer(
	host ports.SurfaceHost,
	gateway ports.ChannelGateway,
	instanceRepo ports.InstanceRepository,
	logger *zap.SugaredLogger,
) *SurfaceSynchronizer {
	return &SurfaceSynchronizer{
		host:         host,
		gateway:      gateway,
		instanceRepo: instanceRepo,
		logger:       logger,
	}
}

// Refresh rebuilds the view and publishes it. The first publish records
// the surface reference on the instance; later calls edit that reference.
func (s *SurfaceSynchronizer) Refresh(ctx context.Context, instance *domain.ChannelInstance) {
	view := s.render(ctx, instance)

	if instance.Surface == nil {
		surfaceID, err := s.host.Publish(ctx, instance.ChannelID, view)
		if err != nil {
			s.logger.Warnw("surface publish failed",
				"channel_id", instance.ChannelID,
				"error", err,
			)
			return
		}
		instance.Surface = &domain.SurfaceRef{
			SurfaceID:     surfaceID,
			HostChannelID: instance.ChannelID,
		}
		if err := s.instanceRepo.Update(ctx, instance); err != nil {
			s.logger.Warnw("failed to persist surface reference",
				"channel_id", instance.ChannelID,
				"error", err,
			)
		}
		return
	}

	if err := s.host.Update(ctx, *instance.Surface, view); err != nil {
		s.logger.Warnw("surface update failed",
			"channel_id", instance.ChannelID,
			"surface_id", instance.Surface.SurfaceID,
			"error", err,
		)
	}
}

// Remove deletes the published surface, best-effort.
func (s *SurfaceSynchronizer) Remove(ctx context.Context, instance *domain.ChannelInstance) {
	if instance.Surface == nil {
		return
	}
	if err := s.host.Remove(ctx, *instance.Surface); err != nil {
		s.logger.Warnw("surface removal failed",
			"channel_id", instance.ChannelID,
			"surface_id", instance.Surface.SurfaceID,
			"error", err,
		)
	}
}

func (s *SurfaceSynchronizer) render(ctx context.Context, instance *domain.ChannelInstance) *domain.SurfaceView {
	var occupants []domain.MemberID
	roster, err := s.gateway.Roster(ctx, instance.ChannelID)
	if err != nil {
		s.logger.Debugw("roster unavailable for surface render",
			"channel_id", instance.ChannelID,
			"error", err,
		)
	} else {
		for _, e := range roster {
			occupants = append(occupants, e.MemberID)
		}
	}

	return &domain.SurfaceView{
		Title:        instance.CurrentName,
		OwnerID:      instance.OwnerID,
		Occupants:    occupants,
		Settings:     instance.Settings,
		AllowedCount: len(instance.AllowedUsers),
		BlockedCount: len(instance.BlockedUsers),
		ModCount:     len(instance.Moderators),
		Uptime:       utils.Now().Sub(instance.CreatedAt),
		PeakMembers:  instance.PeakMemberCount,
		AutoSave:     instance.AutoSave,
		Controls:     buildControls(instance),
	}
}

// buildControls derives the actionable control set from current state.
// Lock and hide invert their labels; user management only shows while the
// channel is locked or hidden.
func buildControls(instance *domain.ChannelInstance) []domain.SurfaceControl {
	lockLabel := "Lock"
	if instance.Settings.Locked {
		lockLabel = "Unlock"
	}
	hideLabel := "Hide"
	if instance.Settings.Hidden {
		hideLabel = "Reveal"
	}
	restricted := instance.Settings.Locked || instance.Settings.Hidden

	autoSaveLabel := "Enable Auto-Save"
	if instance.AutoSave {
		autoSaveLabel = "Disable Auto-Save"
	}

	return []domain.SurfaceControl{
		{Intent: domain.IntentRename, Label: "Rename", Enabled: true},
		{Intent: domain.IntentSetLimit, Label: "Set Limit", Enabled: true},
		{Intent: domain.IntentSetBitrate, Label: "Set Bitrate", Enabled: true},
		{Intent: domain.IntentSetRegion, Label: "Set Region", Enabled: true},
		{Intent: domain.IntentToggleLock, Label: lockLabel, Enabled: true},
		{Intent: domain.IntentToggleHide, Label: hideLabel, Enabled: true},
		{Intent: domain.IntentInclude, Label: "Permit User", Enabled: restricted},
		{Intent: domain.IntentExclude, Label: "Reject User", Enabled: restricted},
		{Intent: domain.IntentKick, Label: "Kick", Enabled: true},
		{Intent: domain.IntentTransfer, Label: "Transfer", Enabled: true},
		{Intent: domain.IntentReset, Label: "Reset", Enabled: true},
		{Intent: domain.IntentSaveProfile, Label: "Save Settings", Enabled: true},
		{Intent: domain.IntentLoadProfile, Label: "Load Settings", Enabled: true},
		{Intent: domain.IntentToggleAutoSave, Label: autoSaveLabel, Enabled: true},
		{Intent: domain.IntentDelete, Label: "Delete", Enabled: true},
	}
}
