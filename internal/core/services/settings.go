package services

import (
	"tempvox/internal/core/domain"
)

// ResolvedCreationSettings is the effective configuration a new channel is
// allocated with, produced by merging the community defaults with the
// requester's saved profile.
type ResolvedCreationSettings struct {
	Name         string
	CustomName   bool
	Settings     domain.ChannelSettings
	BlockedUsers []domain.MemberID
}

// ResolveCreationSettings merges community defaults with an optional saved
// profile. A saved profile wins wholesale: its snapshot replaces the
// community defaults, including the restored blocked-user set. The name
// falls back to the rendered template when the profile carries no custom
// name.
func ResolveCreationSettings(policy *domain.CommunityPolicy, profile *domain.UserDefaultProfile, requester *domain.Member) ResolvedCreationSettings {
	if profile == nil {
		return ResolvedCreationSettings{
			Name:     RenderNameTemplate(policy.NameTemplate, requester),
			Settings: policy.Defaults,
		}
	}

	resolved := ResolvedCreationSettings{
		Settings:     profile.Settings,
		BlockedUsers: append([]domain.MemberID(nil), profile.BlockedUsers...),
	}
	if profile.CustomName != "" {
		resolved.Name = profile.CustomName
		resolved.CustomName = true
	} else {
		resolved.Name = RenderNameTemplate(policy.NameTemplate, requester)
	}

	// A profile saved under an older, laxer tier can exceed the current
	// ceiling; clamp rather than reject at creation time.
	if policy.MaxBitrate > 0 && resolved.Settings.Bitrate > policy.MaxBitrate {
		resolved.Settings.Bitrate = policy.MaxBitrate
	}

	return resolved
}
