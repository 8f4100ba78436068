package domain

type CommunityID string
type ChannelID string
type MemberID string
type RoleID string
type SurfaceID string

// EveryoneSubject is the ACL subject standing in for the whole community,
// used for channel-wide lock and hide overrides.
const EveryoneSubject MemberID = "@everyone"

// CreationPolicyKind controls who may trigger channel creation.
type CreationPolicyKind string

const (
	CreationEveryone CreationPolicyKind = "everyone"
	CreationRole     CreationPolicyKind = "role"
	CreationSpecific CreationPolicyKind = "specific-users"
)

// CreationPolicy is the gate evaluated before a channel is allocated.
type CreationPolicy struct {
	Kind         CreationPolicyKind `json:"kind"`
	AllowedRoles []RoleID           `json:"allowed_roles,omitempty"`
	BlockedRoles []RoleID           `json:"blocked_roles,omitempty"`
	AllowedUsers []MemberID         `json:"allowed_users,omitempty"`
	BlockedUsers []MemberID         `json:"blocked_users,omitempty"`
}

// AutoDeletePolicy controls reclamation of empty channels.
type AutoDeletePolicy struct {
	Enabled      bool `json:"enabled"`
	GraceMinutes int  `json:"grace_minutes"`
}

// CommunityPolicy is the per-community configuration for ephemeral channels.
// It is read-only during a lifecycle decision.
type CommunityPolicy struct {
	CommunityID      CommunityID      `json:"community_id"`
	Enabled          bool             `json:"enabled"`
	TriggerChannelID ChannelID        `json:"trigger_channel_id"`
	TargetCategoryID string           `json:"target_category_id"`
	NameTemplate     string           `json:"name_template"`
	Defaults         ChannelSettings  `json:"defaults"`
	AutoDelete       AutoDeletePolicy `json:"auto_delete"`
	Creation         CreationPolicy   `json:"creation"`
	MaxChannelsPer   int              `json:"max_channels_per_user"`
	CooldownMinutes  int              `json:"cooldown_minutes"`
	MaxBitrate       int              `json:"max_bitrate"`
}

// Member is the resolved identity of a community member, as the platform
// reports it at the time of a request.
type Member struct {
	ID          MemberID   `json:"id"`
	DisplayName string     `json:"display_name"`
	Username    string     `json:"username"`
	Tag         string     `json:"tag"`
	Roles       []RoleID   `json:"roles,omitempty"`
	Activity    string     `json:"activity,omitempty"`
	IsSystem    bool       `json:"is_system"`
}

// HasRole reports whether the member carries any of the given roles.
func (m *Member) HasRole(roles []RoleID) bool {
	for _, want := range roles {
		for _, have := range m.Roles {
			if have == want {
				return true
			}
		}
	}
	return false
}
