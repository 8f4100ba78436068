package domain

import "time"

// RosterEntry is one occupant of a live channel as reported by the
// platform roster. JoinedAt drives the deterministic ownership-transfer
// candidate ordering.
type RosterEntry struct {
	MemberID MemberID  `json:"member_id"`
	JoinedAt time.Time `json:"joined_at"`
	IsSystem bool      `json:"is_system"`
}

// MembershipEventKind distinguishes gateway membership signals.
type MembershipEventKind string

const (
	MemberJoined MembershipEventKind = "member_joined"
	MemberLeft   MembershipEventKind = "member_left"
)

// MembershipEvent is a membership-change signal from the platform gateway.
// Delivery is at-least-once and may skip events across reconnects, which
// is why handlers recount from the roster instead of incrementing.
type MembershipEvent struct {
	Kind      MembershipEventKind `json:"kind"`
	ChannelID ChannelID           `json:"channel_id"`
	MemberID  MemberID            `json:"member_id"`
}

// IntentKind enumerates the typed commands the dispatch layer delivers.
type IntentKind string

const (
	IntentRename         IntentKind = "rename"
	IntentSetLimit       IntentKind = "set_limit"
	IntentSetBitrate     IntentKind = "set_bitrate"
	IntentSetRegion      IntentKind = "set_region"
	IntentToggleLock     IntentKind = "toggle_lock"
	IntentToggleHide     IntentKind = "toggle_hide"
	IntentExclude        IntentKind = "exclude"
	IntentInclude        IntentKind = "include"
	IntentKick           IntentKind = "kick"
	IntentTransfer       IntentKind = "transfer"
	IntentReset          IntentKind = "reset"
	IntentDelete         IntentKind = "delete"
	IntentSaveProfile    IntentKind = "save_profile"
	IntentLoadProfile    IntentKind = "load_profile"
	IntentToggleAutoSave IntentKind = "toggle_auto_save"
)

// Intent is an authenticated command against one channel instance. The
// dispatch layer guarantees ActorID; moderator gating happens in the
// orchestrator.
type Intent struct {
	Kind      IntentKind `json:"kind"`
	ChannelID ChannelID  `json:"channel_id"`
	ActorID   MemberID   `json:"actor_id"`
	Name      string     `json:"name,omitempty"`
	Limit     int        `json:"limit,omitempty"`
	Bitrate   int        `json:"bitrate,omitempty"`
	Region    string     `json:"region,omitempty"`
	TargetID  MemberID   `json:"target_id,omitempty"`
}
