package domain

import (
	"time"
)

// ChannelSettings is the mutable tuning of a live channel, snapshotted into
// profiles and restored on creation.
type ChannelSettings struct {
	UserLimit int    `json:"user_limit"`
	Bitrate   int    `json:"bitrate"`
	Locked    bool   `json:"locked"`
	Hidden    bool   `json:"hidden"`
	Region    string `json:"region"`
}

// SurfaceRef locates the published control surface for an instance.
type SurfaceRef struct {
	SurfaceID     SurfaceID `json:"surface_id"`
	HostChannelID ChannelID `json:"host_channel_id"`
}

// ChannelInstance is the record tracking one live ephemeral channel. All
// permission-set mutations go through the methods below so the two
// invariants hold at every observable point: the owner is never blocked,
// and the allowed and blocked sets stay disjoint.
type ChannelInstance struct {
	CommunityID  CommunityID     `json:"community_id"`
	ChannelID    ChannelID       `json:"channel_id"`
	OwnerID      MemberID        `json:"owner_id"`
	OriginalName string          `json:"original_name"`
	CurrentName  string          `json:"current_name"`
	Settings     ChannelSettings `json:"settings"`

	AllowedUsers []MemberID `json:"allowed_users,omitempty"`
	BlockedUsers []MemberID `json:"blocked_users,omitempty"`
	Moderators   []MemberID `json:"moderators,omitempty"`

	LastActiveAt       time.Time `json:"last_active_at"`
	CurrentMemberCount int       `json:"current_member_count"`
	PeakMemberCount    int       `json:"peak_member_count"`

	Surface     *SurfaceRef `json:"surface,omitempty"`
	AutoSave    bool        `json:"auto_save"`
	DeleteAfter *time.Time  `json:"delete_after,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// HasCustomName reports whether the channel has been renamed away from the
// name synthesized at creation.
func (c *ChannelInstance) HasCustomName() bool {
	return c.CurrentName != c.OriginalName
}

// Block adds the target to the blocked set and drops it from the allowed
// set. The owner cannot be blocked.
func (c *ChannelInstance) Block(id MemberID) error {
	if id == c.OwnerID {
		return ErrOwnerImmutable
	}
	c.AllowedUsers = removeID(c.AllowedUsers, id)
	c.BlockedUsers = addID(c.BlockedUsers, id)
	return nil
}

// Unblock removes the target from the blocked set.
func (c *ChannelInstance) Unblock(id MemberID) error {
	if id == c.OwnerID {
		return ErrOwnerImmutable
	}
	c.BlockedUsers = removeID(c.BlockedUsers, id)
	return nil
}

// Allow adds the target to the allowed set and drops it from the blocked
// set.
func (c *ChannelInstance) Allow(id MemberID) error {
	if id == c.OwnerID {
		return ErrOwnerImmutable
	}
	c.BlockedUsers = removeID(c.BlockedUsers, id)
	c.AllowedUsers = addID(c.AllowedUsers, id)
	return nil
}

// Disallow removes the target from the allowed set without blocking it.
func (c *ChannelInstance) Disallow(id MemberID) error {
	if id == c.OwnerID {
		return ErrOwnerImmutable
	}
	c.AllowedUsers = removeID(c.AllowedUsers, id)
	return nil
}

// PromoteOwner makes newOwner the owner, demoting the previous owner into
// the moderator set. The new owner leaves the moderator set (ownership
// implies moderation) and any block on the new owner is cleared.
func (c *ChannelInstance) PromoteOwner(newOwner MemberID) error {
	if newOwner == c.OwnerID {
		return ErrAlreadyOwner
	}
	c.Moderators = addID(c.Moderators, c.OwnerID)
	c.Moderators = removeID(c.Moderators, newOwner)
	c.BlockedUsers = removeID(c.BlockedUsers, newOwner)
	c.OwnerID = newOwner
	return nil
}

// ApplyRoster replaces the observed membership count with a fresh roster
// count. The peak is a high-water mark and never decreases.
func (c *ChannelInstance) ApplyRoster(count int, now time.Time) {
	if count < 0 {
		count = 0
	}
	c.CurrentMemberCount = count
	if count > c.PeakMemberCount {
		c.PeakMemberCount = count
	}
	if count > 0 {
		c.LastActiveAt = now
		c.DeleteAfter = nil
	}
}

// ScheduleDeletion stamps the reclamation deadline. Only meaningful while
// the channel is empty; callers check the count first.
func (c *ChannelInstance) ScheduleDeletion(deadline time.Time) {
	d := deadline
	c.DeleteAfter = &d
}

// ResetPermissions clears every permission set. The owner is retained
// implicitly through OwnerID.
func (c *ChannelInstance) ResetPermissions() {
	c.AllowedUsers = nil
	c.BlockedUsers = nil
	c.Moderators = nil
}

func addID(ids []MemberID, id MemberID) []MemberID {
	for _, have := range ids {
		if have == id {
			return ids
		}
	}
	return append(ids, id)
}

func removeID(ids []MemberID, id MemberID) []MemberID {
	for i, have := range ids {
		if have == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
