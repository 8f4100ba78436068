package domain

import "time"

// UserDefaultProfile is a member's saved channel defaults, keyed by
// (community, user) and independent of any single channel's lifetime. An
// empty CustomName means the member never renamed a channel while saving.
type UserDefaultProfile struct {
	CommunityID  CommunityID     `json:"community_id"`
	UserID       MemberID        `json:"user_id"`
	CustomName   string          `json:"custom_name,omitempty"`
	Settings     ChannelSettings `json:"settings"`
	BlockedUsers []MemberID      `json:"blocked_users,omitempty"`
	AutoSave     bool            `json:"auto_save"`
	SavedAt      time.Time       `json:"saved_at"`
	LastUsedAt   time.Time       `json:"last_used_at"`
}

// MergeBlocked folds additional blocked users into the profile without
// duplicating entries.
func (p *UserDefaultProfile) MergeBlocked(ids []MemberID) {
	for _, id := range ids {
		p.BlockedUsers = addID(p.BlockedUsers, id)
	}
}
