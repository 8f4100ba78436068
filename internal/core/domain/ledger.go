package domain

// Permission predicates over an instance's permission sets. These are
// advisory: they gate commands and drive view rendering, while the binding
// access decision lives in the ACL overrides the orchestrator programs.

// IsOwner reports whether id owns the channel.
func (c *ChannelInstance) IsOwner(id MemberID) bool {
	return id == c.OwnerID
}

// IsModerator reports whether id may run mutating commands. Owners are
// always moderators.
func (c *ChannelInstance) IsModerator(id MemberID) bool {
	if c.IsOwner(id) {
		return true
	}
	for _, m := range c.Moderators {
		if m == id {
			return true
		}
	}
	return false
}

// IsAllowed reports whether id may join. The blocked set wins over
// everything except ownership; an empty allowed set means open access.
func (c *ChannelInstance) IsAllowed(id MemberID) bool {
	if c.IsOwner(id) {
		return true
	}
	for _, b := range c.BlockedUsers {
		if b == id {
			return false
		}
	}
	if len(c.AllowedUsers) == 0 {
		return true
	}
	for _, a := range c.AllowedUsers {
		if a == id {
			return true
		}
	}
	return false
}

// IsBlocked reports whether id is on the blocked set.
func (c *ChannelInstance) IsBlocked(id MemberID) bool {
	for _, b := range c.BlockedUsers {
		if b == id {
			return true
		}
	}
	return false
}
