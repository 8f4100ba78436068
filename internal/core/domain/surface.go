package domain

import "time"

// SurfaceControl is one actionable control on the rendered surface. Labels
// invert with state (lock/unlock) and some controls are gated on it.
type SurfaceControl struct {
	Intent  IntentKind `json:"intent"`
	Label   string     `json:"label"`
	Enabled bool       `json:"enabled"`
}

// SurfaceView is the rendered status summary for one instance, consumed by
// the surface host. It carries no behavior; the synchronizer rebuilds it
// from scratch after every mutation.
type SurfaceView struct {
	Title        string           `json:"title"`
	OwnerID      MemberID         `json:"owner_id"`
	Occupants    []MemberID       `json:"occupants,omitempty"`
	Settings     ChannelSettings  `json:"settings"`
	AllowedCount int              `json:"allowed_count"`
	BlockedCount int              `json:"blocked_count"`
	ModCount     int              `json:"mod_count"`
	Uptime       time.Duration    `json:"uptime"`
	PeakMembers  int              `json:"peak_members"`
	AutoSave     bool             `json:"auto_save"`
	Controls     []SurfaceControl `json:"controls"`
}
