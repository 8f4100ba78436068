package validation

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	MinNameLength = 1
	MaxNameLength = 100

	// UserLimit 0 means unlimited on the platform side.
	MinUserLimit = 0
	MaxUserLimit = 99

	MinBitrate = 8000
)

var (
	// RegionRegex validates voice region identifiers
	RegionRegex = regexp.MustCompile(`^[a-z0-9-]+$`)

	// ChannelIDRegex validates channel ID format
	ChannelIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// ValidateChannelName validates a channel name
func ValidateChannelName(name string) error {
	name = strings.TrimSpace(name)
	if len(name) < MinNameLength {
		return fmt.Errorf("channel name is required")
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("channel name is too long (max %d characters)", MaxNameLength)
	}
	return nil
}

// ValidateUserLimit validates a member cap
func ValidateUserLimit(limit int) error {
	if limit < MinUserLimit || limit > MaxUserLimit {
		return fmt.Errorf("user limit must be between %d and %d", MinUserLimit, MaxUserLimit)
	}
	return nil
}

// ValidateBitrate validates a bitrate against the community's tier ceiling
func ValidateBitrate(bitrate, ceiling int) error {
	if bitrate < MinBitrate {
		return fmt.Errorf("bitrate must be at least %d bps", MinBitrate)
	}
	if ceiling > 0 && bitrate > ceiling {
		return fmt.Errorf("bitrate exceeds the community ceiling of %d bps", ceiling)
	}
	return nil
}

// ValidateRegion validates a voice region identifier; empty means
// automatic region selection.
func ValidateRegion(region string) error {
	if region == "" {
		return nil
	}
	if len(region) > 32 {
		return fmt.Errorf("region is too long (max 32 characters)")
	}
	if !RegionRegex.MatchString(region) {
		return fmt.Errorf("region contains invalid characters (only lowercase letters, numbers, - allowed)")
	}
	return nil
}
