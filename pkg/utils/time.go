package utils

import (
	"fmt"
	"time"
)

// Now returns current time (swapped out in tests)
var Now = time.Now

// FormatDuration formats duration in human-readable form, used for the
// uptime line on rendered surfaces.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		minutes := d / time.Minute
		seconds := (d % time.Minute) / time.Second
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	}
	hours := d / time.Hour
	minutes := (d % time.Hour) / time.Minute
	return fmt.Sprintf("%dh%dm", hours, minutes)
}

// IsExpired checks if a timestamp is older than ttl
func IsExpired(timestamp time.Time, ttl time.Duration) bool {
	return Now().Sub(timestamp) > ttl
}

// Deadline returns a pointer-friendly deadline value
func Deadline(from time.Time, after time.Duration) time.Time {
	return from.Add(after)
}
