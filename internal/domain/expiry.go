// Package domain expiry.go contains expiration presets and validation.
package domain

import "time"

// Expiration presets offered at creation time. Custom absolute instants are
// also accepted; DefaultExpiry applies when the caller supplies nothing.
const (
	ExpiryHour    = time.Hour
	ExpiryDay     = 24 * time.Hour
	ExpiryWeek    = 7 * 24 * time.Hour
	ExpiryMonth   = 30 * 24 * time.Hour
	DefaultExpiry = ExpiryWeek
)

// ValidateExpiry enforces that the deadline is strictly after now.
// Returns ErrExpiryInvalid otherwise.
func ValidateExpiry(expiresAt, now time.Time) error {
	if !expiresAt.After(now) {
		return ErrExpiryInvalid
	}
	return nil
}
