// Package domain record.go defines the persisted share record entity.
package domain

import "time"

// UnlimitedDownloads is the MaxDownloads sentinel meaning no ceiling. Any
// negative value is stored canonically as -1.
const UnlimitedDownloads = -1

// DefaultMaxDownloads matches the persisted column default.
const DefaultMaxDownloads = 100

// ShareRecord is the central persisted entity: one record per share action.
// Payload is the encoded file data owned exclusively by the record.
// PasswordDigest is only ever a one-way digest; HasPassword is persisted as
// a first-class field so listings can report protection status without
// touching the digest.
type ShareRecord struct {
	ID             string
	ShareCode      string
	FileName       string
	FileSize       int64
	FileType       string
	Payload        string
	PasswordDigest string
	HasPassword    bool
	UploadedAt     time.Time
	ExpiresAt      time.Time
	DownloadCount  int
	MaxDownloads   int
}

// Unlimited reports whether the record has no download ceiling.
func (r *ShareRecord) Unlimited() bool { return r.MaxDownloads < 0 }

// Expired reports whether the record is past its deadline at the given instant.
func (r *ShareRecord) Expired(now time.Time) bool { return !now.Before(r.ExpiresAt) }

// QuotaRemaining reports whether at least one more redemption is allowed.
// This is an advisory read; the store's conditional increment is the
// authoritative check under concurrency.
func (r *ShareRecord) QuotaRemaining() bool {
	return r.Unlimited() || r.DownloadCount < r.MaxDownloads
}
