// Package app defines the application layer "ports" (interfaces) and simple
// data contracts the share lifecycle engine depends upon. It follows a
// hexagonal (ports & adapters) design: this package declares what the core
// needs, while adapter packages (SQLite store, Postgres store, HTTP layer,
// janitor jobs) provide concrete implementations. No I/O, SQL, or network
// concerns belong here.
package app

import (
	"context"
	"time"

	"github.com/dropcode/dropcode/internal/domain"
)

// Clock abstracts time to enable deterministic testing of expiry logic.
type Clock interface {
	// Now returns the current wall-clock time.
	Now() time.Time
}

// ShareStore is the storage port for share records. Two interchangeable
// implementations exist (local SQLite, remote Postgres); the engine selects
// one at assembly time and is otherwise backend-agnostic.
type ShareStore interface {
	// Create persists a new record atomically. A colliding ShareCode fails
	// with domain.ErrDuplicateCode and leaves no partial write.
	Create(ctx context.Context, rec *domain.ShareRecord) error

	// GetByCode returns the record for a share code, or domain.ErrNotFound.
	GetByCode(ctx context.Context, code string) (*domain.ShareRecord, error)

	// IncrementDownloadCount bumps the counter by one as a single atomic
	// conditional write: the increment applies only while the counter is
	// below the ceiling (or the ceiling is unlimited). An existing record
	// at its ceiling fails with domain.ErrQuotaExhausted; a missing record
	// with domain.ErrNotFound. Implementations must guarantee the counter
	// never exceeds the ceiling even under concurrent callers.
	IncrementDownloadCount(ctx context.Context, code string) error

	// Delete removes the record for a code. Deleting a non-existent code is
	// not an error.
	Delete(ctx context.Context, code string) error

	// ListAll returns every record. Order is not meaningful; callers sort.
	ListAll(ctx context.Context) ([]domain.ShareRecord, error)

	// DeleteExpired removes every record with expiresAt <= now and returns
	// the count removed.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// Upload carries the file handed to CreateShare. Whole-file, single-shot
// transfer is the only mode supported.
type Upload struct {
	Name string
	Type string
	Data []byte
}

// ShareSettings are the caller-chosen creation options.
type ShareSettings struct {
	// CustomCode, when non-empty, is normalized and used instead of a
	// generated code.
	CustomCode string
	// Password, when non-empty, gates redemption.
	Password string
	// ExpiresAt is the absolute deadline; zero means now + default expiry.
	ExpiresAt time.Time
	// MaxDownloads caps redemptions: 0 means the default ceiling, negative
	// means unlimited.
	MaxDownloads int
	// Progress, when non-nil, receives encoding progress keyed to actual
	// bytes processed.
	Progress func(done, total int64)
}

// SharedFile is the externally visible view of a record. Password carries
// the plaintext only in the CreateShare return value; it is never again
// retrievable from storage and is empty everywhere else.
type SharedFile struct {
	ID            string    `json:"id"`
	FileName      string    `json:"file_name"`
	FileSize      int64     `json:"file_size"`
	FileType      string    `json:"file_type"`
	ShareCode     string    `json:"share_code"`
	Password      string    `json:"password,omitempty"`
	HasPassword   bool      `json:"has_password"`
	UploadedAt    time.Time `json:"uploaded_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	DownloadCount int       `json:"download_count"`
	MaxDownloads  int       `json:"max_downloads"`
}

// Download is the result of a successful redemption: raw bytes plus the
// metadata the caller needs to decide disposition.
type Download struct {
	FileName string
	FileType string
	Data     []byte
}
