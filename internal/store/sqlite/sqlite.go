// Package sqlite provides the local share record store: a single
// shared_files table in a SQLite file on the sharing device. It mirrors the
// remote relational layout so the two backends stay interchangeable behind
// app.ShareStore.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/dropcode/dropcode/internal/app"
	"github.com/dropcode/dropcode/internal/domain"
)

var _ app.ShareStore = (*Store)(nil)

// Store implements app.ShareStore using SQLite (via database/sql). It is
// safe for concurrent use; database/sql manages connection pooling and
// serialization.
type Store struct{ db *sql.DB }

// New constructs a Store, initializing the required schema if absent.
func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.init(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	schema := `CREATE TABLE IF NOT EXISTS shared_files (
id TEXT PRIMARY KEY,
share_code TEXT NOT NULL UNIQUE,
file_name TEXT NOT NULL,
file_size INTEGER NOT NULL,
file_type TEXT NOT NULL,
file_data TEXT NOT NULL,
password_hash TEXT,
has_password INTEGER NOT NULL DEFAULT 0,
uploaded_at TEXT NOT NULL,
expires_at TEXT NOT NULL,
created_at TEXT NOT NULL,
download_count INTEGER NOT NULL DEFAULT 0,
max_downloads INTEGER NOT NULL DEFAULT 100
);
CREATE INDEX IF NOT EXISTS idx_shared_files_expires_at ON shared_files(expires_at);`
	_, err := s.db.Exec(schema)
	return err
}

// Timestamps are stored as second-precision UTC ISO-8601 strings. A fixed
// format keeps lexical order equal to chronological order, which the expiry
// sweep relies on.
func formatTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// Create inserts a new record. A colliding share code fails with
// domain.ErrDuplicateCode; the UNIQUE constraint makes the check-and-insert
// atomic with no partial write.
func (s *Store) Create(ctx context.Context, rec *domain.ShareRecord) error {
	const q = `INSERT INTO shared_files
(id, share_code, file_name, file_size, file_type, file_data, password_hash, has_password, uploaded_at, expires_at, created_at, download_count, max_downloads)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`
	hp := 0
	if rec.HasPassword {
		hp = 1
	}
	var digest any
	if rec.PasswordDigest != "" {
		digest = rec.PasswordDigest
	}
	_, err := s.db.ExecContext(ctx, q,
		rec.ID, rec.ShareCode, rec.FileName, rec.FileSize, rec.FileType, rec.Payload,
		digest, hp, formatTime(rec.UploadedAt), formatTime(rec.ExpiresAt), formatTime(rec.UploadedAt),
		rec.DownloadCount, rec.MaxDownloads)
	if err != nil {
		var se sqlite3.Error
		if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
			return domain.ErrDuplicateCode
		}
		return storeFailure("create", err)
	}
	return nil
}

// GetByCode returns the record for a share code, or domain.ErrNotFound.
func (s *Store) GetByCode(ctx context.Context, code string) (*domain.ShareRecord, error) {
	const q = `SELECT id, share_code, file_name, file_size, file_type, file_data, password_hash, has_password, uploaded_at, expires_at, download_count, max_downloads
FROM shared_files WHERE share_code = ?`
	rec, err := scanRecord(s.db.QueryRowContext(ctx, q, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, storeFailure("get", err)
	}
	return rec, nil
}

// IncrementDownloadCount bumps the counter as one conditional UPDATE: the
// write applies only while the counter is below the ceiling (negative
// ceiling means unlimited). Concurrent redeemers therefore can never push
// the counter past max_downloads.
func (s *Store) IncrementDownloadCount(ctx context.Context, code string) error {
	const q = `UPDATE shared_files SET download_count = download_count + 1
WHERE share_code = ? AND (max_downloads < 0 OR download_count < max_downloads)`
	res, err := s.db.ExecContext(ctx, q, code)
	if err != nil {
		return storeFailure("increment", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeFailure("increment", err)
	}
	if n > 0 {
		return nil
	}
	// Nothing updated: classify as missing vs exhausted.
	var one int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM shared_files WHERE share_code = ?`, code).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return storeFailure("increment", err)
	}
	return domain.ErrQuotaExhausted
}

// Delete removes the record for a code. Idempotent.
func (s *Store) Delete(ctx context.Context, code string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM shared_files WHERE share_code = ?`, code); err != nil {
		return storeFailure("delete", err)
	}
	return nil
}

// ListAll returns every record. Order is not meaningful.
func (s *Store) ListAll(ctx context.Context) ([]domain.ShareRecord, error) {
	const q = `SELECT id, share_code, file_name, file_size, file_type, file_data, password_hash, has_password, uploaded_at, expires_at, download_count, max_downloads
FROM shared_files`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, storeFailure("list", err)
	}
	defer rows.Close()
	var recs []domain.ShareRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, storeFailure("list", err)
		}
		recs = append(recs, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storeFailure("list", err)
	}
	return recs, nil
}

// DeleteExpired removes every record with expires_at <= now and returns the
// count removed.
func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM shared_files WHERE expires_at <= ?`, formatTime(now))
	if err != nil {
		return 0, storeFailure("delete expired", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storeFailure("delete expired", err)
	}
	return int(n), nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface{ Scan(dest ...any) error }

func scanRecord(row rowScanner) (*domain.ShareRecord, error) {
	var (
		rec        domain.ShareRecord
		digest     sql.NullString
		hp         int
		uploadedAt string
		expiresAt  string
	)
	if err := row.Scan(&rec.ID, &rec.ShareCode, &rec.FileName, &rec.FileSize, &rec.FileType, &rec.Payload,
		&digest, &hp, &uploadedAt, &expiresAt, &rec.DownloadCount, &rec.MaxDownloads); err != nil {
		return nil, err
	}
	rec.PasswordDigest = digest.String
	rec.HasPassword = hp == 1
	var err error
	if rec.UploadedAt, err = parseTime(uploadedAt); err != nil {
		return nil, err
	}
	if rec.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

// storeFailure surfaces driver/I/O failures as domain.ErrStoreUnavailable so
// callers never mistake them for a missing record.
func storeFailure(op string, err error) error {
	return fmt.Errorf("%w: sqlite %s: %v", domain.ErrStoreUnavailable, op, err)
}
