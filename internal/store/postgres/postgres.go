// Package postgres provides the remote share record store: a shared_files
// table reachable over the network, giving true cross-device redemption.
// Semantics are identical to the local SQLite backend; both satisfy
// app.ShareStore.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/dropcode/dropcode/internal/app"
	"github.com/dropcode/dropcode/internal/domain"
)

var _ app.ShareStore = (*Store)(nil)

// pqUniqueViolation is the Postgres error code for a unique constraint hit.
const pqUniqueViolation = "23505"

// Store implements app.ShareStore over a Postgres connection pool.
type Store struct{ db *sqlx.DB }

// sharedFileRow maps the shared_files table.
type sharedFileRow struct {
	ID            string         `db:"id"`
	ShareCode     string         `db:"share_code"`
	FileName      string         `db:"file_name"`
	FileSize      int64          `db:"file_size"`
	FileType      string         `db:"file_type"`
	FileData      string         `db:"file_data"`
	PasswordHash  sql.NullString `db:"password_hash"`
	HasPassword   bool           `db:"has_password"`
	UploadedAt    time.Time      `db:"uploaded_at"`
	ExpiresAt     time.Time      `db:"expires_at"`
	CreatedAt     time.Time      `db:"created_at"`
	DownloadCount int            `db:"download_count"`
	MaxDownloads  int            `db:"max_downloads"`
}

// Connect opens a pool against the given DSN and verifies it with a ping.
func Connect(dsn string) (*Store, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	st := &Store{db: db}
	if err := st.init(); err != nil {
		db.Close()
		return nil, err
	}
	return st, nil
}

// New wraps an existing pool (used by tests).
func New(db *sqlx.DB) *Store { return &Store{db: db} }

// Close releases the pool.
func (s *Store) Close() error { return s.db.Close() }

// Ping reports pool health; used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) init() error {
	schema := `CREATE TABLE IF NOT EXISTS shared_files (
id TEXT PRIMARY KEY,
share_code TEXT NOT NULL UNIQUE,
file_name TEXT NOT NULL,
file_size BIGINT NOT NULL,
file_type TEXT NOT NULL,
file_data TEXT NOT NULL,
password_hash TEXT,
has_password BOOLEAN NOT NULL DEFAULT FALSE,
uploaded_at TIMESTAMPTZ NOT NULL,
expires_at TIMESTAMPTZ NOT NULL,
created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
download_count INTEGER NOT NULL DEFAULT 0,
max_downloads INTEGER NOT NULL DEFAULT 100
);
CREATE INDEX IF NOT EXISTS idx_shared_files_expires_at ON shared_files (expires_at);`
	_, err := s.db.Exec(schema)
	return err
}

// Create inserts a new record atomically; a share_code collision maps to
// domain.ErrDuplicateCode with no partial write.
func (s *Store) Create(ctx context.Context, rec *domain.ShareRecord) error {
	const q = `INSERT INTO shared_files
(id, share_code, file_name, file_size, file_type, file_data, password_hash, has_password, uploaded_at, expires_at, created_at, download_count, max_downloads)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	var digest any
	if rec.PasswordDigest != "" {
		digest = rec.PasswordDigest
	}
	_, err := s.db.ExecContext(ctx, q,
		rec.ID, rec.ShareCode, rec.FileName, rec.FileSize, rec.FileType, rec.Payload,
		digest, rec.HasPassword, rec.UploadedAt.UTC(), rec.ExpiresAt.UTC(), rec.UploadedAt.UTC(),
		rec.DownloadCount, rec.MaxDownloads)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			return domain.ErrDuplicateCode
		}
		return storeFailure("create", err)
	}
	return nil
}

// GetByCode returns the record for a share code, or domain.ErrNotFound.
func (s *Store) GetByCode(ctx context.Context, code string) (*domain.ShareRecord, error) {
	const q = `SELECT id, share_code, file_name, file_size, file_type, file_data, password_hash, has_password, uploaded_at, expires_at, created_at, download_count, max_downloads
FROM shared_files WHERE share_code = $1`
	var row sharedFileRow
	if err := sqlx.GetContext(ctx, s.db, &row, q, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, storeFailure("get", err)
	}
	return row.toRecord(), nil
}

// IncrementDownloadCount is a single conditional UPDATE expressing
// "increment only if current count is below the ceiling" (negative ceiling
// means unlimited), so the counter can never exceed max_downloads even under
// concurrent redeemers.
func (s *Store) IncrementDownloadCount(ctx context.Context, code string) error {
	const q = `UPDATE shared_files SET download_count = download_count + 1
WHERE share_code = $1 AND (max_downloads < 0 OR download_count < max_downloads)`
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
	var one int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM shared_files WHERE share_code = $1`, code).Scan(&one)
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
	if _, err := s.db.ExecContext(ctx, `DELETE FROM shared_files WHERE share_code = $1`, code); err != nil {
		return storeFailure("delete", err)
	}
	return nil
}

// ListAll returns every record. Order is not meaningful.
func (s *Store) ListAll(ctx context.Context) ([]domain.ShareRecord, error) {
	const q = `SELECT id, share_code, file_name, file_size, file_type, file_data, password_hash, has_password, uploaded_at, expires_at, created_at, download_count, max_downloads
FROM shared_files`
	var rows []sharedFileRow
	if err := sqlx.SelectContext(ctx, s.db, &rows, q); err != nil {
		return nil, storeFailure("list", err)
	}
	recs := make([]domain.ShareRecord, 0, len(rows))
	for i := range rows {
		recs = append(recs, *rows[i].toRecord())
	}
	return recs, nil
}

// DeleteExpired removes every record with expires_at <= now and returns the
// count removed.
func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM shared_files WHERE expires_at <= $1`, now.UTC())
	if err != nil {
		return 0, storeFailure("delete expired", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storeFailure("delete expired", err)
	}
	return int(n), nil
}

func (r *sharedFileRow) toRecord() *domain.ShareRecord {
	return &domain.ShareRecord{
		ID:             r.ID,
		ShareCode:      r.ShareCode,
		FileName:       r.FileName,
		FileSize:       r.FileSize,
		FileType:       r.FileType,
		Payload:        r.FileData,
		PasswordDigest: r.PasswordHash.String,
		HasPassword:    r.HasPassword,
		UploadedAt:     r.UploadedAt,
		ExpiresAt:      r.ExpiresAt,
		DownloadCount:  r.DownloadCount,
		MaxDownloads:   r.MaxDownloads,
	}
}

// storeFailure surfaces driver/network failures as domain.ErrStoreUnavailable
// so callers never mistake them for a missing record.
func storeFailure(op string, err error) error {
	return fmt.Errorf("%w: postgres %s: %v", domain.ErrStoreUnavailable, op, err)
}
