// Package app contains the application orchestration layer for Dropcode. It
// wires domain validation with persistence ports without performing any I/O
// itself.
package app

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/dropcode/dropcode/internal/domain"
	"github.com/dropcode/dropcode/internal/password"
	"github.com/dropcode/dropcode/internal/payload"
)

// codeRetryBudget bounds collision retries for generated codes. Practically
// unreachable given the 36^8 keyspace, but generation must not loop forever.
const codeRetryBudget = 5

// Service orchestrates share creation, redemption, listing, revocation, and
// expiry sweeps using the injected store and clock. It never retries
// redemption and never holds a lock across store calls; quota safety rests
// entirely on the store's atomic conditional increment.
type Service struct {
	Store        ShareStore
	Clock        Clock
	MaxFileBytes int64
	// DefaultTTL and DefaultMaxDownloads override the domain defaults when
	// positive; zero values fall back to domain.DefaultExpiry and
	// domain.DefaultMaxDownloads.
	DefaultTTL          time.Duration
	DefaultMaxDownloads int
	Logger              *slog.Logger
}

func (s *Service) log() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// CreateShare validates inputs, resolves the share code, encodes the payload,
// hashes any password, and persists exactly one new record. No partial state
// survives any failure path. The returned view carries the plaintext
// password only here.
func (s *Service) CreateShare(ctx context.Context, up Upload, settings ShareSettings) (*SharedFile, error) {
	if s.MaxFileBytes > 0 && int64(len(up.Data)) > s.MaxFileBytes {
		return nil, domain.ErrFileTooLarge
	}
	now := s.Clock.Now()
	expiresAt := settings.ExpiresAt
	if expiresAt.IsZero() {
		ttl := s.DefaultTTL
		if ttl <= 0 {
			ttl = domain.DefaultExpiry
		}
		expiresAt = now.Add(ttl)
	}
	if err := domain.ValidateExpiry(expiresAt, now); err != nil {
		return nil, err
	}
	maxDownloads := settings.MaxDownloads
	if maxDownloads == 0 {
		maxDownloads = s.DefaultMaxDownloads
	}
	if maxDownloads == 0 {
		maxDownloads = domain.DefaultMaxDownloads
	}
	if maxDownloads < 0 {
		maxDownloads = domain.UnlimitedDownloads
	}

	digest := ""
	if settings.Password != "" {
		var err error
		if digest, err = password.Digest(settings.Password); err != nil {
			return nil, err
		}
	}

	rec := &domain.ShareRecord{
		ID:             uuid.NewString(),
		FileName:       up.Name,
		FileSize:       int64(len(up.Data)),
		FileType:       up.Type,
		Payload:        payload.EncodeWithProgress(up.Data, up.Type, settings.Progress),
		PasswordDigest: digest,
		HasPassword:    digest != "",
		UploadedAt:     now,
		ExpiresAt:      expiresAt,
		MaxDownloads:   maxDownloads,
	}

	if settings.CustomCode != "" {
		code, err := domain.NormalizeCustomCode(settings.CustomCode)
		if err != nil {
			return nil, err
		}
		// Fail a colliding custom code before any write. Create re-checks
		// atomically, so a race between the two still cannot double-write.
		if _, err := s.Store.GetByCode(ctx, code); err == nil {
			return nil, domain.ErrDuplicateCode
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		rec.ShareCode = code
		if err := s.Store.Create(ctx, rec); err != nil {
			return nil, err
		}
	} else {
		if err := s.createWithGeneratedCode(ctx, rec); err != nil {
			return nil, err
		}
	}

	s.log().Info("share created", "code", rec.ShareCode, "size", rec.FileSize, "expires_at", rec.ExpiresAt)
	view := viewOf(rec)
	view.Password = settings.Password
	return &view, nil
}

// createWithGeneratedCode persists rec under a freshly generated code,
// retrying on collision within the budget.
func (s *Service) createWithGeneratedCode(ctx context.Context, rec *domain.ShareRecord) error {
	for attempt := 0; attempt < codeRetryBudget; attempt++ {
		code, err := domain.NewShareCode()
		if err != nil {
			return err
		}
		rec.ShareCode = code
		err = s.Store.Create(ctx, rec)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrDuplicateCode) {
			return err
		}
	}
	return domain.ErrCodeSpaceExhausted
}

// Redeem validates the share in a fixed order (exists, not expired, quota
// remains, password matches), then decodes the payload and atomically
// consumes one download. The store-level conditional increment re-checks the
// quota, so concurrent redeemers can never push the counter past its
// ceiling; a racer that loses reports quota exhaustion.
func (s *Service) Redeem(ctx context.Context, code, pw string) (*Download, error) {
	code = domain.NormalizeLookupCode(code)
	if !domain.ValidCode(code) {
		return nil, domain.ErrNotFound
	}
	rec, err := s.Store.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	now := s.Clock.Now()
	if rec.Expired(now) {
		return nil, domain.ErrExpired
	}
	if !rec.QuotaRemaining() {
		return nil, domain.ErrQuotaExhausted
	}
	if rec.HasPassword {
		if pw == "" {
			return nil, domain.ErrPasswordRequired
		}
		if !password.Verify(pw, rec.PasswordDigest) {
			return nil, domain.ErrInvalidPassword
		}
	}
	raw, err := payload.Decode(rec.Payload)
	if err != nil {
		return nil, err
	}
	if err := s.Store.IncrementDownloadCount(ctx, code); err != nil {
		return nil, err
	}
	s.log().Info("share redeemed", "code", code, "size", int64(len(raw)))
	return &Download{FileName: rec.FileName, FileType: rec.FileType, Data: raw}, nil
}

// ListOwned sweeps expired records best-effort, then returns the remaining
// records' metadata newest-first. Digests are never exposed; plaintext
// passwords are never stored, so they cannot appear here either.
func (s *Service) ListOwned(ctx context.Context) ([]SharedFile, error) {
	if _, err := s.SweepExpired(ctx); err != nil {
		// A failed sweep must not block listing.
		s.log().Warn("expiry sweep failed", "err", err)
	}
	recs, err := s.Store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]SharedFile, 0, len(recs))
	for i := range recs {
		views = append(views, viewOf(&recs[i]))
	}
	sort.Slice(views, func(i, j int) bool { return views[i].UploadedAt.After(views[j].UploadedAt) })
	return views, nil
}

// Revoke deletes the share regardless of state. Idempotent.
func (s *Service) Revoke(ctx context.Context, code string) error {
	return s.Store.Delete(ctx, domain.NormalizeLookupCode(code))
}

// SweepExpired removes expired records and returns the count. Callers may
// invoke it opportunistically or on a schedule; redemption never relies on
// it, since Redeem re-checks expiry itself.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	return s.Store.DeleteExpired(ctx, s.Clock.Now())
}

func viewOf(rec *domain.ShareRecord) SharedFile {
	return SharedFile{
		ID:            rec.ID,
		FileName:      rec.FileName,
		FileSize:      rec.FileSize,
		FileType:      rec.FileType,
		ShareCode:     rec.ShareCode,
		HasPassword:   rec.HasPassword,
		UploadedAt:    rec.UploadedAt,
		ExpiresAt:     rec.ExpiresAt,
		DownloadCount: rec.DownloadCount,
		MaxDownloads:  rec.MaxDownloads,
	}
}
