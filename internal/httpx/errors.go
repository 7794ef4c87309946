package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dropcode/dropcode/internal/domain"
)

// writeError writes a JSON error body with given status code.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: msg})
	if cid, ok := GetCorrelationID(ctx); ok {
		slog.Debug("wrote error response", "cid", cid, "status", code, "msg", msg)
	}
}

// mapServiceError maps domain/store/service errors to HTTP responses. Expiry
// and quota exhaustion both surface as 410 Gone: the share existed but can no
// longer be redeemed. Store outages are 503, never 404, so a flaky backend is
// distinguishable from a genuinely missing share.
func (h *Handler) mapServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	cid, _ := GetCorrelationID(ctx)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		slog.Info("service error", "cid", cid, "code", "not_found")
		h.writeError(ctx, w, http.StatusNotFound, "share not found")
	case errors.Is(err, domain.ErrExpired):
		slog.Info("service error", "cid", cid, "code", "expired")
		h.writeError(ctx, w, http.StatusGone, "share expired")
	case errors.Is(err, domain.ErrQuotaExhausted):
		slog.Info("service error", "cid", cid, "code", "quota_exhausted")
		h.writeError(ctx, w, http.StatusGone, "download limit reached")
	case errors.Is(err, domain.ErrPasswordRequired):
		slog.Info("service error", "cid", cid, "code", "password_required")
		h.writeError(ctx, w, http.StatusUnauthorized, "password required")
	case errors.Is(err, domain.ErrInvalidPassword):
		slog.Warn("service error", "cid", cid, "code", "invalid_password")
		h.writeError(ctx, w, http.StatusForbidden, "invalid password")
	case errors.Is(err, domain.ErrDuplicateCode):
		slog.Info("service error", "cid", cid, "code", "duplicate_code")
		h.writeError(ctx, w, http.StatusConflict, "share code already in use")
	case errors.Is(err, domain.ErrFileTooLarge):
		slog.Warn("service error", "cid", cid, "code", "file_too_large")
		h.writeError(ctx, w, http.StatusRequestEntityTooLarge, "file too large")
	case errors.Is(err, domain.ErrInvalidCode):
		slog.Warn("service error", "cid", cid, "code", "invalid_code")
		h.writeError(ctx, w, http.StatusBadRequest, "invalid share code")
	case errors.Is(err, domain.ErrExpiryInvalid):
		slog.Warn("service error", "cid", cid, "code", "expiry_invalid")
		h.writeError(ctx, w, http.StatusBadRequest, "invalid expiry")
	case errors.Is(err, domain.ErrCodeSpaceExhausted):
		slog.Error("service error", "cid", cid, "code", "code_space_exhausted")
		h.writeError(ctx, w, http.StatusServiceUnavailable, "could not allocate share code")
	case errors.Is(err, domain.ErrStoreUnavailable):
		slog.Error("service error", "cid", cid, "code", "store_unavailable")
		h.writeError(ctx, w, http.StatusServiceUnavailable, "storage unavailable")
	default:
		// Internal / unexpected (includes corrupt payloads): do not leak the
		// raw error string.
		slog.Error("unhandled service error", "cid", cid, "code", "unhandled")
		h.writeError(ctx, w, http.StatusInternalServerError, "internal")
	}
}
