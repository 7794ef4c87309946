package httpx

import (
	"net/http"
	"strings"
)

// handleRevoke implements DELETE /api/share/{code}. Revocation is idempotent;
// deleting an unknown code still returns 204.
func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := strings.TrimPrefix(r.URL.Path, "/api/share/")
	if code == "" || strings.Contains(code, "/") {
		h.writeError(ctx, w, http.StatusNotFound, "share not found")
		return
	}
	if err := h.Service.Revoke(ctx, code); err != nil {
		h.mapServiceError(ctx, w, err)
		return
	}
	h.inc(CounterSharesRevoked)
	w.WriteHeader(http.StatusNoContent)
}
