package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/dropcode/dropcode/internal/app"
)

// handleListShares implements GET /api/shares, returning the owner's shares
// newest first.
func (h *Handler) handleListShares(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if r.Method != http.MethodGet {
		h.writeError(ctx, w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	shares, err := h.Service.ListOwned(ctx)
	if err != nil {
		h.mapServiceError(ctx, w, err)
		return
	}
	if shares == nil {
		shares = []app.SharedFile{}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(shares)
}
