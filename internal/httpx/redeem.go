package httpx

import (
	"mime"
	"net/http"
	"strconv"
	"strings"
)

// PasswordHeader carries the redemption password for protected shares.
const PasswordHeader = "X-Share-Password"

// handleRedeem implements GET /api/share/{code}.
//
// A successful redemption streams the file bytes with Content-Disposition
// set, consuming one download from the share's quota.
func (h *Handler) handleRedeem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := strings.TrimPrefix(r.URL.Path, "/api/share/")
	if code == "" || strings.Contains(code, "/") {
		h.writeError(ctx, w, http.StatusNotFound, "share not found")
		return
	}
	dl, err := h.Service.Redeem(ctx, code, r.Header.Get(PasswordHeader))
	if err != nil {
		h.mapServiceError(ctx, w, err)
		return
	}
	h.inc(CounterSharesRedeemed)
	ct := dl.FileType
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Length", strconv.Itoa(len(dl.Data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": dl.FileName}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(dl.Data)
}
