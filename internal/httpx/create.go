package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/dropcode/dropcode/internal/app"
)

// multipartOverhead leaves headroom for part boundaries and metadata fields
// on top of the file payload itself.
const multipartOverhead = 64 << 10

// handleCreateShare implements POST /api/share.
//
// The request is multipart/form-data with a required "file" part and the
// optional fields "custom_code", "password", "expires_at" (RFC3339),
// "expires_in" (Go duration, used when expires_at is absent) and
// "max_downloads" (integer; negative means unlimited).
func (h *Handler) handleCreateShare(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if r.Method != http.MethodPost {
		h.writeError(ctx, w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if r.URL.Path != "/api/share" { // disallow trailing slash variants
		h.writeError(ctx, w, http.StatusNotFound, "not found")
		return
	}
	if h.MaxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxBody+multipartOverhead)
	}
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(ctx, w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		h.writeError(ctx, w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(ctx, w, http.StatusBadRequest, "missing file")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		h.writeError(ctx, w, http.StatusBadRequest, "unreadable file")
		return
	}

	settings := app.ShareSettings{
		CustomCode: r.FormValue("custom_code"),
		Password:   r.FormValue("password"),
	}
	if raw := r.FormValue("expires_at"); raw != "" {
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.writeError(ctx, w, http.StatusBadRequest, "invalid expiry")
			return
		}
		settings.ExpiresAt = at
	} else if raw := r.FormValue("expires_in"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			h.writeError(ctx, w, http.StatusBadRequest, "invalid expiry")
			return
		}
		settings.ExpiresAt = time.Now().UTC().Add(d)
	}
	if raw := r.FormValue("max_downloads"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.writeError(ctx, w, http.StatusBadRequest, "invalid max_downloads")
			return
		}
		settings.MaxDownloads = n
	}

	up := app.Upload{
		Name: header.Filename,
		Type: header.Header.Get("Content-Type"),
		Data: data,
	}
	shared, svcErr := h.Service.CreateShare(ctx, up, settings)
	if svcErr != nil {
		h.mapServiceError(ctx, w, svcErr)
		return
	}
	h.inc(CounterSharesCreated)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(shared)
}
