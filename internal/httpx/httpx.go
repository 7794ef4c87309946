// Package httpx contains the HTTP delivery layer (net/http handlers) for the
// Dropcode service. It maps HTTP requests to the application service while
// enforcing body limits, security headers, and error translation. Handlers
// are split across files (create.go, redeem.go, list.go, revoke.go,
// health.go, errors.go).
package httpx

import (
	"context"
	"net/http"

	"github.com/dropcode/dropcode/internal/app"
)

// ServicePort abstracts the subset of app.Service used by the HTTP layer.
// It is satisfied by *app.Service in production and stubbed in tests.
type ServicePort interface {
	CreateShare(ctx context.Context, up app.Upload, settings app.ShareSettings) (*app.SharedFile, error)
	Redeem(ctx context.Context, code, password string) (*app.Download, error)
	ListOwned(ctx context.Context) ([]app.SharedFile, error)
	Revoke(ctx context.Context, code string) error
}

// Recorder is the counter sink the handlers report request outcomes to.
// Satisfied by *metrics.Manager; nil disables reporting.
type Recorder interface {
	Inc(name string, delta int64)
}

// Counter names reported by the HTTP layer.
const (
	CounterSharesCreated  = "shares_created_total"
	CounterSharesRedeemed = "shares_redeemed_total"
	CounterSharesRevoked  = "shares_revoked_total"
)

// Handler wires HTTP endpoints to the application service.
// It is safe for concurrent use. Zero-value is not valid; construct via New.
type Handler struct {
	Service   ServicePort
	MaxBody   int64                       // mirror service.MaxFileBytes (defense-in-depth)
	Readiness func(context.Context) error // optional readiness probe
	Recorder  Recorder                    // optional counter sink
	Metrics   http.Handler                // optional snapshot endpoint mounted at /metrics
}

// New returns a configured Handler.
// svc: application service port implementation.
// maxBody: maximum allowed request body size (0 disables extra check).
// readiness: optional probe function for /readyz (nil => always ready).
func New(svc ServicePort, maxBody int64, readiness func(context.Context) error) *Handler {
	return &Handler{Service: svc, MaxBody: maxBody, Readiness: readiness}
}

// Router constructs and returns an http.Handler with all routes mounted,
// correlation IDs assigned, and security headers applied.
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/share", h.handleCreateShare)
	mux.HandleFunc("/api/share/", h.handleShareByCode) // expect /api/share/{code}
	mux.HandleFunc("/api/shares", h.handleListShares)
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/readyz", h.handleReady)
	if h.Metrics != nil {
		mux.Handle("/metricsz", h.Metrics)
	}
	return CorrelationMiddleware(h.secureHeaders(mux))
}

// handleShareByCode dispatches /api/share/{code} by method.
func (h *Handler) handleShareByCode(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleRedeem(w, r)
	case http.MethodDelete:
		h.handleRevoke(w, r)
	default:
		h.writeError(r.Context(), w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// secureHeaders middleware adds standard security & cache control headers.
// Share payloads are single-purpose downloads; nothing served here should be
// cached or embedded.
func (h *Handler) secureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'; base-uri 'none'")
		next.ServeHTTP(w, r)
	})
}

// inc reports a counter if a Recorder is configured.
func (h *Handler) inc(name string) {
	if h.Recorder != nil {
		h.Recorder.Inc(name, 1)
	}
}
