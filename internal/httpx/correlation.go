package httpx

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// CorrelationIDHeader is the request/response header carrying the ID.
const CorrelationIDHeader = "X-Correlation-ID"

type ctxKey int

const correlationIDKey ctxKey = iota

// CorrelationMiddleware ensures each request has a correlation ID, generating
// one if absent. The ID is added to the request context and response headers
// for tracing.
func CorrelationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cid := r.Header.Get(CorrelationIDHeader)
		if cid == "" {
			cid = uuid.New().String()
		}
		ctx := context.WithValue(r.Context(), correlationIDKey, cid)
		w.Header().Set(CorrelationIDHeader, cid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetCorrelationID extracts the correlation ID from the context.
func GetCorrelationID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(correlationIDKey).(string)
	return id, ok
}
