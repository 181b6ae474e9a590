package middleware

import (
	"net/http"

	"github.com/frahmantamala/innovation-portal/internal"
	"github.com/frahmantamala/innovation-portal/internal/ids"
	"github.com/frahmantamala/innovation-portal/pkg/logger"
)

const RequestIDHeader = "X-Request-ID"

// RequestID tags each request with a ULID (or the caller's X-Request-ID) and
// attaches it to the context logger and the audit request meta.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" || len(requestID) > 64 {
			requestID = ids.New()
		}

		meta := internal.RequestMetaFromContext(r.Context())
		meta.RequestID = requestID

		ctx := internal.ContextWithRequestMeta(r.Context(), meta)
		ctx = logger.With(ctx, "request_id", requestID)

		w.Header().Set(RequestIDHeader, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
