package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/frahmantamala/innovation-portal/internal"
)

// ClientInfo records the caller's IP and user agent for rate limiting and audit.
func ClientInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		meta := internal.RequestMetaFromContext(r.Context())
		meta.IP = ClientIP(r)
		meta.UserAgent = r.UserAgent()

		next.ServeHTTP(w, r.WithContext(internal.ContextWithRequestMeta(r.Context(), meta)))
	})
}

// ClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the socket address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if first != "" {
			return first
		}
	}
	if real := strings.TrimSpace(r.Header.Get("X-Real-IP")); real != "" {
		return real
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
