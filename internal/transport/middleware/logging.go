package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/frahmantamala/innovation-portal/internal"
	"github.com/frahmantamala/innovation-portal/pkg/logger"
)

const (
	maxLoggedBody = 4 << 10
	redacted      = "[FILTERED]"
)

// Header and JSON field names containing any of these are masked.
var sensitiveFields = []string{
	"password",
	"token",
	"secret",
	"cookie",
	"authorization",
	"api_key",
	"session",
	"credential",
	"otp",
}

// Masked only as top-level JSON keys, so error envelopes keep their code.
var sensitiveTopLevelFields = map[string]struct{}{
	"code": {},
}

// LoggingMiddleware writes one structured line per request once the response is
// complete. Bodies are captured up to maxLoggedBody and redacted before logging.
func LoggingMiddleware(fallback *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			meta := internal.RequestMetaFromContext(r.Context())
			lg := logger.FromOr(r.Context(), fallback)

			reqBody := peekBody(r)
			cw := &captureWriter{ResponseWriter: w}
			next.ServeHTTP(cw, r)

			status := cw.status
			if status == 0 {
				status = http.StatusOK
			}

			lg.Log(context.Background(), levelFor(status), "http request",
				"request_id", meta.RequestID,
				slog.Group("request",
					"method", r.Method,
					"path", r.URL.Path,
					"query", r.URL.RawQuery,
					"ip", meta.IP,
					"user_agent", r.UserAgent(),
					"headers", filterSensitiveHeaders(r.Header),
					"body", filterSensitiveBody(reqBody),
				),
				slog.Group("response",
					"status_code", status,
					"size", cw.size,
					"body", cw.loggedBody(),
				),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

func levelFor(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// peekBody reads at most maxLoggedBody+1 bytes and stitches them back in front of
// the unread remainder so the handler still sees the whole body.
func peekBody(r *http.Request) []byte {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	head, _ := io.ReadAll(io.LimitReader(r.Body, maxLoggedBody+1))
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(head), r.Body), r.Body}
	return head
}

type captureWriter struct {
	http.ResponseWriter
	status    int
	size      int
	body      bytes.Buffer
	truncated bool
}

func (cw *captureWriter) WriteHeader(code int) {
	if cw.status == 0 {
		cw.status = code
	}
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	if cw.status == 0 {
		cw.status = http.StatusOK
	}
	if room := maxLoggedBody - cw.body.Len(); room > 0 {
		if len(b) > room {
			cw.body.Write(b[:room])
			cw.truncated = true
		} else {
			cw.body.Write(b)
		}
	} else if len(b) > 0 {
		cw.truncated = true
	}
	n, err := cw.ResponseWriter.Write(b)
	cw.size += n
	return n, err
}

func (cw *captureWriter) loggedBody() string {
	if cw.truncated {
		return "[TRUNCATED]"
	}
	return filterSensitiveBody(cw.body.Bytes())
}

func filterSensitiveHeaders(headers http.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for name, values := range headers {
		if isSensitiveName(strings.ToLower(name), false) {
			out[name] = redacted
			continue
		}
		out[name] = strings.Join(values, ", ")
	}
	return out
}

func filterSensitiveBody(body []byte) string {
	switch {
	case len(body) == 0:
		return ""
	case len(body) > maxLoggedBody:
		return "[TRUNCATED]"
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		lower := strings.ToLower(string(body))
		for _, field := range sensitiveFields {
			if strings.Contains(lower, field) {
				return "[FILTERED - Contains sensitive data]"
			}
		}
		return string(body)
	}

	out, err := json.Marshal(redactJSON(doc, true))
	if err != nil {
		return "[ERROR - Failed to marshal filtered JSON]"
	}
	return string(out)
}

func redactJSON(v any, top bool) any {
	switch node := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(node))
		for key, value := range node {
			if isSensitiveName(strings.ToLower(key), top) {
				out[key] = redacted
				continue
			}
			out[key] = redactJSON(value, false)
		}
		return out
	case []any:
		out := make([]any, len(node))
		for i, item := range node {
			out[i] = redactJSON(item, false)
		}
		return out
	default:
		return v
	}
}

func isSensitiveName(name string, top bool) bool {
	if top {
		if _, ok := sensitiveTopLevelFields[name]; ok {
			return true
		}
	}
	for _, field := range sensitiveFields {
		if strings.Contains(name, field) {
			return true
		}
	}
	return false
}
