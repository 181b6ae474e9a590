package auth

import (
	"net/http"
	"time"

	"github.com/frahmantamala/innovation-portal/internal"
	"github.com/frahmantamala/innovation-portal/internal/transport"
	"github.com/frahmantamala/innovation-portal/pkg/logger"
)

type CookieConfig struct {
	Name   string
	Secure bool
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
	cookie  CookieConfig
}

func NewHandler(svc ServiceAPI, cookie CookieConfig) *Handler {
	if cookie.Name == "" {
		cookie.Name = "innovation_session"
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger.LoggerWrapper()),
		Service:     svc,
		cookie:      cookie,
	}
}

func (h *Handler) RequestOTP(w http.ResponseWriter, r *http.Request) {
	var dto RequestOTPDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.WriteAppError(w, err)
		return
	}

	resp, err := h.Service.RequestOTP(r.Context(), dto)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var dto VerifyOTPDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.WriteAppError(w, err)
		return
	}

	result, err := h.Service.VerifyOTP(r.Context(), dto)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.setSessionCookie(w, result.Token, result.ExpiresAt)
	h.WriteJSON(w, http.StatusOK, result)
}

// Session reports whether the caller holds a valid session. It never answers 401.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	token := h.tokenFromRequest(r)
	if token == "" {
		h.WriteJSON(w, http.StatusOK, SessionResponse{Authenticated: false})
		return
	}

	principal, err := h.Service.Authenticate(r.Context(), token)
	if err != nil {
		if internal.IsInfrastructure(err) {
			h.WriteAppError(w, err)
			return
		}
		h.clearSessionCookie(w)
		h.WriteJSON(w, http.StatusOK, SessionResponse{Authenticated: false})
		return
	}

	user, err := h.Service.CurrentUser(r.Context(), principal)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, SessionResponse{
		Authenticated: true,
		User:          user,
		ExpiresAt:     &principal.ExpiresAt,
	})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, internal.ErrUnauthenticated)
		return
	}

	if err := h.Service.Logout(r.Context(), principal); err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// AuthMiddleware resolves the principal from the bearer token or the session cookie
// and rejects the request when none is valid.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.tokenFromRequest(r)
		if token == "" {
			h.WriteAppError(w, internal.ErrUnauthenticated)
			return
		}

		principal, err := h.Service.Authenticate(r.Context(), token)
		if err != nil {
			logger.FromOr(r.Context(), h.Logger).Debug("authentication failed", "error", err)
			h.WriteAppError(w, err)
			return
		}

		ctx := ContextWithPrincipal(r.Context(), principal)
		ctx = logger.With(ctx, "user_id", principal.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) tokenFromRequest(r *http.Request) string {
	if token := h.ExtractTokenFromHeader(r); token != "" {
		return token
	}
	if c, err := r.Cookie(h.cookie.Name); err == nil {
		return c.Value
	}
	return ""
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
