package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/innovation-portal/internal"
	"github.com/frahmantamala/innovation-portal/internal/permission"
	"github.com/frahmantamala/innovation-portal/internal/transport"
)

type PermissionAuthorizer interface {
	CheckPermission(ctx context.Context, principalID, key string, opts ...permission.CheckOption) (bool, error)
}

// RBACAuthorization gates routes on a single permission key. Owner scoped checks
// need the resource and belong in the services.
type RBACAuthorization struct {
	*transport.BaseHandler
	authorizer PermissionAuthorizer
}

func NewRBACAuthorization(authorizer PermissionAuthorizer, logger *slog.Logger) *RBACAuthorization {
	return &RBACAuthorization{
		BaseHandler: transport.NewBaseHandler(logger),
		authorizer:  authorizer,
	}
}

func (ra *RBACAuthorization) Check(next http.HandlerFunc, key string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFromContext(r.Context())
		if !ok {
			ra.Logger.WarnContext(r.Context(), "authorization check failed: no principal in context")
			ra.WriteAppError(w, internal.ErrUnauthenticated)
			return
		}

		granted, err := ra.authorizer.CheckPermission(r.Context(), principal.UserID, key)
		if err != nil {
			ra.Logger.ErrorContext(r.Context(), "authorization check failed", "error", err, "user_id", principal.UserID, "permission", key)
			ra.WriteAppError(w, err)
			return
		}

		if !granted {
			ra.Logger.WarnContext(r.Context(), "access denied: insufficient permissions",
				"user_id", principal.UserID,
				"required_permission", key)
			ra.WriteAppError(w, internal.ErrPermissionDenied.WithDetails(map[string]string{"required_permission": key}))
			return
		}

		next.ServeHTTP(w, r)
	}
}

func (ra *RBACAuthorization) Middleware(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return ra.Check(next.ServeHTTP, key)
	}
}
