package auth

import (
	"context"
	"time"

	"github.com/frahmantamala/innovation-portal/internal"
	userDatamodel "github.com/frahmantamala/innovation-portal/internal/core/datamodel/user"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	SessionID string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}

type User struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	Name             *string   `json:"name,omitempty"`
	ProfileCompleted bool      `json:"profile_completed"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
}

func UserFromDataModel(u *userDatamodel.User) *User {
	return &User{
		ID:               u.ID,
		Email:            u.Email,
		Name:             u.Name,
		ProfileCompleted: u.ProfileCompleted,
		IsActive:         u.IsActive,
		CreatedAt:        u.CreatedAt,
	}
}

var (
	ErrOTPInvalid      = internal.NewUnauthorizedError("Invalid or expired code", internal.ErrCodeOTPInvalid)
	ErrOTPExpired      = internal.NewUnauthorizedError("Code has expired", internal.ErrCodeOTPExpired)
	ErrOTPMaxAttempts  = internal.NewUnauthorizedError("Maximum verification attempts exceeded", internal.ErrCodeOTPMaxAttempts)
	ErrEmailNotAllowed = internal.NewForbiddenError("This email address is not allowed to sign in", internal.ErrCodeEmailNotAllowed)
)

type ctxKey string

const contextPrincipalKey ctxKey = "principal"

// ContextWithPrincipal stores p and its user id so packages that only need the id
// can read it through internal.UserIDFromContext.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	ctx = context.WithValue(ctx, contextPrincipalKey, p)
	return internal.ContextWithUserID(ctx, p.UserID)
}

func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(contextPrincipalKey).(*Principal)
	return p, ok && p != nil
}
