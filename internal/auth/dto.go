package auth

import (
	"strings"
	"time"

	"github.com/frahmantamala/innovation-portal/internal"
	"github.com/frahmantamala/innovation-portal/internal/core/common/validation"
)

type RequestOTPDTO struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

func (d *RequestOTPDTO) Normalize() {
	d.Email = normalizeEmail(d.Email)
}

func (d RequestOTPDTO) Validate() *internal.AppError {
	return validation.Struct(d)
}

type VerifyOTPDTO struct {
	Email string `json:"email" validate:"required,email,max=254"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

func (d *VerifyOTPDTO) Normalize() {
	d.Email = normalizeEmail(d.Email)
	d.Code = strings.TrimSpace(d.Code)
}

func (d VerifyOTPDTO) Validate() *internal.AppError {
	return validation.Struct(d)
}

type RequestOTPResponse struct {
	Message   string `json:"message"`
	ExpiresIn int    `json:"expires_in"`
}

// LoginResult is returned by a successful verification. The token is also set as a cookie.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}

type SessionResponse struct {
	Authenticated bool       `json:"authenticated"`
	User          *User      `json:"user,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
