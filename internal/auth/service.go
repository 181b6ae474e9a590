package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/frahmantamala/innovation-portal/internal"
	"github.com/frahmantamala/innovation-portal/internal/audit"
	userDatamodel "github.com/frahmantamala/innovation-portal/internal/core/datamodel/user"
	"github.com/frahmantamala/innovation-portal/internal/ids"
	"github.com/frahmantamala/innovation-portal/internal/mailer"
	"github.com/frahmantamala/innovation-portal/internal/obs"
	"golang.org/x/crypto/bcrypt"
)

type Repository interface {
	// FindUserByEmail returns internal.ErrUserNotFound when no user has the address.
	FindUserByEmail(ctx context.Context, email string) (*userDatamodel.User, error)
	FindUserByID(ctx context.Context, id string) (*userDatamodel.User, error)
	// CreateUser inserts the user and grants roleName when that role exists.
	CreateUser(ctx context.Context, user *userDatamodel.User, roleName string) error

	// ReplaceOTP removes every pending code for the email and stores token.
	ReplaceOTP(ctx context.Context, token *userDatamodel.OTPToken) error
	// LatestOTP returns nil when the email has no pending code.
	LatestOTP(ctx context.Context, email string) (*userDatamodel.OTPToken, error)
	IncrementOTPAttempts(ctx context.Context, id int64) error
	DeleteOTP(ctx context.Context, id int64) error
	DeleteExpiredOTPs(ctx context.Context, before time.Time) (int64, error)

	CreateSession(ctx context.Context, session *userDatamodel.Session) error
	// FindSession returns nil when the session does not exist.
	FindSession(ctx context.Context, id string) (*userDatamodel.Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error)
}

type ServiceAPI interface {
	RequestOTP(ctx context.Context, dto RequestOTPDTO) (*RequestOTPResponse, error)
	VerifyOTP(ctx context.Context, dto VerifyOTPDTO) (*LoginResult, error)
	Authenticate(ctx context.Context, token string) (*Principal, error)
	CurrentUser(ctx context.Context, principal *Principal) (*User, error)
	Logout(ctx context.Context, principal *Principal) error
}

type MailSender interface {
	Send(ctx context.Context, msg mailer.Message) error
}

type AuthRecorder interface {
	LogAuthEvent(ctx context.Context, event audit.AuthEvent) error
}

type Service struct {
	repo     Repository
	tokens   *TokenIssuer
	limiter  *RateLimiter
	policy   EmailPolicy
	mail     MailSender
	recorder AuthRecorder
	cfg      internal.AuthConfig
	logger   *slog.Logger

	now          func() time.Time
	generateCode func() (string, error)
}

func NewService(repo Repository, cfg internal.AuthConfig, limiter *RateLimiter, mail MailSender, recorder AuthRecorder, logger *slog.Logger) (*Service, error) {
	policy, err := ParseEmailPolicy(cfg.EmailPolicy)
	if err != nil {
		return nil, err
	}
	if cfg.BCryptCost == 0 {
		cfg.BCryptCost = bcrypt.DefaultCost
	}

	s := &Service{
		repo:         repo,
		tokens:       NewTokenIssuer(cfg.SessionSecret),
		limiter:      limiter,
		policy:       policy,
		mail:         mail,
		recorder:     recorder,
		cfg:          cfg,
		logger:       logger,
		now:          time.Now,
		generateCode: generateCode,
	}
	s.tokens.now = func() time.Time { return s.now() }
	return s, nil
}

func (s *Service) RequestOTP(ctx context.Context, dto RequestOTPDTO) (*RequestOTPResponse, error) {
	dto.Normalize()
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	email := dto.Email

	if err := s.limiter.AllowRequest(email, internal.RequestMetaFromContext(ctx).IP); err != nil {
		s.logger.WarnContext(ctx, "otp request rate limited", "email", email)
		s.recordAuth(ctx, audit.ActionOTPRequested, email, "", false, map[string]interface{}{"reason": "rate_limited"})
		return nil, err
	}

	if !s.policy.Allows(email) {
		s.recordAuth(ctx, audit.ActionOTPRequested, email, "", false, map[string]interface{}{"reason": "email_not_allowed"})
		return nil, ErrEmailNotAllowed
	}

	user, err := s.findOrCreateUser(ctx, email)
	if err != nil {
		return nil, err
	}

	code, err := s.generateCode()
	if err != nil {
		return nil, internal.NewInternalError("Failed to generate code", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.cfg.BCryptCost)
	if err != nil {
		return nil, internal.NewInternalError("Failed to hash code", err)
	}

	now := s.now()
	token := &userDatamodel.OTPToken{
		Email:     email,
		CodeHash:  string(hash),
		ExpiresAt: now.Add(s.cfg.OTPExpiry),
		CreatedAt: now,
	}
	if err := s.repo.ReplaceOTP(ctx, token); err != nil {
		return nil, storeError("failed to store code", err)
	}

	minutes := int(s.cfg.OTPExpiry / time.Minute)
	msg := mailer.Message{
		To:      email,
		Subject: "Your Innovation Portal sign-in code",
		Body:    fmt.Sprintf("Your sign-in code is %s. It expires in %d minutes.\n\nIf you did not request this code you can ignore this email.", code, minutes),
	}
	if err := s.mail.Send(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "failed to queue otp mail", "error", err, "email", email)
		s.recordAuth(ctx, audit.ActionOTPRequested, email, user.ID, false, map[string]interface{}{"reason": "mail_failed"})
		return nil, storeError("failed to send code", err)
	}

	s.recordAuth(ctx, audit.ActionOTPRequested, email, user.ID, true, nil)
	return &RequestOTPResponse{
		Message:   "A sign-in code has been sent to your email",
		ExpiresIn: int(s.cfg.OTPExpiry / time.Second),
	}, nil
}

func (s *Service) findOrCreateUser(ctx context.Context, email string) (*userDatamodel.User, error) {
	user, err := s.repo.FindUserByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if appErr, ok := internal.IsAppError(err); !ok || appErr.Code != internal.ErrCodeUserNotFound {
		return nil, storeError("failed to load user", err)
	}

	user = &userDatamodel.User{
		ID:       ids.NewUUID(),
		Email:    email,
		IsActive: true,
	}
	if err := s.repo.CreateUser(ctx, user, s.cfg.DefaultRole); err != nil {
		return nil, storeError("failed to create user", err)
	}
	s.logger.InfoContext(ctx, "user created on first sign-in request", "user_id", user.ID, "role", s.cfg.DefaultRole)
	return user, nil
}

// VerifyOTP checks a code against the newest pending code for the email. Every
// mismatch consumes an attempt; a match consumes the code and opens a session.
func (s *Service) VerifyOTP(ctx context.Context, dto VerifyOTPDTO) (*LoginResult, error) {
	dto.Normalize()
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	email := dto.Email

	if err := s.limiter.AllowVerify(email); err != nil {
		s.recordAuth(ctx, audit.ActionOTPVerified, email, "", false, map[string]interface{}{"reason": "rate_limited"})
		return nil, err
	}

	token, err := s.repo.LatestOTP(ctx, email)
	if err != nil {
		return nil, storeError("failed to load code", err)
	}
	if token == nil {
		s.recordAuth(ctx, audit.ActionOTPVerified, email, "", false, map[string]interface{}{"reason": "no_code"})
		return nil, ErrOTPInvalid
	}

	now := s.now()
	if now.After(token.ExpiresAt) {
		s.recordAuth(ctx, audit.ActionOTPVerified, email, "", false, map[string]interface{}{"reason": "expired"})
		return nil, ErrOTPExpired
	}
	if token.Attempts >= s.cfg.OTPMaxAttempts {
		s.recordAuth(ctx, audit.ActionOTPVerified, email, "", false, map[string]interface{}{"reason": "max_attempts"})
		return nil, ErrOTPMaxAttempts
	}

	matched := bcrypt.CompareHashAndPassword([]byte(token.CodeHash), []byte(dto.Code)) == nil
	if !matched {
		if err := s.repo.IncrementOTPAttempts(ctx, token.ID); err != nil {
			return nil, storeError("failed to record attempt", err)
		}
		remaining := s.cfg.OTPMaxAttempts - token.Attempts - 1
		if remaining < 0 {
			remaining = 0
		}
		s.recordAuth(ctx, audit.ActionOTPVerified, email, "", false, map[string]interface{}{"reason": "invalid_code", "attempts_remaining": remaining})
		return nil, ErrOTPInvalid.WithDetails(map[string]interface{}{"attempts_remaining": remaining})
	}

	if err := s.repo.DeleteOTP(ctx, token.ID); err != nil {
		return nil, storeError("failed to consume code", err)
	}

	user, err := s.repo.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, storeError("failed to load user", err)
	}
	if !user.IsActive {
		s.recordAuth(ctx, audit.ActionOTPVerified, email, user.ID, false, map[string]interface{}{"reason": "inactive"})
		return nil, internal.ErrUserInactive
	}

	session := &userDatamodel.Session{
		ID:        ids.NewUUID(),
		UserID:    user.ID,
		ExpiresAt: now.Add(s.cfg.SessionTTL),
		CreatedAt: now,
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, storeError("failed to create session", err)
	}

	signed, err := s.tokens.Issue(session.ID, user.ID, now, session.ExpiresAt)
	if err != nil {
		return nil, internal.NewInternalError("Failed to issue session token", err)
	}

	s.recordAuth(ctx, audit.ActionOTPVerified, email, user.ID, true, nil)
	return &LoginResult{
		Token:     signed,
		ExpiresAt: session.ExpiresAt,
		User:      UserFromDataModel(user),
	}, nil
}

// Authenticate validates the token signature, then the session row. Expired sessions are deleted on sight.
func (s *Service) Authenticate(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, internal.ErrUnauthenticated
	}

	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}

	session, err := s.repo.FindSession(ctx, claims.SessionID)
	if err != nil {
		return nil, storeError("failed to load session", err)
	}
	if session == nil || session.UserID != claims.Subject {
		return nil, internal.ErrInvalidToken
	}
	if s.now().After(session.ExpiresAt) {
		if err := s.repo.DeleteSession(ctx, session.ID); err != nil {
			s.logger.WarnContext(ctx, "failed to delete expired session", "error", err, "session_id", session.ID)
		}
		return nil, internal.ErrSessionExpired
	}

	user, err := s.repo.FindUserByID(ctx, session.UserID)
	if err != nil {
		if appErr, ok := internal.IsAppError(err); ok && appErr.Code == internal.ErrCodeUserNotFound {
			return nil, internal.ErrInvalidToken
		}
		return nil, storeError("failed to load user", err)
	}
	if !user.IsActive {
		return nil, internal.ErrUserInactive
	}

	return &Principal{
		UserID:    user.ID,
		Email:     user.Email,
		SessionID: session.ID,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

func (s *Service) CurrentUser(ctx context.Context, principal *Principal) (*User, error) {
	user, err := s.repo.FindUserByID(ctx, principal.UserID)
	if err != nil {
		return nil, storeError("failed to load user", err)
	}
	return UserFromDataModel(user), nil
}

func (s *Service) Logout(ctx context.Context, principal *Principal) error {
	if err := s.repo.DeleteSession(ctx, principal.SessionID); err != nil {
		return storeError("failed to delete session", err)
	}
	s.recordAuth(ctx, audit.ActionLogout, principal.Email, principal.UserID, true, nil)
	return nil
}

func (s *Service) recordAuth(ctx context.Context, action, email, userID string, success bool, metadata map[string]interface{}) {
	obs.ObserveAuthEvent(action, success)
	if err := s.recorder.LogAuthEvent(ctx, audit.AuthEvent{
		Action:   action,
		Email:    email,
		UserID:   userID,
		Success:  success,
		Metadata: metadata,
	}); err != nil {
		s.logger.ErrorContext(ctx, "failed to write auth audit entry", "error", err, "action", action)
	}
}

func storeError(msg string, err error) error {
	if _, ok := internal.IsAppError(err); ok {
		return err
	}
	return internal.NewInfrastructureError(msg, err)
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
