package user

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/innovation-portal/internal"
	"github.com/frahmantamala/innovation-portal/internal/audit"
	userDatamodel "github.com/frahmantamala/innovation-portal/internal/core/datamodel/user"
	"github.com/frahmantamala/innovation-portal/internal/permission"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*userDatamodel.User, error)
	RoleNames(ctx context.Context, userID string) ([]string, error)
	CompleteProfile(ctx context.Context, id, name string) error
}

type PermissionResolver interface {
	ResolvePermissions(ctx context.Context, principalID string) (permission.Set, error)
}

type AuditRecorder interface {
	LogDomainEvent(ctx context.Context, event audit.DomainEvent) error
}

type Service struct {
	repo     Repository
	resolver PermissionResolver
	recorder AuditRecorder
	logger   *slog.Logger
}

func NewService(repo Repository, resolver PermissionResolver, recorder AuditRecorder, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		resolver: resolver,
		recorder: recorder,
		logger:   logger,
	}
}

func (s *Service) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, storeError("failed to load user", err)
	}

	roles, err := s.repo.RoleNames(ctx, userID)
	if err != nil {
		return nil, storeError("failed to load roles", err)
	}

	perms, err := s.resolver.ResolvePermissions(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &Profile{
		User:        FromDataModel(u),
		Roles:       roles,
		Permissions: perms.Keys(),
	}, nil
}

func (s *Service) CompleteProfile(ctx context.Context, userID string, dto CompleteProfileDTO) (*Profile, error) {
	dto.Normalize()
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.CompleteProfile(ctx, userID, dto.Name); err != nil {
		return nil, storeError("failed to update profile", err)
	}

	if err := s.recorder.LogDomainEvent(ctx, audit.DomainEvent{
		Action:     audit.ActionProfileCompleted,
		EntityType: audit.EntityUser,
		EntityID:   userID,
		UserID:     userID,
		Success:    true,
	}); err != nil {
		s.logger.ErrorContext(ctx, "failed to audit profile completion", "error", err, "user_id", userID)
	}

	s.logger.InfoContext(ctx, "profile completed", "user_id", userID)
	return s.GetProfile(ctx, userID)
}

func storeError(msg string, err error) error {
	if _, ok := internal.IsAppError(err); ok {
		return err
	}
	return internal.NewInfrastructureError(msg, err)
}
