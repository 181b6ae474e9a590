package role

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/innovation-portal/internal"
	"github.com/frahmantamala/innovation-portal/internal/audit"
	rbacDatamodel "github.com/frahmantamala/innovation-portal/internal/core/datamodel/rbac"
)

type RepositoryAPI interface {
	ListRoles(ctx context.Context) ([]*rbacDatamodel.Role, error)
	// PermissionKeysByRole maps role id to its granted keys.
	PermissionKeysByRole(ctx context.Context) (map[int64][]string, error)
	// GetByName returns internal.ErrRoleNotFound for an unknown role.
	GetByName(ctx context.Context, name string) (*rbacDatamodel.Role, error)
	UserExists(ctx context.Context, userID string) (bool, error)
	// Grant is idempotent; it reports whether a new grant was written.
	Grant(ctx context.Context, grant *rbacDatamodel.UserRole) (bool, error)
	Revoke(ctx context.Context, userID string, roleID int64) (bool, error)
}

type AuditRecorder interface {
	LogDomainEvent(ctx context.Context, event audit.DomainEvent) error
}

type Service struct {
	repo     RepositoryAPI
	recorder AuditRecorder
	logger   *slog.Logger
}

func NewService(repo RepositoryAPI, recorder AuditRecorder, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		recorder: recorder,
		logger:   logger,
	}
}

func (s *Service) ListRoles(ctx context.Context) ([]*Role, error) {
	roles, err := s.repo.ListRoles(ctx)
	if err != nil {
		return nil, internal.NewInfrastructureError("failed to list roles", err)
	}
	keys, err := s.repo.PermissionKeysByRole(ctx)
	if err != nil {
		return nil, internal.NewInfrastructureError("failed to list role permissions", err)
	}

	out := make([]*Role, 0, len(roles))
	for _, r := range roles {
		out = append(out, FromDataModel(r, keys[r.ID]))
	}
	return out, nil
}

func (s *Service) AssignRole(ctx context.Context, actorID, userID, roleName string) (*AssignmentResponse, error) {
	r, err := s.resolveTarget(ctx, userID, roleName)
	if err != nil {
		return nil, err
	}

	created, err := s.repo.Grant(ctx, &rbacDatamodel.UserRole{UserID: userID, RoleID: r.ID, GrantedBy: &actorID})
	if err != nil {
		return nil, internal.NewInfrastructureError("failed to assign role", err)
	}

	status := "unchanged"
	if created {
		status = "assigned"
		s.record(ctx, audit.ActionRoleAssign, actorID, userID, r.Name)
	}
	s.logger.InfoContext(ctx, "role assignment", "actor_id", actorID, "user_id", userID, "role", r.Name, "status", status)
	return &AssignmentResponse{UserID: userID, Role: r.Name, Status: status}, nil
}

func (s *Service) RevokeRole(ctx context.Context, actorID, userID, roleName string) (*AssignmentResponse, error) {
	r, err := s.resolveTarget(ctx, userID, roleName)
	if err != nil {
		return nil, err
	}

	removed, err := s.repo.Revoke(ctx, userID, r.ID)
	if err != nil {
		return nil, internal.NewInfrastructureError("failed to revoke role", err)
	}

	status := "unchanged"
	if removed {
		status = "revoked"
		s.record(ctx, audit.ActionRoleRevoke, actorID, userID, r.Name)
	}
	return &AssignmentResponse{UserID: userID, Role: r.Name, Status: status}, nil
}

func (s *Service) resolveTarget(ctx context.Context, userID, roleName string) (*rbacDatamodel.Role, error) {
	exists, err := s.repo.UserExists(ctx, userID)
	if err != nil {
		return nil, internal.NewInfrastructureError("failed to load user", err)
	}
	if !exists {
		return nil, internal.ErrUserNotFound
	}

	r, err := s.repo.GetByName(ctx, roleName)
	if err != nil {
		if _, ok := internal.IsAppError(err); ok {
			return nil, err
		}
		return nil, internal.NewInfrastructureError("failed to load role", err)
	}
	return r, nil
}

func (s *Service) record(ctx context.Context, action, actorID, userID, roleName string) {
	if err := s.recorder.LogDomainEvent(ctx, audit.DomainEvent{
		Action:     action,
		EntityType: audit.EntityUser,
		EntityID:   userID,
		UserID:     actorID,
		Success:    true,
		Metadata:   map[string]interface{}{"role": roleName},
	}); err != nil {
		s.logger.ErrorContext(ctx, "failed to audit role change", "error", err, "action", action)
	}
}
