package permission

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/innovation-portal/internal"
)

type Repository interface {
	// PermissionKeysForUser returns the keys granted through every role of the user.
	// An unknown user yields an empty slice, not an error.
	PermissionKeysForUser(ctx context.Context, userID string) ([]string, error)
}

type CheckOption func(*checkOptions)

type checkOptions struct {
	ownerID *string
}

// WithOwner scopes an ":own" check to the owner of the resource being accessed.
func WithOwner(ownerID string) CheckOption {
	return func(o *checkOptions) {
		o.ownerID = &ownerID
	}
}

type Resolver struct {
	repo   Repository
	logger *slog.Logger
}

func NewResolver(repo Repository, logger *slog.Logger) *Resolver {
	return &Resolver{
		repo:   repo,
		logger: logger,
	}
}

func (r *Resolver) ResolvePermissions(ctx context.Context, principalID string) (Set, error) {
	if principalID == "" {
		return Set{}, nil
	}

	keys, err := r.repo.PermissionKeysForUser(ctx, principalID)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to resolve permissions", "error", err, "user_id", principalID)
		return nil, internal.NewInfrastructureError("failed to resolve permissions", err)
	}

	return NewSet(keys...), nil
}

// CheckPermission resolves the principal's permissions and evaluates key against them.
// A store failure is returned as an infrastructure error, never as a denial.
func (r *Resolver) CheckPermission(ctx context.Context, principalID, key string, opts ...CheckOption) (bool, error) {
	var o checkOptions
	for _, opt := range opts {
		opt(&o)
	}

	set, err := r.ResolvePermissions(ctx, principalID)
	if err != nil {
		return false, err
	}

	granted := Evaluate(set, principalID, key, o.ownerID)
	if !granted {
		r.logger.DebugContext(ctx, "permission not granted", "user_id", principalID, "permission", key)
	}
	return granted, nil
}
