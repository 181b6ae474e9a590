package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/frahmantamala/innovation-portal/internal"
	"github.com/jmoiron/sqlx/types"
)

const (
	ActionOTPRequested     = "OTP_REQUESTED"
	ActionOTPVerified      = "OTP_VERIFIED"
	ActionLogout           = "LOGOUT"
	ActionProfileCompleted = "PROFILE_COMPLETED"

	ActionSubmissionCreate     = "submission.create"
	ActionSubmissionUpdate     = "submission.update"
	ActionSubmissionTransition = "submission.transition"
	ActionCommentCreate        = "comment.create"
	ActionRoleAssign           = "role.assign"
	ActionRoleRevoke           = "role.revoke"
	ActionInitiativeCreate     = "initiative.create"
)

const (
	EntitySubmission = "submission"
	EntityComment    = "comment"
	EntityUser       = "user"
	EntityInitiative = "initiative"
	EntityAuth       = "auth"
)

// DomainEvent describes a mutation of a business entity.
type DomainEvent struct {
	Action     string
	EntityType string
	EntityID   string
	UserID     string
	Success    bool
	Metadata   map[string]interface{}
}

// AuthEvent describes an authentication step. Email is recorded even when no user exists yet.
type AuthEvent struct {
	Action   string
	Email    string
	UserID   string
	Success  bool
	Metadata map[string]interface{}
}

// Entry is one append-only row of the audit log.
type Entry struct {
	ID         int64          `db:"id" json:"id"`
	Action     string         `db:"action" json:"action"`
	EntityType string         `db:"entity_type" json:"entity_type,omitempty"`
	EntityID   string         `db:"entity_id" json:"entity_id,omitempty"`
	UserID     string         `db:"user_id" json:"user_id,omitempty"`
	Email      string         `db:"email" json:"email,omitempty"`
	IP         string         `db:"ip" json:"ip,omitempty"`
	UserAgent  string         `db:"user_agent" json:"user_agent,omitempty"`
	Success    bool           `db:"success" json:"success"`
	Metadata   types.JSONText `db:"metadata" json:"metadata,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}

type Filter struct {
	Action     string
	EntityType string
	EntityID   string
	UserID     string
	Limit      int
	Offset     int
}

type Repository interface {
	Insert(ctx context.Context, entry *Entry) error
	List(ctx context.Context, filter Filter) ([]*Entry, error)
}

type Recorder struct {
	repo   Repository
	logger *slog.Logger
}

func NewRecorder(repo Repository, logger *slog.Logger) *Recorder {
	return &Recorder{
		repo:   repo,
		logger: logger,
	}
}

func (r *Recorder) LogDomainEvent(ctx context.Context, event DomainEvent) error {
	return r.write(ctx, &Entry{
		Action:     event.Action,
		EntityType: event.EntityType,
		EntityID:   event.EntityID,
		UserID:     event.UserID,
		Success:    event.Success,
	}, event.Metadata)
}

func (r *Recorder) LogAuthEvent(ctx context.Context, event AuthEvent) error {
	return r.write(ctx, &Entry{
		Action:     event.Action,
		EntityType: EntityAuth,
		UserID:     event.UserID,
		Email:      event.Email,
		Success:    event.Success,
	}, event.Metadata)
}

func (r *Recorder) write(ctx context.Context, entry *Entry, metadata map[string]interface{}) error {
	meta := internal.RequestMetaFromContext(ctx)
	entry.IP = meta.IP
	entry.UserAgent = meta.UserAgent
	entry.CreatedAt = time.Now().UTC()

	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	if meta.RequestID != "" {
		metadata["request_id"] = meta.RequestID
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to encode audit metadata", "error", err, "action", entry.Action)
		raw = []byte("{}")
	}
	entry.Metadata = types.JSONText(raw)

	if err := r.repo.Insert(ctx, entry); err != nil {
		r.logger.ErrorContext(ctx, "failed to write audit entry",
			"error", err,
			"action", entry.Action,
			"entity_type", entry.EntityType,
			"entity_id", entry.EntityID)
		return internal.NewInfrastructureError("failed to write audit entry", err)
	}

	r.logger.DebugContext(ctx, "audit entry written", "action", entry.Action, "success", entry.Success)
	return nil
}

func (r *Recorder) List(ctx context.Context, filter Filter) ([]*Entry, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	entries, err := r.repo.List(ctx, filter)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to list audit entries", "error", err)
		return nil, internal.NewInfrastructureError("failed to list audit entries", err)
	}
	return entries, nil
}

func (r *Recorder) ListForEntity(ctx context.Context, entityType, entityID string) ([]*Entry, error) {
	return r.List(ctx, Filter{EntityType: entityType, EntityID: entityID, Limit: 200})
}
