package submission

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/frahmantamala/innovation-portal/internal"
	"github.com/frahmantamala/innovation-portal/internal/audit"
	submissionDatamodel "github.com/frahmantamala/innovation-portal/internal/core/datamodel/submission"
	"github.com/frahmantamala/innovation-portal/internal/core/events"
	"github.com/frahmantamala/innovation-portal/internal/ids"
	"github.com/frahmantamala/innovation-portal/internal/obs"
	"github.com/frahmantamala/innovation-portal/internal/permission"
)

// Repository is the persistence contract for submissions and their comments.
type Repository interface {
	Create(ctx context.Context, s *submissionDatamodel.Submission) error
	GetByID(ctx context.Context, id string) (*submissionDatamodel.Submission, error)
	List(ctx context.Context, filter ListFilter) ([]*submissionDatamodel.Submission, error)
	// UpdateContent and ApplyTransition compare-and-swap on the expected status and
	// return internal.ErrStatusChanged when another writer got there first.
	UpdateContent(ctx context.Context, id string, expected Status, title, description string) error
	ApplyTransition(ctx context.Context, change StatusChange) error
	AddComment(ctx context.Context, c *submissionDatamodel.Comment) error
	ListComments(ctx context.Context, submissionID string) ([]*submissionDatamodel.Comment, error)
}

// StatusChange is everything one transition writes, applied atomically.
type StatusChange struct {
	SubmissionID     string
	From             Status
	To               Status
	ReviewerID       *string
	ReviewedAt       *time.Time
	ApprovalComment  *string
	RejectionReason  *string
	NeedInfoQuestion *string
	Comment          *submissionDatamodel.Comment
}

type AuditRecorder interface {
	LogDomainEvent(ctx context.Context, event audit.DomainEvent) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type Service struct {
	repo      Repository
	checker   PermissionChecker
	machine   *Machine
	audit     AuditRecorder
	publisher EventPublisher
	logger    *slog.Logger
}

func NewService(repo Repository, checker PermissionChecker, recorder AuditRecorder, publisher EventPublisher, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		checker:   checker,
		machine:   NewMachine(checker, logger),
		audit:     recorder,
		publisher: publisher,
		logger:    logger,
	}
}

func (s *Service) Machine() *Machine {
	return s.machine
}

func (s *Service) Create(ctx context.Context, actorID string, dto CreateSubmissionDTO) (*Submission, error) {
	if actorID == "" {
		return nil, internal.ErrUnauthenticated
	}

	dto.Normalize()
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	if err := s.require(ctx, actorID, permission.SubmissionsCreate); err != nil {
		return nil, err
	}

	sub := NewSubmission(ids.New(), actorID, dto)
	model := ToDataModel(sub)
	if err := s.repo.Create(ctx, model); err != nil {
		s.logger.ErrorContext(ctx, "failed to create submission", "error", err, "user_id", actorID)
		return nil, internal.NewInfrastructureError("failed to save submission", err)
	}

	s.record(ctx, audit.DomainEvent{
		Action:     audit.ActionSubmissionCreate,
		EntityType: audit.EntitySubmission,
		EntityID:   sub.ID,
		UserID:     actorID,
		Success:    true,
		Metadata:   map[string]interface{}{"title": sub.Title},
	})

	s.logger.InfoContext(ctx, "submission created", "submission_id", sub.ID, "user_id", actorID)
	return FromDataModel(model), nil
}

// Get returns the submission if the actor may read it.
func (s *Service) Get(ctx context.Context, actorID, id string) (*Submission, error) {
	sub, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireRead(ctx, actorID, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *Service) List(ctx context.Context, actorID string, filter ListFilter) ([]*Submission, error) {
	if actorID == "" {
		return nil, internal.ErrUnauthenticated
	}
	if err := filter.Normalize(); err != nil {
		return nil, err
	}

	readAll, err := s.checker.CheckPermission(ctx, actorID, permission.SubmissionsReadAll)
	if err != nil {
		return nil, err
	}
	filter.OwnerID = ""
	if !readAll {
		if err := s.require(ctx, actorID, permission.SubmissionsReadOwn, permission.WithOwner(actorID)); err != nil {
			return nil, err
		}
		filter.OwnerID = actorID
	}

	models, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list submissions", "error", err, "user_id", actorID)
		return nil, internal.NewInfrastructureError("failed to list submissions", err)
	}
	return FromDataModelSlice(models), nil
}

func (s *Service) UpdateContent(ctx context.Context, actorID, id string, dto UpdateSubmissionDTO) (*Submission, error) {
	dto.Normalize()
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	sub, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.require(ctx, actorID, permission.SubmissionsUpdateOwn, permission.WithOwner(sub.UserID)); err != nil {
		return nil, err
	}
	if !sub.Status.Editable() {
		return nil, internal.ErrCannotModifySubmission.WithDetails(map[string]interface{}{
			"current_status": sub.Status,
		})
	}

	if dto.Title != nil {
		sub.Title = *dto.Title
	}
	if dto.Description != nil {
		sub.Description = *dto.Description
	}

	if err := s.repo.UpdateContent(ctx, sub.ID, sub.Status, sub.Title, sub.Description); err != nil {
		return nil, s.storeError(ctx, "failed to update submission", err)
	}

	s.record(ctx, audit.DomainEvent{
		Action:     audit.ActionSubmissionUpdate,
		EntityType: audit.EntitySubmission,
		EntityID:   sub.ID,
		UserID:     actorID,
		Success:    true,
		Metadata: map[string]interface{}{
			"title_changed":       dto.Title != nil,
			"description_changed": dto.Description != nil,
		},
	})

	return s.load(ctx, sub.ID)
}

// ValidActions lists the actions the actor may fire on the submission right now.
func (s *Service) ValidActions(ctx context.Context, actorID, id string) (*ValidActionsResponse, error) {
	sub, err := s.Get(ctx, actorID, id)
	if err != nil {
		return nil, err
	}
	return &ValidActionsResponse{
		SubmissionID: sub.ID,
		Status:       sub.Status,
		ValidActions: s.machine.ValidActions(ctx, sub, actorID),
	}, nil
}

// Transition fires action on the submission. The decision is made by the Machine; the
// write is a compare-and-swap on the status that was read, so a concurrent transition
// makes this call fail with STATUS_CHANGED and write nothing.
func (s *Service) Transition(ctx context.Context, actorID, id string, dto TransitionDTO) (*TransitionResult, error) {
	if actorID == "" {
		return nil, internal.ErrUnauthenticated
	}

	sub, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := dto.Validate(); err != nil {
		return nil, err
	}
	action := NormalizeAction(dto.Action)

	outcome, err := s.machine.Apply(ctx, sub, actorID, string(action))
	if err != nil {
		s.recordFailedTransition(ctx, sub, actorID, action, dto.Metadata, err)
		return nil, err
	}
	if err := dto.requireComment(outcome.Action); err != nil {
		s.recordFailedTransition(ctx, sub, actorID, outcome.Action, dto.Metadata, err)
		return nil, err
	}

	now := time.Now()
	change := buildStatusChange(sub, outcome, actorID, dto.Comment, now)

	if err := s.repo.ApplyTransition(ctx, change); err != nil {
		storeErr := s.storeError(ctx, "failed to apply transition", err)
		s.recordFailedTransition(ctx, sub, actorID, action, dto.Metadata, storeErr)
		return nil, storeErr
	}

	metadata := map[string]interface{}{}
	for k, v := range dto.Metadata {
		metadata[k] = v
	}
	metadata["action"] = string(outcome.Action)
	metadata["from_status"] = string(outcome.From)
	metadata["to_status"] = string(outcome.To)
	if dto.Comment != "" {
		metadata["comment"] = dto.Comment
	}
	s.record(ctx, audit.DomainEvent{
		Action:     audit.ActionSubmissionTransition,
		EntityType: audit.EntitySubmission,
		EntityID:   sub.ID,
		UserID:     actorID,
		Success:    true,
		Metadata:   metadata,
	})

	if s.publisher != nil {
		event := events.NewSubmissionTransitionedEvent(sub.ID, string(outcome.Action), string(outcome.From), string(outcome.To),
			actorID, sub.UserID, sub.Title, sub.Description)
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish transition event", "error", err, "submission_id", sub.ID)
		}
	}
	obs.ObserveTransition(string(outcome.Action), "applied")

	s.logger.InfoContext(ctx, "submission transitioned",
		"submission_id", sub.ID,
		"action", outcome.Action,
		"from_status", outcome.From,
		"to_status", outcome.To,
		"actor_id", actorID)

	updated, err := s.load(ctx, sub.ID)
	if err != nil {
		return nil, err
	}
	return &TransitionResult{
		Submission:   updated,
		ValidActions: s.machine.ValidActions(ctx, updated, actorID),
	}, nil
}

func buildStatusChange(sub *Submission, outcome *Outcome, actorID, comment string, now time.Time) StatusChange {
	change := StatusChange{
		SubmissionID: sub.ID,
		From:         outcome.From,
		To:           outcome.To,
	}

	body := comment
	switch outcome.Action {
	case ActionApprove:
		change.ReviewerID, change.ReviewedAt = &actorID, &now
		if comment != "" {
			change.ApprovalComment = &comment
			body = "Approved: " + comment
		}
	case ActionReject:
		change.ReviewerID, change.ReviewedAt = &actorID, &now
		if comment != "" {
			change.RejectionReason = &comment
			body = "Rejected: " + comment
		}
	case ActionRequestInfo:
		change.ReviewerID, change.ReviewedAt = &actorID, &now
		change.NeedInfoQuestion = &comment
		body = "Need More Info: " + comment
	}

	if comment != "" {
		change.Comment = &submissionDatamodel.Comment{
			ID:           ids.New(),
			SubmissionID: sub.ID,
			UserID:       actorID,
			Body:         body,
			CreatedAt:    now,
		}
	}
	return change
}

func (s *Service) AddComment(ctx context.Context, actorID, id string, dto CommentDTO) (*Comment, error) {
	dto.Normalize()
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	sub, err := s.Get(ctx, actorID, id)
	if err != nil {
		return nil, err
	}

	model := &submissionDatamodel.Comment{
		ID:           ids.New(),
		SubmissionID: sub.ID,
		UserID:       actorID,
		Body:         dto.Body,
		CreatedAt:    time.Now(),
	}
	if err := s.repo.AddComment(ctx, model); err != nil {
		return nil, s.storeError(ctx, "failed to add comment", err)
	}

	s.record(ctx, audit.DomainEvent{
		Action:     audit.ActionCommentCreate,
		EntityType: audit.EntityComment,
		EntityID:   model.ID,
		UserID:     actorID,
		Success:    true,
		Metadata:   map[string]interface{}{"submission_id": sub.ID},
	})
	return CommentFromDataModel(model), nil
}

func (s *Service) ListComments(ctx context.Context, actorID, id string) ([]*Comment, error) {
	sub, err := s.Get(ctx, actorID, id)
	if err != nil {
		return nil, err
	}

	models, err := s.repo.ListComments(ctx, sub.ID)
	if err != nil {
		return nil, s.storeError(ctx, "failed to list comments", err)
	}
	comments := make([]*Comment, len(models))
	for i, m := range models {
		comments[i] = CommentFromDataModel(m)
	}
	return comments, nil
}

func (s *Service) load(ctx context.Context, id string) (*Submission, error) {
	if id == "" {
		return nil, internal.ErrSubmissionNotFound
	}
	model, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, internal.ErrSubmissionNotFound) {
			return nil, internal.ErrSubmissionNotFound
		}
		s.logger.ErrorContext(ctx, "failed to load submission", "error", err, "submission_id", id)
		return nil, internal.NewInfrastructureError("failed to load submission", err)
	}
	return FromDataModel(model), nil
}

func (s *Service) requireRead(ctx context.Context, actorID string, sub *Submission) error {
	if actorID == "" {
		return internal.ErrUnauthenticated
	}
	return s.require(ctx, actorID, permission.SubmissionsReadOwn, permission.WithOwner(sub.UserID))
}

func (s *Service) require(ctx context.Context, actorID, key string, opts ...permission.CheckOption) error {
	if actorID == "" {
		return internal.ErrUnauthenticated
	}
	ok, err := s.checker.CheckPermission(ctx, actorID, key, opts...)
	if err != nil {
		return err
	}
	if !ok {
		return internal.ErrPermissionDenied.WithDetails(map[string]interface{}{
			"required_permission": key,
		})
	}
	return nil
}

// storeError passes domain errors from the repository through and wraps the rest.
func (s *Service) storeError(ctx context.Context, msg string, err error) error {
	if _, ok := internal.IsAppError(err); ok {
		return err
	}
	s.logger.ErrorContext(ctx, msg, "error", err)
	return internal.NewInfrastructureError(msg, err)
}

func (s *Service) recordFailedTransition(ctx context.Context, sub *Submission, actorID string, action Action, extra map[string]interface{}, cause error) {
	code := string(internal.ErrCodeInternal)
	if appErr, ok := internal.IsAppError(cause); ok {
		code = string(appErr.Code)
	}
	obs.ObserveTransition(string(action), code)

	metadata := make(map[string]interface{}, len(extra)+3)
	for k, v := range extra {
		metadata[k] = v
	}
	metadata["action"] = string(action)
	metadata["from_status"] = string(sub.Status)
	metadata["error_code"] = code

	s.record(ctx, audit.DomainEvent{
		Action:     audit.ActionSubmissionTransition,
		EntityType: audit.EntitySubmission,
		EntityID:   sub.ID,
		UserID:     actorID,
		Success:    false,
		Metadata:   metadata,
	})
}

// record writes an audit entry; failures are logged and never fail the caller.
func (s *Service) record(ctx context.Context, event audit.DomainEvent) {
	if s.audit == nil {
		return
	}
	if err := s.audit.LogDomainEvent(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit write failed", "error", err, "action", event.Action, "entity_id", event.EntityID)
	}
}
