package initiative

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/innovation-portal/internal"
	"github.com/frahmantamala/innovation-portal/internal/audit"
	initiativeDatamodel "github.com/frahmantamala/innovation-portal/internal/core/datamodel/initiative"
	"github.com/frahmantamala/innovation-portal/internal/core/events"
	"github.com/frahmantamala/innovation-portal/internal/ids"
)

type Repository interface {
	// CreateForSubmission inserts i unless the submission already has an initiative,
	// in which case the existing row is returned with created=false.
	CreateForSubmission(ctx context.Context, i *initiativeDatamodel.Initiative) (existing *initiativeDatamodel.Initiative, created bool, err error)
	GetByID(ctx context.Context, id string) (*initiativeDatamodel.Initiative, error)
	List(ctx context.Context, filter ListFilter) ([]*initiativeDatamodel.Initiative, error)
}

type AuditRecorder interface {
	LogDomainEvent(ctx context.Context, event audit.DomainEvent) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type Service struct {
	repo      Repository
	recorder  AuditRecorder
	publisher EventPublisher
	logger    *slog.Logger
}

func NewService(repo Repository, recorder AuditRecorder, publisher EventPublisher, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		recorder:  recorder,
		publisher: publisher,
		logger:    logger,
	}
}

// CreateFromSubmission creates the PLANNED initiative of a converted submission.
// Repeated conversions of the same submission return the first initiative.
func (s *Service) CreateFromSubmission(ctx context.Context, c Conversion) (*Initiative, bool, error) {
	row := &initiativeDatamodel.Initiative{
		ID:           ids.New(),
		SubmissionID: c.SubmissionID,
		OwnerID:      c.ActorID,
		Title:        c.Title,
		Description:  c.Description,
		Status:       string(StatusPlanned),
	}

	stored, created, err := s.repo.CreateForSubmission(ctx, row)
	if err != nil {
		return nil, false, internal.NewInfrastructureError("failed to create initiative", err)
	}
	if !created {
		s.logger.InfoContext(ctx, "initiative already exists for submission", "submission_id", c.SubmissionID, "initiative_id", stored.ID)
		return FromDataModel(stored), false, nil
	}

	if err := s.recorder.LogDomainEvent(ctx, audit.DomainEvent{
		Action:     audit.ActionInitiativeCreate,
		EntityType: audit.EntityInitiative,
		EntityID:   stored.ID,
		UserID:     c.ActorID,
		Success:    true,
		Metadata:   map[string]interface{}{"submission_id": c.SubmissionID},
	}); err != nil {
		s.logger.ErrorContext(ctx, "failed to audit initiative creation", "error", err, "initiative_id", stored.ID)
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, events.NewInitiativeCreatedEvent(stored.ID, c.SubmissionID, c.ActorID)); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish initiative created event", "error", err, "initiative_id", stored.ID)
		}
	}

	s.logger.InfoContext(ctx, "initiative created", "initiative_id", stored.ID, "submission_id", c.SubmissionID)
	return FromDataModel(stored), true, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Initiative, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if _, ok := internal.IsAppError(err); ok {
			return nil, err
		}
		return nil, internal.NewInfrastructureError("failed to load initiative", err)
	}
	return FromDataModel(row), nil
}

func (s *Service) List(ctx context.Context, filter ListFilter) (*ListResponse, error) {
	if err := filter.Normalize(); err != nil {
		return nil, err
	}

	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, internal.NewInfrastructureError("failed to list initiatives", err)
	}

	out := make([]*Initiative, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromDataModel(row))
	}
	return &ListResponse{Initiatives: out, Limit: filter.Limit, Offset: filter.Offset}, nil
}
