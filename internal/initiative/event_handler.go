package initiative

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/innovation-portal/internal/core/events"
)

const convertedStatus = "CONVERTED"

type EventHandler struct {
	service *Service
	logger  *slog.Logger
}

func NewEventHandler(service *Service, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		service: service,
		logger:  logger,
	}
}

func (h *EventHandler) HandleSubmissionTransitioned(ctx context.Context, event events.Event) error {
	transitioned, ok := event.(*events.SubmissionTransitionedEvent)
	if !ok {
		h.logger.Error("invalid event type for submission transitioned handler", "event_type", event.EventType())
		return fmt.Errorf("expected SubmissionTransitionedEvent, got %T", event)
	}

	if transitioned.ToStatus != convertedStatus {
		return nil
	}

	h.logger.Info("handling submission conversion",
		"submission_id", transitioned.SubmissionID,
		"actor_id", transitioned.ActorID,
		"event_id", transitioned.EventID())

	_, _, err := h.service.CreateFromSubmission(ctx, Conversion{
		SubmissionID: transitioned.SubmissionID,
		ActorID:      transitioned.ActorID,
		Title:        transitioned.Title,
		Description:  transitioned.Description,
	})
	if err != nil {
		return fmt.Errorf("initiative creation failed for submission %s: %w", transitioned.SubmissionID, err)
	}
	return nil
}

func (h *EventHandler) RegisterEventHandlers(eventBus *events.EventBus) {
	eventBus.Subscribe(events.EventTypeSubmissionTransitioned, h.HandleSubmissionTransitioned)

	h.logger.Info("initiative event handlers registered",
		"handlers", []string{events.EventTypeSubmissionTransitioned})
}
