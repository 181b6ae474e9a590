package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeSubmissionTransitioned = "submission.transitioned"
	EventTypeInitiativeCreated      = "initiative.created"
)

func newBaseEvent(eventType string, data map[string]any) BaseEvent {
	return BaseEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// SubmissionTransitionedEvent is published after a status change commits.
type SubmissionTransitionedEvent struct {
	BaseEvent
	SubmissionID string `json:"submission_id"`
	Action       string `json:"action"`
	FromStatus   string `json:"from_status"`
	ToStatus     string `json:"to_status"`
	ActorID      string `json:"actor_id"`
	OwnerID      string `json:"owner_id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
}

func NewSubmissionTransitionedEvent(submissionID, action, from, to, actorID, ownerID, title, description string) *SubmissionTransitionedEvent {
	return &SubmissionTransitionedEvent{
		BaseEvent: newBaseEvent(EventTypeSubmissionTransitioned, map[string]any{
			"submission_id": submissionID,
			"action":        action,
			"from_status":   from,
			"to_status":     to,
			"actor_id":      actorID,
			"owner_id":      ownerID,
		}),
		SubmissionID: submissionID,
		Action:       action,
		FromStatus:   from,
		ToStatus:     to,
		ActorID:      actorID,
		OwnerID:      ownerID,
		Title:        title,
		Description:  description,
	}
}

type InitiativeCreatedEvent struct {
	BaseEvent
	InitiativeID string `json:"initiative_id"`
	SubmissionID string `json:"submission_id"`
	OwnerID      string `json:"owner_id"`
}

func NewInitiativeCreatedEvent(initiativeID, submissionID, ownerID string) *InitiativeCreatedEvent {
	return &InitiativeCreatedEvent{
		BaseEvent: newBaseEvent(EventTypeInitiativeCreated, map[string]any{
			"initiative_id": initiativeID,
			"submission_id": submissionID,
			"owner_id":      ownerID,
		}),
		InitiativeID: initiativeID,
		SubmissionID: submissionID,
		OwnerID:      ownerID,
	}
}
