package initiative

import (
	"time"

	initiativeDatamodel "github.com/frahmantamala/innovation-portal/internal/core/datamodel/initiative"
)

type Status string

const (
	StatusPlanned    Status = "PLANNED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusOnHold     Status = "ON_HOLD"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPlanned, StatusInProgress, StatusOnHold, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type Initiative struct {
	ID           string    `json:"id"`
	SubmissionID string    `json:"submission_id"`
	OwnerID      string    `json:"owner_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func FromDataModel(i *initiativeDatamodel.Initiative) *Initiative {
	return &Initiative{
		ID:           i.ID,
		SubmissionID: i.SubmissionID,
		OwnerID:      i.OwnerID,
		Title:        i.Title,
		Description:  i.Description,
		Status:       Status(i.Status),
		CreatedAt:    i.CreatedAt,
		UpdatedAt:    i.UpdatedAt,
	}
}

// Conversion carries what a converted submission contributes to its initiative.
type Conversion struct {
	SubmissionID string
	ActorID      string
	Title        string
	Description  string
}
