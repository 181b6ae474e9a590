package submission

import (
	"strings"

	"github.com/frahmantamala/innovation-portal/internal"
	"github.com/frahmantamala/innovation-portal/internal/core/common/validation"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// CreateSubmissionDTO represents the request payload for creating a submission
type CreateSubmissionDTO struct {
	Title       string `json:"title" validate:"required,min=5,max=200"`
	Description string `json:"description" validate:"required,min=10"`
}

func (dto *CreateSubmissionDTO) Normalize() {
	dto.Title = strings.TrimSpace(dto.Title)
	dto.Description = strings.TrimSpace(dto.Description)
}

func (dto CreateSubmissionDTO) Validate() error {
	if appErr := validation.Struct(dto); appErr != nil {
		return appErr
	}
	return nil
}

// UpdateSubmissionDTO carries a partial content update; nil fields are left untouched.
type UpdateSubmissionDTO struct {
	Title       *string `json:"title,omitempty" validate:"omitempty,min=5,max=200"`
	Description *string `json:"description,omitempty" validate:"omitempty,min=10"`
}

func (dto *UpdateSubmissionDTO) Normalize() {
	if dto.Title != nil {
		t := strings.TrimSpace(*dto.Title)
		dto.Title = &t
	}
	if dto.Description != nil {
		d := strings.TrimSpace(*dto.Description)
		dto.Description = &d
	}
}

func (dto UpdateSubmissionDTO) Validate() error {
	if dto.Title == nil && dto.Description == nil {
		return internal.NewValidationError("Nothing to update", internal.ErrCodeInvalidInput)
	}
	if appErr := validation.Struct(dto); appErr != nil {
		return appErr
	}
	return nil
}

type TransitionDTO struct {
	Action   string                 `json:"action" validate:"required"`
	Comment  string                 `json:"comment,omitempty" validate:"max=5000"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

func (dto TransitionDTO) Validate() error {
	if appErr := validation.Struct(dto); appErr != nil {
		return appErr
	}
	return nil
}

// requireComment enforces the comment rule of an already accepted action:
// request_info carries its question in the comment.
func (dto TransitionDTO) requireComment(action Action) error {
	if action == ActionRequestInfo && strings.TrimSpace(dto.Comment) == "" {
		return internal.NewValidationFieldError("comment", "comment is required to request more information", internal.ErrCodeCommentRequired)
	}
	return nil
}

type CommentDTO struct {
	Body string `json:"body" validate:"required,max=5000"`
}

func (dto *CommentDTO) Normalize() {
	dto.Body = strings.TrimSpace(dto.Body)
}

func (dto CommentDTO) Validate() error {
	if appErr := validation.Struct(dto); appErr != nil {
		return appErr
	}
	return nil
}

// ListFilter narrows a submission listing. OwnerID is set by the service, never by callers.
type ListFilter struct {
	Status  Status
	OwnerID string
	Limit   int
	Offset  int
}

func (f *ListFilter) Normalize() error {
	if f.Status != "" {
		f.Status = Status(strings.ToUpper(string(f.Status)))
		if !f.Status.IsValid() {
			return internal.NewValidationFieldError("status", "status is not a known submission status", internal.ErrCodeInvalidInput)
		}
	}
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return nil
}

type TransitionResult struct {
	Submission   *Submission `json:"submission"`
	ValidActions []string    `json:"valid_actions"`
}

type ValidActionsResponse struct {
	SubmissionID string   `json:"submission_id"`
	Status       Status   `json:"status"`
	ValidActions []string `json:"valid_actions"`
}

type ListResponse struct {
	Submissions []*Submission `json:"submissions"`
	Limit       int           `json:"limit"`
	Offset      int           `json:"offset"`
}
