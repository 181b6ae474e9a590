package submission

import (
	"time"

	submissionDatamodel "github.com/frahmantamala/innovation-portal/internal/core/datamodel/submission"
)

type Status string

const (
	StatusDraft       Status = "DRAFT"
	StatusSubmitted   Status = "SUBMITTED"
	StatusUnderReview Status = "UNDER_REVIEW"
	StatusNeedInfo    Status = "NEED_INFO"
	StatusApproved    Status = "APPROVED"
	StatusRejected    Status = "REJECTED"
	StatusConverted   Status = "CONVERTED"
	StatusArchived    Status = "ARCHIVED"
)

var AllStatuses = []Status{
	StatusDraft,
	StatusSubmitted,
	StatusUnderReview,
	StatusNeedInfo,
	StatusApproved,
	StatusRejected,
	StatusConverted,
	StatusArchived,
}

func (s Status) IsValid() bool {
	for _, st := range AllStatuses {
		if st == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	return s == StatusArchived
}

// Editable reports whether title and description may still change.
func (s Status) Editable() bool {
	return s == StatusDraft || s == StatusNeedInfo
}

type Submission struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Status           Status     `json:"status"`
	ApprovalComment  *string    `json:"approval_comment,omitempty"`
	RejectionReason  *string    `json:"rejection_reason,omitempty"`
	NeedInfoQuestion *string    `json:"need_info_question,omitempty"`
	ReviewerID       *string    `json:"reviewer_id,omitempty"`
	ReviewedAt       *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (s *Submission) IsOwnedBy(userID string) bool {
	return userID != "" && s.UserID == userID
}

type Comment struct {
	ID           string    `json:"id"`
	SubmissionID string    `json:"submission_id"`
	UserID       string    `json:"user_id"`
	Body         string    `json:"body"`
	CreatedAt    time.Time `json:"created_at"`
}

func NewSubmission(id, ownerID string, dto CreateSubmissionDTO) *Submission {
	now := time.Now()
	return &Submission{
		ID:          id,
		UserID:      ownerID,
		Title:       dto.Title,
		Description: dto.Description,
		Status:      StatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func ToDataModel(s *Submission) *submissionDatamodel.Submission {
	return &submissionDatamodel.Submission{
		ID:               s.ID,
		UserID:           s.UserID,
		Title:            s.Title,
		Description:      s.Description,
		Status:           string(s.Status),
		ApprovalComment:  s.ApprovalComment,
		RejectionReason:  s.RejectionReason,
		NeedInfoQuestion: s.NeedInfoQuestion,
		ReviewerID:       s.ReviewerID,
		ReviewedAt:       s.ReviewedAt,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
}

func FromDataModel(s *submissionDatamodel.Submission) *Submission {
	return &Submission{
		ID:               s.ID,
		UserID:           s.UserID,
		Title:            s.Title,
		Description:      s.Description,
		Status:           Status(s.Status),
		ApprovalComment:  s.ApprovalComment,
		RejectionReason:  s.RejectionReason,
		NeedInfoQuestion: s.NeedInfoQuestion,
		ReviewerID:       s.ReviewerID,
		ReviewedAt:       s.ReviewedAt,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
}

func FromDataModelSlice(submissions []*submissionDatamodel.Submission) []*Submission {
	result := make([]*Submission, len(submissions))
	for i, s := range submissions {
		result[i] = FromDataModel(s)
	}
	return result
}

func CommentFromDataModel(c *submissionDatamodel.Comment) *Comment {
	return &Comment{
		ID:           c.ID,
		SubmissionID: c.SubmissionID,
		UserID:       c.UserID,
		Body:         c.Body,
		CreatedAt:    c.CreatedAt,
	}
}
