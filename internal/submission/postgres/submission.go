package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/frahmantamala/innovation-portal/internal"
	submissionDatamodel "github.com/frahmantamala/innovation-portal/internal/core/datamodel/submission"
	"github.com/frahmantamala/innovation-portal/internal/submission"
	"gorm.io/gorm"
)

// SubmissionRepository implements submission.Repository using GORM
type SubmissionRepository struct {
	db *gorm.DB
}

func NewSubmissionRepository(db *gorm.DB) submission.Repository {
	return &SubmissionRepository{db: db}
}

func (r *SubmissionRepository) Create(ctx context.Context, s *submissionDatamodel.Submission) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *SubmissionRepository) GetByID(ctx context.Context, id string) (*submissionDatamodel.Submission, error) {
	var s submissionDatamodel.Submission
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrSubmissionNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *SubmissionRepository) List(ctx context.Context, filter submission.ListFilter) ([]*submissionDatamodel.Submission, error) {
	query := r.db.WithContext(ctx).Model(&submissionDatamodel.Submission{})
	if filter.OwnerID != "" {
		query = query.Where("user_id = ?", filter.OwnerID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}

	var submissions []*submissionDatamodel.Submission
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&submissions).Error
	return submissions, err
}

func (r *SubmissionRepository) UpdateContent(ctx context.Context, id string, expected submission.Status, title, description string) error {
	result := r.db.WithContext(ctx).
		Model(&submissionDatamodel.Submission{}).
		Where("id = ? AND status = ?", id, string(expected)).
		Updates(map[string]interface{}{
			"title":       title,
			"description": description,
			"updated_at":  time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return internal.ErrStatusChanged
	}
	return nil
}

// ApplyTransition writes the status change, review fields and optional comment in one
// transaction. The update only matches while the row still has change.From.
func (r *SubmissionRepository) ApplyTransition(ctx context.Context, change submission.StatusChange) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":     string(change.To),
			"updated_at": time.Now(),
		}
		if change.ReviewerID != nil {
			updates["reviewer_id"] = *change.ReviewerID
		}
		if change.ReviewedAt != nil {
			updates["reviewed_at"] = *change.ReviewedAt
		}
		if change.ApprovalComment != nil {
			updates["approval_comment"] = *change.ApprovalComment
		}
		if change.RejectionReason != nil {
			updates["rejection_reason"] = *change.RejectionReason
		}
		if change.NeedInfoQuestion != nil {
			updates["need_info_question"] = *change.NeedInfoQuestion
		}

		result := tx.Model(&submissionDatamodel.Submission{}).
			Where("id = ? AND status = ?", change.SubmissionID, string(change.From)).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return internal.ErrStatusChanged
		}

		if change.Comment != nil {
			if err := tx.Create(change.Comment).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *SubmissionRepository) AddComment(ctx context.Context, c *submissionDatamodel.Comment) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *SubmissionRepository) ListComments(ctx context.Context, submissionID string) ([]*submissionDatamodel.Comment, error) {
	var comments []*submissionDatamodel.Comment
	err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&comments).Error
	return comments, err
}
