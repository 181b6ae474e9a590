package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/frahmantamala/innovation-portal/internal"
	initiativeDatamodel "github.com/frahmantamala/innovation-portal/internal/core/datamodel/initiative"
	"github.com/frahmantamala/innovation-portal/internal/initiative"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InitiativeRepository struct {
	db *gorm.DB
}

func NewInitiativeRepository(db *gorm.DB) initiative.Repository {
	return &InitiativeRepository{db: db}
}

func (r *InitiativeRepository) CreateForSubmission(ctx context.Context, i *initiativeDatamodel.Initiative) (*initiativeDatamodel.Initiative, bool, error) {
	var (
		stored  initiativeDatamodel.Initiative
		created bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "submission_id"}},
			DoNothing: true,
		}).Create(i)
		if result.Error != nil {
			return result.Error
		}
		created = result.RowsAffected > 0
		return tx.Where("submission_id = ?", i.SubmissionID).First(&stored).Error
	})
	if err != nil {
		return nil, false, err
	}
	return &stored, created, nil
}

func (r *InitiativeRepository) GetByID(ctx context.Context, id string) (*initiativeDatamodel.Initiative, error) {
	var i initiativeDatamodel.Initiative
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&i).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrInitiativeNotFound
		}
		return nil, err
	}
	return &i, nil
}

func (r *InitiativeRepository) List(ctx context.Context, filter initiative.ListFilter) ([]*initiativeDatamodel.Initiative, error) {
	query := r.db.WithContext(ctx).Model(&initiativeDatamodel.Initiative{})
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}

	var rows []*initiativeDatamodel.Initiative
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&rows).Error
	return rows, err
}
