package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/frahmantamala/innovation-portal/internal"
	"github.com/frahmantamala/innovation-portal/internal/auth"
	rbacDatamodel "github.com/frahmantamala/innovation-portal/internal/core/datamodel/rbac"
	userDatamodel "github.com/frahmantamala/innovation-portal/internal/core/datamodel/user"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) auth.Repository {
	return &Repository{db: db}
}

func (r *Repository) FindUserByEmail(ctx context.Context, email string) (*userDatamodel.User, error) {
	var user userDatamodel.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *Repository) FindUserByID(ctx context.Context, id string) (*userDatamodel.User, error) {
	var user userDatamodel.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *Repository) CreateUser(ctx context.Context, user *userDatamodel.User, roleName string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		if roleName == "" {
			return nil
		}

		var role rbacDatamodel.Role
		err := tx.Where("name = ?", roleName).First(&role).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return tx.Create(&rbacDatamodel.UserRole{UserID: user.ID, RoleID: role.ID}).Error
	})
}

func (r *Repository) ReplaceOTP(ctx context.Context, token *userDatamodel.OTPToken) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("email = ?", token.Email).Delete(&userDatamodel.OTPToken{}).Error; err != nil {
			return err
		}
		return tx.Create(token).Error
	})
}

func (r *Repository) LatestOTP(ctx context.Context, email string) (*userDatamodel.OTPToken, error) {
	var token userDatamodel.OTPToken
	err := r.db.WithContext(ctx).
		Where("email = ?", email).
		Order("created_at DESC").
		Order("id DESC").
		First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *Repository) IncrementOTPAttempts(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Model(&userDatamodel.OTPToken{}).
		Where("id = ?", id).
		UpdateColumn("attempts", gorm.Expr("attempts + 1")).Error
}

func (r *Repository) DeleteOTP(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&userDatamodel.OTPToken{}, id).Error
}

func (r *Repository) DeleteExpiredOTPs(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("expires_at < ?", before).Delete(&userDatamodel.OTPToken{})
	return result.RowsAffected, result.Error
}

func (r *Repository) CreateSession(ctx context.Context, session *userDatamodel.Session) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *Repository) FindSession(ctx context.Context, id string) (*userDatamodel.Session, error) {
	var session userDatamodel.Session
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *Repository) DeleteSession(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&userDatamodel.Session{}).Error
}

func (r *Repository) DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("expires_at < ?", before).Delete(&userDatamodel.Session{})
	return result.RowsAffected, result.Error
}
