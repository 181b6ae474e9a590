package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/innovation-portal/internal"
	rbacDatamodel "github.com/frahmantamala/innovation-portal/internal/core/datamodel/rbac"
	userDatamodel "github.com/frahmantamala/innovation-portal/internal/core/datamodel/user"
	"github.com/frahmantamala/innovation-portal/internal/role"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RoleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) role.RepositoryAPI {
	return &RoleRepository{db: db}
}

func (r *RoleRepository) ListRoles(ctx context.Context) ([]*rbacDatamodel.Role, error) {
	var roles []*rbacDatamodel.Role
	err := r.db.WithContext(ctx).Order("name ASC").Find(&roles).Error
	return roles, err
}

func (r *RoleRepository) PermissionKeysByRole(ctx context.Context) (map[int64][]string, error) {
	var rows []struct {
		RoleID  int64
		PermKey string
	}
	err := r.db.WithContext(ctx).
		Table("role_permissions").
		Select("role_permissions.role_id AS role_id, permissions.key AS perm_key").
		Joins("JOIN permissions ON permissions.id = role_permissions.permission_id").
		Order("permissions.key ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[int64][]string)
	for _, row := range rows {
		out[row.RoleID] = append(out[row.RoleID], row.PermKey)
	}
	return out, nil
}

func (r *RoleRepository) GetByName(ctx context.Context, name string) (*rbacDatamodel.Role, error) {
	var found rbacDatamodel.Role
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&found).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrRoleNotFound
		}
		return nil, err
	}
	return &found, nil
}

func (r *RoleRepository) UserExists(ctx context.Context, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&userDatamodel.User{}).Where("id = ?", userID).Count(&count).Error
	return count > 0, err
}

func (r *RoleRepository) Grant(ctx context.Context, grant *rbacDatamodel.UserRole) (bool, error) {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(grant)
	return result.RowsAffected > 0, result.Error
}

func (r *RoleRepository) Revoke(ctx context.Context, userID string, roleID int64) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND role_id = ?", userID, roleID).
		Delete(&rbacDatamodel.UserRole{})
	return result.RowsAffected > 0, result.Error
}
