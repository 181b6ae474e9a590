package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	rbacDatamodel "github.com/frahmantamala/innovation-portal/internal/core/datamodel/rbac"
	userDatamodel "github.com/frahmantamala/innovation-portal/internal/core/datamodel/user"
	"github.com/frahmantamala/innovation-portal/internal/ids"
	"github.com/frahmantamala/innovation-portal/internal/permission"
	"github.com/frahmantamala/innovation-portal/pkg/logger"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultOwnerEmail = "owner@innovationportal.com"

var ownerEmail string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed permissions, roles and the owner account",
	Long:  `Seed the permission catalog, the built-in roles with their grants and an Owner user. Safe to run repeatedly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		configureLogging(cfg)

		db, err := initDB(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to init db: %w", err)
		}
		defer db.Close()

		gormDB, err := initGorm(db)
		if err != nil {
			return fmt.Errorf("failed to init gorm: %w", err)
		}

		if err := seedDatabase(cmd.Context(), gormDB, ownerEmail); err != nil {
			return err
		}
		logger.LoggerWrapper().Info("database seeded", "owner_email", ownerEmail)
		return nil
	},
}

type seedRole struct {
	Name        string
	Description string
	Permissions []string
}

// builtinRoles mirrors the grants new deployments start with. Owner receives the whole catalog.
var builtinRoles = []seedRole{
	{Name: "Owner", Description: "Full system access"},
	{Name: "Admin", Description: "Administrative access", Permissions: []string{
		permission.UsersManage,
		permission.RolesManage,
		permission.SubmissionsReadAll,
		permission.AuditRead,
		permission.InitiativesCreate,
		permission.SubmissionsArchive,
		permission.SubmissionsReview,
		permission.SubmissionsApprove,
		permission.SubmissionsReject,
	}},
	{Name: "Reviewer", Description: "Can review and approve submissions", Permissions: []string{
		permission.SubmissionsReadAll,
		permission.SubmissionsReview,
		permission.SubmissionsApprove,
		permission.SubmissionsReject,
		permission.InitiativesCreate,
	}},
	{Name: "Submitter", Description: "Can create and manage own submissions", Permissions: []string{
		permission.SubmissionsCreate,
		permission.SubmissionsReadOwn,
		permission.SubmissionsUpdateOwn,
	}},
	{Name: "Viewer", Description: "Read-only access", Permissions: []string{
		permission.SubmissionsReadAll,
	}},
}

func seedDatabase(ctx context.Context, db *gorm.DB, owner string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	owner = strings.ToLower(strings.TrimSpace(owner))
	if owner == "" {
		return fmt.Errorf("owner email is required")
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		permIDs := make(map[string]int64, len(permission.Catalog))
		for _, p := range permission.Catalog {
			row := rbacDatamodel.Permission{Key: p.Key, Description: p.Description}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
				return fmt.Errorf("seed permission %s: %w", p.Key, err)
			}
			var stored rbacDatamodel.Permission
			if err := tx.Where("key = ?", p.Key).First(&stored).Error; err != nil {
				return fmt.Errorf("load permission %s: %w", p.Key, err)
			}
			permIDs[p.Key] = stored.ID
		}

		roleIDs := make(map[string]int64, len(builtinRoles))
		for _, r := range builtinRoles {
			row := rbacDatamodel.Role{Name: r.Name, Description: r.Description}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
				return fmt.Errorf("seed role %s: %w", r.Name, err)
			}
			var stored rbacDatamodel.Role
			if err := tx.Where("name = ?", r.Name).First(&stored).Error; err != nil {
				return fmt.Errorf("load role %s: %w", r.Name, err)
			}
			roleIDs[r.Name] = stored.ID

			keys := r.Permissions
			if r.Name == "Owner" {
				keys = keys[:0:0]
				for _, p := range permission.Catalog {
					keys = append(keys, p.Key)
				}
			}
			for _, key := range keys {
				grant := rbacDatamodel.RolePermission{RoleID: stored.ID, PermissionID: permIDs[key]}
				if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&grant).Error; err != nil {
					return fmt.Errorf("grant %s to %s: %w", key, r.Name, err)
				}
			}
		}

		name := "System Owner"
		user := userDatamodel.User{
			ID:               ids.NewUUID(),
			Email:            owner,
			Name:             &name,
			ProfileCompleted: true,
			IsActive:         true,
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&user).Error; err != nil {
			return fmt.Errorf("seed owner user: %w", err)
		}
		var stored userDatamodel.User
		if err := tx.Where("email = ?", owner).First(&stored).Error; err != nil {
			return fmt.Errorf("load owner user: %w", err)
		}

		grant := rbacDatamodel.UserRole{UserID: stored.ID, RoleID: roleIDs["Owner"]}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&grant).Error; err != nil {
			return fmt.Errorf("grant owner role: %w", err)
		}
		return nil
	})
}

func init() {
	def := os.Getenv("OWNER_EMAIL")
	if def == "" {
		def = defaultOwnerEmail
	}
	seedCmd.Flags().StringVar(&ownerEmail, "owner-email", def, "email of the account granted the Owner role")
}
