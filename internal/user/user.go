package user

import (
	"time"

	userDatamodel "github.com/frahmantamala/innovation-portal/internal/core/datamodel/user"
)

type User struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	Name             *string   `json:"name"`
	ProfileCompleted bool      `json:"profile_completed"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Profile is the current user as seen by the client: identity plus effective access.
type Profile struct {
	*User
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

func FromDataModel(u *userDatamodel.User) *User {
	return &User{
		ID:               u.ID,
		Email:            u.Email,
		Name:             u.Name,
		ProfileCompleted: u.ProfileCompleted,
		IsActive:         u.IsActive,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
}
