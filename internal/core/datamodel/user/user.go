package user

import "time"

type User struct {
	ID               string    `gorm:"primaryKey;type:varchar(36)"`
	Email            string    `gorm:"column:email;uniqueIndex;not null"`
	Name             *string   `gorm:"column:name"`
	ProfileCompleted bool      `gorm:"column:profile_completed;not null;default:false"`
	IsActive         bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}

type OTPToken struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	Email     string    `gorm:"column:email;index;not null"`
	CodeHash  string    `gorm:"column:code_hash;not null"`
	Attempts  int       `gorm:"column:attempts;not null;default:0"`
	ExpiresAt time.Time `gorm:"column:expires_at;index;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (OTPToken) TableName() string {
	return "otp_tokens"
}

type Session struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)"`
	UserID    string    `gorm:"column:user_id;index;not null"`
	ExpiresAt time.Time `gorm:"column:expires_at;index;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Session) TableName() string {
	return "sessions"
}
