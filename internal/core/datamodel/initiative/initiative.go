package initiative

import "time"

type Initiative struct {
	ID           string    `gorm:"primaryKey;type:varchar(26)"`
	SubmissionID string    `gorm:"column:submission_id;uniqueIndex;not null"`
	OwnerID      string    `gorm:"column:owner_id;index;not null"`
	Title        string    `gorm:"column:title;not null"`
	Description  string    `gorm:"column:description;not null"`
	Status       string    `gorm:"column:status;index;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Initiative) TableName() string {
	return "initiatives"
}
