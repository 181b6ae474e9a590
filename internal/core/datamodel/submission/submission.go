package submission

import "time"

type Submission struct {
	ID               string     `gorm:"primaryKey;type:varchar(26)"`
	UserID           string     `gorm:"column:user_id;index;not null"`
	Title            string     `gorm:"column:title;not null"`
	Description      string     `gorm:"column:description;not null"`
	Status           string     `gorm:"column:status;index;not null"`
	ApprovalComment  *string    `gorm:"column:approval_comment"`
	RejectionReason  *string    `gorm:"column:rejection_reason"`
	NeedInfoQuestion *string    `gorm:"column:need_info_question"`
	ReviewerID       *string    `gorm:"column:reviewer_id"`
	ReviewedAt       *time.Time `gorm:"column:reviewed_at"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Submission) TableName() string {
	return "submissions"
}

type Comment struct {
	ID           string    `gorm:"primaryKey;type:varchar(26)"`
	SubmissionID string    `gorm:"column:submission_id;index;not null"`
	UserID       string    `gorm:"column:user_id;not null"`
	Body         string    `gorm:"column:body;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Comment) TableName() string {
	return "submission_comments"
}
