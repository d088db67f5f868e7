package notify

import "time"

type Kind string

const (
	KindJobCompleted Kind = "job.completed"
	KindJobFailed    Kind = "job.failed"
)

// Message is what a collaborator delivers to a user.
type Message struct {
	Kind       Kind   `json:"kind"`
	UserID     uint64 `json:"user_id"`
	JobID      string `json:"job_id"`
	JobType    string `json:"job_type"`
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	TargetType string `json:"target_type"`
	TargetID   uint64 `json:"target_id"`
}

// Notification is the in-app copy of a Message.
type Notification struct {
	ID         uint64 `gorm:"primaryKey"`
	UserID     uint64 `gorm:"index;not null"`
	Kind       string `gorm:"type:text;not null"`
	JobID      string `gorm:"size:36;index"`
	JobType    string `gorm:"type:text"`
	Success    bool   `gorm:"not null;default:false"`
	Message    string `gorm:"type:text;not null;default:''"`
	TargetType string `gorm:"type:text"`
	TargetID   uint64 `gorm:"index"`
	ReadAt     *time.Time
	CreatedAt  time.Time `gorm:"index;not null"`
}
