package meeting

import "time"

// Workspace owns meetings and boards.
type Workspace struct {
	ID             uint64 `gorm:"primaryKey"`
	OwnerID        uint64 `gorm:"index;not null"`
	Name           string `gorm:"type:text;not null;default:''"`
	LastActivityAt *time.Time
	CreatedAt      time.Time `gorm:"not null"`
}

// Meeting is the target record of every job.
type Meeting struct {
	ID          uint64 `gorm:"primaryKey"`
	WorkspaceID uint64 `gorm:"index;not null"`
	OwnerID     uint64 `gorm:"index;not null"`
	Title       string `gorm:"type:text;not null;default:''"`

	// Uploaded recording descriptor, mirrored from the job metadata on transcription.
	RecordingName        string `gorm:"type:text;not null;default:''"`
	RecordingContentType string `gorm:"type:text;not null;default:''"`
	RecordingPath        string `gorm:"type:text;not null;default:''"`

	Transcript string `gorm:"type:text;not null;default:''"`
	Summary    string `gorm:"type:text;not null;default:''"`

	TranscribedAt *time.Time
	SummarizedAt  *time.Time

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"index;not null"`
}

// Recording describes the uploaded audio/video artifact of a meeting.
type Recording struct {
	Name        string
	ContentType string
	Path        string
}
