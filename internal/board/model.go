package board

import (
	"database/sql/driver"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Tags is stored as a text[] on postgres and as the same array literal in a
// text column elsewhere.
type Tags []string

func (t Tags) Value() (driver.Value, error) {
	return pq.StringArray(t).Value()
}

func (t *Tags) Scan(src any) error {
	var a pq.StringArray
	if err := a.Scan(src); err != nil {
		return err
	}
	*t = Tags(a)
	return nil
}

func (Tags) GormDataType() string { return "text" }

func (Tags) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "text[]"
	}
	return "text"
}

// Board holds cards for a workspace. One board per workspace is the default.
type Board struct {
	ID          uint64    `gorm:"primaryKey"`
	WorkspaceID uint64    `gorm:"index;not null"`
	Name        string    `gorm:"type:text;not null"`
	IsDefault   bool      `gorm:"not null;default:false"`
	CreatedAt   time.Time `gorm:"not null"`
}

type Card struct {
	ID       uint64 `gorm:"primaryKey"`
	BoardID  uint64 `gorm:"index;not null"`
	Title    string `gorm:"type:text;not null"`
	Body     string `gorm:"type:text;not null;default:''"`
	Kind     string `gorm:"type:text;not null;default:'note'"`
	Tags     Tags
	Provider string `gorm:"type:text;not null;default:''"`
	Position int    `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"not null"`
}

// Source records where generated cards came from.
type Source struct {
	ID          uint64    `gorm:"primaryKey"`
	WorkspaceID uint64    `gorm:"index;not null"`
	Kind        string    `gorm:"type:text;not null"`
	MeetingID   uint64    `gorm:"index;not null"`
	Title       string    `gorm:"type:text;not null;default:''"`
	CreatedAt   time.Time `gorm:"not null"`
}

// CardSource links a card to its provenance source.
type CardSource struct {
	CardID   uint64 `gorm:"primaryKey"`
	SourceID uint64 `gorm:"primaryKey;index"`
}

const SourceKindMeeting = "meeting"

// Candidate is a card proposed by extraction, before it is persisted.
type Candidate struct {
	Title string   `json:"title"`
	Body  string   `json:"body"`
	Kind  string   `json:"kind,omitempty"`
	Tags  []string `json:"tags,omitempty"`
}
