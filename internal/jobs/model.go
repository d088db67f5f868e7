package jobs

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
)

type Type string

const (
	TypeTranscription  Type = "transcription"
	TypeSummarization  Type = "summarization"
	TypeCardExtraction Type = "card_extraction"
)

// Known reports whether t is one of the job types this service accepts.
func (t Type) Known() bool {
	switch t {
	case TypeTranscription, TypeSummarization, TypeCardExtraction:
		return true
	}
	return false
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition enforces pending->running->{completed,failed}.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusRunning
	case StatusRunning:
		return to == StatusCompleted || to == StatusFailed
	default:
		return false
	}
}

// Metadata keys understood by the scheduler itself.
const MetaCurrentStep = "current_step"

// JSONMap is a jsonb-backed key/value bag used for metadata and results.
type JSONMap map[string]any

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, "marshal json map")
	}
	return string(b), nil
}

func (m *JSONMap) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.Newf("unsupported json map source %T", src)
	}
	if len(b) == 0 {
		*m = nil
		return nil
	}
	out := JSONMap{}
	if err := json.Unmarshal(b, &out); err != nil {
		return errors.Wrap(err, "unmarshal json map")
	}
	*m = out
	return nil
}

// String returns the value at key when it is a non-empty string.
func (m JSONMap) String(key string) string {
	s, _ := m[key].(string)
	return s
}

// Clone returns a shallow copy so callers can mutate without touching the original.
func (m JSONMap) Clone() JSONMap {
	out := make(JSONMap, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

type Job struct {
	ID     string `gorm:"primaryKey;size:36"`
	Type   Type   `gorm:"type:text;index;not null"`
	Status Status `gorm:"type:text;index;not null;default:'pending'"`

	TargetID uint64 `gorm:"index;not null"` // meeting id
	OwnerID  uint64 `gorm:"index;not null"`

	Progress int     `gorm:"not null;default:0"`
	Metadata JSONMap `gorm:"type:jsonb"`
	Result   JSONMap `gorm:"type:jsonb"`

	ErrorMessage *string `gorm:"type:text"`

	LockedBy   *string `gorm:"type:text"`
	LockedAt   *time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time

	CreatedAt time.Time `gorm:"index;not null"`
	UpdatedAt time.Time `gorm:"index;not null"`
}

// FailureMessage returns the failure message or "" when the job has none.
func (j *Job) FailureMessage() string {
	if j.ErrorMessage == nil {
		return ""
	}
	return *j.ErrorMessage
}

// OwnedBy reports whether workerID holds the running lock on j.
func (j *Job) OwnedBy(workerID string) bool {
	return j.Status == StatusRunning && j.LockedBy != nil && *j.LockedBy == workerID
}
