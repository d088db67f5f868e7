package meeting

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("meeting not found")

type Repo struct {
	DB *gorm.DB
}

func (r *Repo) Get(ctx context.Context, id uint64) (*Meeting, error) {
	var m Meeting
	err := r.DB.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(ErrNotFound, "meeting %d", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get meeting %d", id)
	}
	return &m, nil
}

// SaveTranscript stores the transcript together with the recording it came from.
func (r *Repo) SaveTranscript(ctx context.Context, id uint64, rec Recording, transcript string) error {
	now := time.Now().UTC()
	return r.update(ctx, id, map[string]any{
		"recording_name":         rec.Name,
		"recording_content_type": rec.ContentType,
		"recording_path":         rec.Path,
		"transcript":             transcript,
		"transcribed_at":         now,
		"updated_at":             now,
	})
}

func (r *Repo) SaveSummary(ctx context.Context, id uint64, summary string) error {
	now := time.Now().UTC()
	return r.update(ctx, id, map[string]any{
		"summary":       summary,
		"summarized_at": now,
		"updated_at":    now,
	})
}

func (r *Repo) update(ctx context.Context, id uint64, fields map[string]any) error {
	res := r.DB.WithContext(ctx).Model(&Meeting{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "update meeting %d", id)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(ErrNotFound, "meeting %d", id)
	}
	return nil
}
