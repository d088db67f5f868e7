package jobs

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store is the job table. Status changes are conditional on the row still
// being in the state the writer expects.
type Store struct {
	DB *gorm.DB

	// Now defaults to time.Now in UTC.
	Now func() time.Time
}

func NewStore(db *gorm.DB) *Store {
	return &Store{DB: db}
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Insert creates a pending job and assigns its id.
func (s *Store) Insert(ctx context.Context, j *Job) error {
	if !j.Type.Known() {
		return errors.Wrapf(ErrUnknownJobType, "insert %q", j.Type)
	}
	now := s.now()
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	j.Status = StatusPending
	j.Progress = 0
	j.Result = nil
	j.ErrorMessage = nil
	if j.Metadata == nil {
		j.Metadata = JSONMap{}
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	j.UpdatedAt = j.CreatedAt
	if err := s.DB.WithContext(ctx).Create(j).Error; err != nil {
		return errors.Wrap(err, "insert job")
	}
	return nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	var j Job
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&j).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(ErrNotFound, "job %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get job %s", id)
	}
	return &j, nil
}

// ListByStatus returns jobs oldest first. limit <= 0 means no limit.
func (s *Store) ListByStatus(ctx context.Context, status Status, limit int) ([]Job, error) {
	q := s.DB.WithContext(ctx).Where("status = ?", status).Order("created_at asc").Order("id asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []Job
	if err := q.Find(&out).Error; err != nil {
		return nil, errors.Wrapf(err, "list %s jobs", status)
	}
	return out, nil
}

// ListStale returns running jobs whose updated_at is older than cutoff.
func (s *Store) ListStale(ctx context.Context, cutoff time.Time) ([]Job, error) {
	var out []Job
	err := s.DB.WithContext(ctx).
		Where("status = ? AND updated_at < ?", StatusRunning, cutoff).
		Order("updated_at asc").
		Find(&out).Error
	if err != nil {
		return nil, errors.Wrap(err, "list stale jobs")
	}
	return out, nil
}

// ListByOwner returns the newest jobs for one owner, optionally filtered by status.
func (s *Store) ListByOwner(ctx context.Context, ownerID uint64, status Status, limit int) ([]Job, error) {
	q := s.DB.WithContext(ctx).Where("owner_id = ?", ownerID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []Job
	if err := q.Order("created_at desc").Limit(limit).Find(&out).Error; err != nil {
		return nil, errors.Wrap(err, "list owner jobs")
	}
	return out, nil
}

// ConditionalUpdateStatus flips status from expected to next in one statement
// and reports whether a row was affected. extra fields are written in the same
// statement. A false result with a nil error means another writer got there first.
func (s *Store) ConditionalUpdateStatus(ctx context.Context, id string, expected, next Status, extra map[string]any) (bool, error) {
	return s.conditionalUpdate(ctx, id, expected, "", next, extra)
}

// Claim moves a pending job to running and records workerID as the lock owner.
func (s *Store) Claim(ctx context.Context, id, workerID string) (bool, error) {
	now := s.now()
	return s.ConditionalUpdateStatus(ctx, id, StatusPending, StatusRunning, map[string]any{
		"locked_by":  workerID,
		"locked_at":  now,
		"started_at": now,
	})
}

// Complete finishes a job still locked by workerID.
func (s *Store) Complete(ctx context.Context, id, workerID string, result JSONMap) (bool, error) {
	return s.conditionalUpdate(ctx, id, StatusRunning, workerID, StatusCompleted, map[string]any{
		"progress":    100,
		"result":      result,
		"finished_at": s.now(),
	})
}

// Fail finishes a job still locked by workerID with msg. Progress is left alone.
func (s *Store) Fail(ctx context.Context, id, workerID, msg string) (bool, error) {
	return s.conditionalUpdate(ctx, id, StatusRunning, workerID, StatusFailed, map[string]any{
		"error_message": msg,
		"finished_at":   s.now(),
	})
}

func (s *Store) conditionalUpdate(ctx context.Context, id string, expected Status, owner string, next Status, extra map[string]any) (bool, error) {
	if !CanTransition(expected, next) {
		return false, errors.Wrapf(ErrInvalidTransition, "%s -> %s", expected, next)
	}

	fields := map[string]any{}
	for k, v := range extra {
		fields[k] = v
	}
	fields["status"] = next
	fields["updated_at"] = s.now()

	q := s.DB.WithContext(ctx).Model(&Job{}).Where("id = ? AND status = ?", id, expected)
	if owner != "" {
		q = q.Where("locked_by = ?", owner)
	}
	res := q.Updates(fields)
	if res.Error != nil {
		return false, errors.Wrapf(res.Error, "update job %s to %s", id, next)
	}
	return res.RowsAffected == 1, nil
}

// Update writes fields unconditionally and bumps updated_at. Status changes
// must go through ConditionalUpdateStatus.
func (s *Store) Update(ctx context.Context, id string, fields map[string]any) error {
	if _, ok := fields["status"]; ok {
		return errors.Wrap(ErrInvalidTransition, "status cannot be set through Update")
	}
	f := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		f[k] = v
	}
	f["updated_at"] = s.now()
	if err := s.DB.WithContext(ctx).Model(&Job{}).Where("id = ?", id).Updates(f).Error; err != nil {
		return errors.Wrapf(err, "update job %s", id)
	}
	return nil
}

// UpdateLocked writes fields only while the job is running under workerID's
// lock, bumping updated_at. A false result means the lock is gone.
func (s *Store) UpdateLocked(ctx context.Context, id, workerID string, fields map[string]any) (bool, error) {
	if _, ok := fields["status"]; ok {
		return false, errors.Wrap(ErrInvalidTransition, "status cannot be set through UpdateLocked")
	}
	f := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		f[k] = v
	}
	f["updated_at"] = s.now()
	res := s.DB.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status = ? AND locked_by = ?", id, StatusRunning, workerID).
		Updates(f)
	if res.Error != nil {
		return false, errors.Wrapf(res.Error, "update job %s", id)
	}
	return res.RowsAffected == 1, nil
}

// ForceFail fails a running job that has not been touched since cutoff,
// regardless of lock owner. Used by the reaper.
func (s *Store) ForceFail(ctx context.Context, id string, cutoff time.Time, msg string) (bool, error) {
	now := s.now()
	res := s.DB.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status = ? AND updated_at < ?", id, StatusRunning, cutoff).
		Updates(map[string]any{
			"status":        StatusFailed,
			"error_message": msg,
			"finished_at":   now,
			"updated_at":    now,
		})
	if res.Error != nil {
		return false, errors.Wrapf(res.Error, "force fail job %s", id)
	}
	return res.RowsAffected == 1, nil
}
