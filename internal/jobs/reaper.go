package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultStaleThreshold = 30 * time.Minute

	// StaleMessage is written to jobs the reaper fails.
	StaleMessage = "reset after exceeding maximum running duration"
)

// Reaper fails jobs left running longer than Threshold. Because the single
// running row is the global lock, a crashed execution would otherwise block
// every future job.
type Reaper struct {
	Store     *Store
	Threshold time.Duration
	Log       *zap.SugaredLogger
	Metrics   *Metrics
}

// Reap runs one pass and returns how many jobs it failed. Jobs already
// failed, or touched again since the scan, are skipped.
func (r *Reaper) Reap(ctx context.Context) (int, error) {
	threshold := r.Threshold
	if threshold <= 0 {
		threshold = DefaultStaleThreshold
	}
	cutoff := r.Store.now().Add(-threshold)

	stale, err := r.Store.ListStale(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	log := logger(r.Log)
	reaped := 0
	for _, j := range stale {
		ok, err := r.Store.ForceFail(ctx, j.ID, cutoff, StaleMessage)
		if err != nil {
			log.Warnw("reaper update failed", "job_id", j.ID, "error", err)
			continue
		}
		if !ok {
			log.Debugw("reaper lost race", "job_id", j.ID)
			continue
		}
		reaped++
		r.Metrics.reaped()
		log.Warnw("reaped stale job",
			"job_id", j.ID,
			"job_type", j.Type,
			"locked_by", deref(j.LockedBy),
			"last_update", j.UpdatedAt,
		)
	}
	return reaped, nil
}

func logger(l *zap.SugaredLogger) *zap.SugaredLogger {
	if l == nil {
		return zap.NewNop().Sugar()
	}
	return l
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
