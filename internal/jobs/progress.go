package jobs

import (
	"context"

	"github.com/cockroachdb/errors"
)

// Progress writes progress and the current step label for the job the caller
// holds the running lock on. Values never go backwards within one execution.
type Progress struct {
	store    *Store
	jobID    string
	owner    string
	metadata JSONMap
	percent  int
}

func NewProgress(store *Store, job *Job) *Progress {
	return &Progress{
		store:    store,
		jobID:    job.ID,
		owner:    deref(job.LockedBy),
		metadata: job.Metadata.Clone(),
		percent:  job.Progress,
	}
}

// Report records percent (clamped to 0..100) and step. A lower percent than
// already reported keeps the previous value but still updates the step. Once
// the job is no longer running under this lock Report returns ErrLockLost and
// writes nothing.
func (p *Progress) Report(ctx context.Context, percent int, step string) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	if percent < p.percent {
		percent = p.percent
	}

	fields := map[string]any{"progress": percent}
	md := p.metadata
	if step != "" {
		md = p.metadata.Clone()
		md[MetaCurrentStep] = step
		fields["metadata"] = md
	}
	ok, err := p.store.UpdateLocked(ctx, p.jobID, p.owner, fields)
	if err != nil {
		return Persistence(err, "report progress")
	}
	if !ok {
		return errors.Wrapf(ErrLockLost, "report progress for job %s", p.jobID)
	}
	p.metadata = md
	p.percent = percent
	return nil
}

// Percent is the last value written.
func (p *Progress) Percent() int { return p.percent }
