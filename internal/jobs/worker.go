package jobs

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

const (
	DefaultPollInterval = 5 * time.Second

	// DefaultMaxConcurrent is the single-flight policy: at most one job runs
	// across every scheduler instance sharing the store.
	DefaultMaxConcurrent = 1
)

// Worker is one scheduler instance. Instances coordinate only through the
// store; the running-count check is re-read every iteration.
type Worker struct {
	ID       string
	Store    *Store
	Reaper   *Reaper
	Registry *Registry
	Emitter  *Emitter
	Metrics  *Metrics
	Log      *zap.SugaredLogger

	PollInterval  time.Duration
	MaxConcurrent int

	running atomic.Bool
}

func (w *Worker) interval() time.Duration {
	if w.PollInterval <= 0 {
		return DefaultPollInterval
	}
	return w.PollInterval
}

func (w *Worker) maxConcurrent() int {
	if w.MaxConcurrent <= 0 {
		return DefaultMaxConcurrent
	}
	return w.MaxConcurrent
}

// Run loops until ctx is cancelled or Stop is called. An iteration already in
// progress is allowed to finish.
func (w *Worker) Run(ctx context.Context) {
	log := logger(w.Log).With("worker_id", w.ID)
	w.running.Store(true)
	log.Infow("scheduler started", "poll_interval", w.interval(), "max_concurrent", w.maxConcurrent())
	defer log.Infow("scheduler stopped")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if !w.running.Load() {
				return
			}
			if err := w.RunOnce(ctx); err != nil {
				log.Errorw("scheduler iteration failed", "error", err)
			}
			if !w.running.Load() {
				return
			}
			timer.Reset(w.interval())
		}
	}
}

// Stop prevents further iterations from being scheduled.
func (w *Worker) Stop() {
	w.running.Store(false)
}

// RunOnce performs a single iteration: reap, check the running limit, claim
// the oldest pending job, process it, record the outcome and notify. A panic
// anywhere is converted to an error.
func (w *Worker) RunOnce(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("panic in scheduler iteration: %v\n%s", r, debug.Stack())
		}
	}()

	log := logger(w.Log).With("worker_id", w.ID)

	if w.Reaper != nil {
		if _, rerr := w.Reaper.Reap(ctx); rerr != nil {
			log.Warnw("reaper pass failed", "error", rerr)
		}
	}

	limit := w.maxConcurrent()
	running, err := w.Store.ListByStatus(ctx, StatusRunning, limit)
	if err != nil {
		return err
	}
	if len(running) >= limit {
		w.Metrics.busy()
		log.Debugw("running limit reached", "running", len(running), "limit", limit)
		return nil
	}

	pending, err := w.Store.ListByStatus(ctx, StatusPending, 1)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}
	candidate := pending[0]

	ok, err := w.Store.Claim(ctx, candidate.ID, w.ID)
	if err != nil {
		return err
	}
	if !ok {
		w.Metrics.lostRace()
		log.Debugw("claim lost to another instance", "job_id", candidate.ID)
		return nil
	}

	// Stopping the scheduler must not abort work already claimed.
	owned := context.WithoutCancel(ctx)

	job, err := w.Store.GetByID(owned, candidate.ID)
	if err != nil || !job.OwnedBy(w.ID) {
		w.Metrics.lostRace()
		log.Debugw("claim not confirmed", "job_id", candidate.ID, "error", err)
		return nil
	}
	w.Metrics.claim()

	w.execute(owned, job, log.With("job_id", job.ID, "job_type", job.Type))
	return nil
}

func (w *Worker) execute(ctx context.Context, job *Job, log *zap.SugaredLogger) {
	proc, err := w.Registry.Lookup(job.Type)
	if err != nil {
		msg := fmt.Sprintf("unknown job type: %s", job.Type)
		applied, ferr := w.Store.Fail(ctx, job.ID, w.ID, msg)
		switch {
		case ferr != nil:
			log.Errorw("failed to mark unknown job type", "error", ferr)
		case !applied:
			w.Metrics.lockLost()
			log.Warnw("job lock lost before outcome was recorded", "error", ErrLockLost)
		default:
			w.Metrics.finished(job.Type, err, 0)
			log.Warnw("no processor registered")
		}
		return
	}

	log.Infow("job started", "target_id", job.TargetID)
	started := time.Now()
	result, runErr := w.process(ctx, proc, job)
	took := time.Since(started)

	var applied bool
	if runErr != nil {
		applied, err = w.Store.Fail(ctx, job.ID, w.ID, runErr.Error())
	} else {
		applied, err = w.Store.Complete(ctx, job.ID, w.ID, result)
	}
	if err != nil {
		log.Errorw("failed to record job outcome", "error", err, "run_error", runErr)
		return
	}
	if !applied {
		w.Metrics.lockLost()
		log.Warnw("job lock lost before outcome was recorded", "error", ErrLockLost, "run_error", runErr, "took", took)
		return
	}
	w.Metrics.finished(job.Type, runErr, took)
	if runErr != nil {
		log.Errorw("job failed", "error", runErr, "class", Classify(runErr), "took", took)
	} else {
		log.Infow("job completed", "took", took)
	}

	w.Emitter.Emit(ctx, job, result, runErr)
}

// process runs the processor, turning a panic into an ordinary failure.
func (w *Worker) process(ctx context.Context, proc Processor, job *Job) (result JSONMap, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = errors.Newf("processor panic: %v", r)
		}
	}()
	return proc.Process(ctx, job, NewProgress(w.Store, job))
}
