package jobs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the scheduler's prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	claimed    prometheus.Counter
	lostRaces  prometheus.Counter
	skipped    prometheus.Counter
	completed  *prometheus.CounterVec
	failed     *prometheus.CounterVec
	reapedJobs prometheus.Counter
	lockLosses prometheus.Counter
	duration   *prometheus.HistogramVec
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		claimed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meetwork_jobs_claimed_total",
			Help: "Jobs moved from pending to running by this process.",
		}),
		lostRaces: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meetwork_jobs_claim_conflicts_total",
			Help: "Claims lost to another scheduler instance.",
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meetwork_scheduler_busy_iterations_total",
			Help: "Iterations skipped because the running limit was reached.",
		}),
		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meetwork_jobs_completed_total",
			Help: "Jobs completed, by type.",
		}, []string{"type"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meetwork_jobs_failed_total",
			Help: "Jobs failed, by type and error class.",
		}, []string{"type", "class"}),
		reapedJobs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meetwork_jobs_reaped_total",
			Help: "Stale running jobs failed by the reaper.",
		}),
		lockLosses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meetwork_jobs_lock_lost_total",
			Help: "Jobs whose outcome was dropped because the running lock was gone.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "meetwork_job_duration_seconds",
			Help:    "Processor run time, by type.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"type"}),
	}
	if reg != nil {
		reg.MustRegister(m.claimed, m.lostRaces, m.skipped, m.completed, m.failed, m.reapedJobs, m.lockLosses, m.duration)
	}
	return m
}

func (m *Metrics) claim() {
	if m != nil {
		m.claimed.Inc()
	}
}

func (m *Metrics) lostRace() {
	if m != nil {
		m.lostRaces.Inc()
	}
}

func (m *Metrics) busy() {
	if m != nil {
		m.skipped.Inc()
	}
}

func (m *Metrics) reaped() {
	if m != nil {
		m.reapedJobs.Inc()
	}
}

func (m *Metrics) lockLost() {
	if m != nil {
		m.lockLosses.Inc()
	}
}

func (m *Metrics) finished(t Type, err error, took time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(string(t)).Observe(took.Seconds())
	if err != nil {
		m.failed.WithLabelValues(string(t), Classify(err)).Inc()
		return
	}
	m.completed.WithLabelValues(string(t)).Inc()
}
