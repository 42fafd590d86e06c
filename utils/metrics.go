package utils

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StreakMetrics groups the collectors exported by the streak subsystem,
// the scheduler and the rate limiter.
type StreakMetrics struct {
	contributions *prometheus.CounterVec
	resets        prometheus.Counter
	badges        *prometheus.CounterVec
	jobRuns       *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
	throttled     *prometheus.CounterVec
}

var (
	streakMetricsOnce sync.Once
	streakRegistry    *StreakMetrics
)

// Metrics returns the lazily-initialised registry shared by services and the scheduler.
func Metrics() *StreakMetrics {
	streakMetricsOnce.Do(func() {
		streakRegistry = &StreakMetrics{
			contributions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "blogstreak",
				Subsystem: "streak",
				Name:      "contributions_total",
				Help:      "Ledger counter mutations segmented by activity and direction.",
			}, []string{"activity", "op"}),
			resets: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "blogstreak",
				Subsystem: "streak",
				Name:      "resets_total",
				Help:      "Users whose current streak was reset for inactivity.",
			}),
			badges: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "blogstreak",
				Subsystem: "streak",
				Name:      "badges_granted_total",
				Help:      "Badges granted by badge id.",
			}, []string{"badge"}),
			jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "blogstreak",
				Subsystem: "scheduler",
				Name:      "job_runs_total",
				Help:      "Scheduled job executions by job and outcome.",
			}, []string{"job", "outcome"}),
			jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "blogstreak",
				Subsystem: "scheduler",
				Name:      "job_duration_seconds",
				Help:      "Wall time of scheduled job executions.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"job"}),
			throttled: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "blogstreak",
				Subsystem: "http",
				Name:      "throttled_requests_total",
				Help:      "Requests rejected by the per-IP rate limiter, by scope.",
			}, []string{"scope"}),
		}
		prometheus.MustRegister(
			streakRegistry.contributions,
			streakRegistry.resets,
			streakRegistry.badges,
			streakRegistry.jobRuns,
			streakRegistry.jobDuration,
			streakRegistry.throttled,
		)
	})
	return streakRegistry
}

func (m *StreakMetrics) ObserveContribution(activity, op string) {
	if m == nil {
		return
	}
	m.contributions.WithLabelValues(activity, op).Inc()
}

func (m *StreakMetrics) ObserveResets(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.resets.Add(float64(n))
}

func (m *StreakMetrics) ObserveBadge(badgeID string) {
	if m == nil {
		return
	}
	m.badges.WithLabelValues(badgeID).Inc()
}

// ObserveJob records one scheduler run. outcome is "ok" or "error".
func (m *StreakMetrics) ObserveJob(job, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job, outcome).Inc()
	m.jobDuration.WithLabelValues(job).Observe(took.Seconds())
}

func (m *StreakMetrics) ObserveThrottled(scope string) {
	if m == nil {
		return
	}
	m.throttled.WithLabelValues(scope).Inc()
}
