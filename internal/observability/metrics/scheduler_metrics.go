package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	JobErrorDeadlineExceeded = "deadline_exceeded"
	JobErrorDB               = "db"
	JobErrorUnknown          = "unknown"
)

// SchedulerMetrics exposes background job health on /metrics.
type SchedulerMetrics struct {
	jobRuns        *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	jobErrors      *prometheus.CounterVec
	itemsGenerated *prometheus.CounterVec
}

var (
	schedulerOnce    sync.Once
	schedulerMetrics *SchedulerMetrics
)

// Scheduler returns the process-wide collectors, registered on first use.
func Scheduler() *SchedulerMetrics {
	schedulerOnce.Do(func() {
		schedulerMetrics = NewSchedulerMetrics(prometheus.DefaultRegisterer)
	})
	return schedulerMetrics
}

// NewSchedulerMetrics registers the collectors on registerer. Already
// registered collectors are reused.
func NewSchedulerMetrics(registerer prometheus.Registerer) *SchedulerMetrics {
	m := &SchedulerMetrics{
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fatura_scheduler_job_runs_total",
			Help: "Scheduler job executions.",
		}, []string{"job"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fatura_scheduler_job_duration_seconds",
			Help:    "Scheduler job duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		jobErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fatura_scheduler_job_errors_total",
			Help: "Scheduler job failures by error type.",
		}, []string{"job", "error_type"}),
		itemsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fatura_scheduler_items_generated_total",
			Help: "Occurrences generated from recurring templates.",
		}, []string{"job"}),
	}

	m.jobRuns = register(registerer, m.jobRuns)
	m.jobDuration = register(registerer, m.jobDuration)
	m.jobErrors = register(registerer, m.jobErrors)
	m.itemsGenerated = register(registerer, m.itemsGenerated)
	return m
}

func register[T prometheus.Collector](registerer prometheus.Registerer, collector T) T {
	if registerer == nil {
		return collector
	}
	if err := registerer.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return collector
}

func (m *SchedulerMetrics) IncJobRun(job string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

func (m *SchedulerMetrics) ObserveJobDuration(job string, duration time.Duration) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

func (m *SchedulerMetrics) IncJobError(job string, err error) {
	if m == nil || err == nil {
		return
	}
	m.jobErrors.WithLabelValues(job, ClassifyJobError(err)).Inc()
}

func (m *SchedulerMetrics) AddGenerated(job string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.itemsGenerated.WithLabelValues(job).Add(float64(count))
}

// ClassifyJobError maps a job failure to a bounded label value.
func ClassifyJobError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return JobErrorDeadlineExceeded
	case errors.Is(err, gorm.ErrInvalidTransaction),
		errors.Is(err, gorm.ErrInvalidDB),
		strings.Contains(strings.ToLower(err.Error()), "sql"):
		return JobErrorDB
	default:
		return JobErrorUnknown
	}
}
