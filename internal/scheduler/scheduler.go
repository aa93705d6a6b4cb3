package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fatura/internal/clock"
	obsmetrics "github.com/smallbiznis/fatura/internal/observability/metrics"
	"github.com/smallbiznis/fatura/internal/ratelimit"
	recurringdomain "github.com/smallbiznis/fatura/internal/recurring/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobRecurringDue = "recurring_due"

	lockPrefix = "scheduler:"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Recurring recurringdomain.Service
	Config    Config                      `optional:"true"`
	Metrics   *obsmetrics.SchedulerMetrics `optional:"true"`
	Locker    *ratelimit.Locker            `optional:"true"`
}

// Scheduler materializes due recurring occurrences on a fixed interval.
type Scheduler struct {
	log       *zap.Logger
	cfg       Config
	genID     *snowflake.Node
	clock     clock.Clock
	recurring recurringdomain.Service
	metrics   *obsmetrics.SchedulerMetrics
	locker    *ratelimit.Locker
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.Recurring == nil {
		return nil, ErrInvalidConfig
	}
	m := p.Metrics
	if m == nil {
		m = obsmetrics.Scheduler()
	}
	return &Scheduler{
		log:       p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:       p.Config.withDefaults(),
		genID:     p.GenID,
		clock:     p.Clock,
		recurring: p.Recurring,
		metrics:   m,
		locker:    p.Locker,
	}, nil
}

// runJob bounds fn by the job timeout and records the run. Running out of
// time is not a failure: the next tick resumes from the templates' cursors.
func (s *Scheduler) runJob(parent context.Context, name string, fn func(context.Context, *jobRun) error) error {
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	run := s.beginRun(ctx, name)
	s.metrics.IncJobRun(name)
	err := fn(ctx, run)
	s.metrics.ObserveJobDuration(name, run.elapsed())
	s.metrics.AddGenerated(name, run.generated)
	run.end(err)
	if err == nil {
		return nil
	}

	s.metrics.IncJobError(name, err)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		run.log.Warn("scheduler.job.timeout", zap.Duration("timeout", s.cfg.JobTimeout))
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce executes every job a single time. With a redis locker only one
// replica runs a given job per tick.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	return s.exclusive(ctx, JobRecurringDue, func(ctx context.Context) error {
		return s.runJob(ctx, JobRecurringDue, s.recurringDueJob)
	})
}

func (s *Scheduler) exclusive(ctx context.Context, job string, fn func(context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}
	lease, err := s.locker.Acquire(ctx, lockPrefix+job, s.cfg.JobTimeout)
	if err != nil {
		return fmt.Errorf("%s: lock: %w", job, err)
	}
	if lease == nil {
		s.log.Debug("scheduler.job.skipped", zap.String("job", job), zap.String("reason", "locked"))
		return nil
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn("scheduler lock release failed", zap.String("key", lease.Key()), zap.Error(err))
		}
	}()
	return fn(ctx)
}

func (s *Scheduler) recurringDueJob(ctx context.Context, run *jobRun) error {
	summary, err := s.recurring.GenerateDue(ctx, s.clock.Now(), s.cfg.BatchSize)
	run.addGenerated(summary.Transactions + summary.CardPurchases)
	if summary.Transactions+summary.CardPurchases > 0 {
		run.log.Info("scheduler.recurring.generated",
			zap.Int("transactions", summary.Transactions),
			zap.Int("card_purchases", summary.CardPurchases),
		)
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
