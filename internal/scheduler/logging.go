package scheduler

import (
	"context"
	"time"

	obslogger "github.com/smallbiznis/fatura/internal/observability/logger"
	"go.uber.org/zap"
)

// jobRun follows one execution of a job from start to finish.
type jobRun struct {
	log       *zap.Logger
	id        string
	started   time.Time
	generated int
}

func (s *Scheduler) beginRun(ctx context.Context, job string) *jobRun {
	run := &jobRun{
		id:      s.genID.Generate().String(),
		started: time.Now(),
	}
	run.log = obslogger.WithContext(ctx, s.log).With(
		zap.String("job", job),
		zap.String("run_id", run.id),
	)
	run.log.Info("scheduler.job.start", zap.Int("batch_size", s.cfg.BatchSize))
	return run
}

func (r *jobRun) addGenerated(n int) {
	if n > 0 {
		r.generated += n
	}
}

func (r *jobRun) elapsed() time.Duration {
	return time.Since(r.started)
}

// end logs the outcome. Timeouts are reported by the caller.
func (r *jobRun) end(err error) {
	fields := []zap.Field{
		zap.Int64("duration_ms", r.elapsed().Milliseconds()),
		zap.Int("generated", r.generated),
	}
	if err != nil {
		r.log.Warn("scheduler.job.finish", append(fields, zap.Error(err))...)
		return
	}
	r.log.Info("scheduler.job.finish", fields...)
}
