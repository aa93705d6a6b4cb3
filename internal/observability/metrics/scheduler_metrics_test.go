package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestClassifyJobError(t *testing.T) {
	assert.Equal(t, "", ClassifyJobError(nil))
	assert.Equal(t, JobErrorDeadlineExceeded, ClassifyJobError(fmt.Errorf("job: %w", context.DeadlineExceeded)))
	assert.Equal(t, JobErrorDB, ClassifyJobError(gorm.ErrInvalidTransaction))
	assert.Equal(t, JobErrorUnknown, ClassifyJobError(errors.New("boom")))
}

func TestSchedulerMetricsCounts(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewSchedulerMetrics(registry)

	m.IncJobRun("recurring_transactions")
	m.IncJobRun("recurring_transactions")
	m.AddGenerated("recurring_transactions", 3)
	m.AddGenerated("recurring_transactions", 0)
	m.IncJobError("recurring_transactions", errors.New("boom"))
	m.ObserveJobDuration("recurring_transactions", time.Second)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.jobRuns.WithLabelValues("recurring_transactions")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.itemsGenerated.WithLabelValues("recurring_transactions")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.jobErrors.WithLabelValues("recurring_transactions", JobErrorUnknown)))

	again := NewSchedulerMetrics(registry)
	again.IncJobRun("recurring_transactions")
	assert.Equal(t, float64(3), testutil.ToFloat64(m.jobRuns.WithLabelValues("recurring_transactions")))
}
