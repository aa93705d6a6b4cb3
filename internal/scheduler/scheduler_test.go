package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"
	accountdomain "github.com/smallbiznis/fatura/internal/account/domain"
	"github.com/smallbiznis/fatura/internal/clock"
	obsmetrics "github.com/smallbiznis/fatura/internal/observability/metrics"
	recurringdomain "github.com/smallbiznis/fatura/internal/recurring/domain"
	"github.com/smallbiznis/fatura/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const userID = snowflake.ID(1001)

type stubRecurring struct {
	recurringdomain.Service
	generateDue func(ctx context.Context, today time.Time, batchSize int) (recurringdomain.DueSummary, error)
}

func (s *stubRecurring) GenerateDue(ctx context.Context, today time.Time, batchSize int) (recurringdomain.DueSummary, error) {
	return s.generateDue(ctx, today, batchSize)
}

func newTestScheduler(t *testing.T, recurring recurringdomain.Service, clk clock.Clock, cfg Config) (*Scheduler, *prometheus.Registry) {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	registry := prometheus.NewRegistry()
	sched, err := New(Params{
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     clk,
		Recurring: recurring,
		Config:    cfg,
		Metrics:   obsmetrics.NewSchedulerMetrics(registry),
	})
	require.NoError(t, err)
	return sched, registry
}

func counterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			if matchLabels(metric, labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matchLabels(metric *dto.Metric, labels map[string]string) bool {
	found := 0
	for _, pair := range metric.GetLabel() {
		if want, ok := labels[pair.GetName()]; ok {
			if want != pair.GetValue() {
				return false
			}
			found++
		}
	}
	return found == len(labels)
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{BatchSize: 7}.withDefaults()
	assert.Equal(t, time.Hour, cfg.RunInterval)
	assert.Equal(t, 7, cfg.BatchSize)
	assert.Equal(t, 5*time.Minute, cfg.JobTimeout)
}

func TestRunOnceGeneratesDueOccurrences(t *testing.T) {
	h := testutil.NewHarness(t, testutil.WithNow(time.Date(2024, time.March, 15, 9, 0, 0, 0, time.UTC)))
	ctx := context.Background()

	account, err := h.Accounts.CreateAccount(ctx, userID, accountdomain.CreateAccountRequest{Name: "Checking"})
	require.NoError(t, err)
	_, err = h.Recurring.CreateTransaction(ctx, userID, recurringdomain.CreateRecurringTransactionRequest{
		AccountID:   account.ID,
		Description: "Rent",
		Amount:      decimal.RequireFromString("1200.00"),
		StartDate:   time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	sched, registry := newTestScheduler(t, h.Recurring, h.Clock, Config{BatchSize: 10})
	require.NoError(t, sched.RunOnce(ctx))

	accountID := account.ID
	listed, err := h.Accounts.ListTransactions(ctx, userID, accountdomain.ListTransactionRequest{AccountID: &accountID})
	require.NoError(t, err)
	assert.Len(t, listed.Transactions, 3, "jan, feb and mar")

	job := map[string]string{"job": JobRecurringDue}
	assert.Equal(t, float64(1), counterValue(t, registry, "fatura_scheduler_job_runs_total", job))
	assert.Equal(t, float64(3), counterValue(t, registry, "fatura_scheduler_items_generated_total", job))

	// Nothing new until the clock reaches the next occurrence.
	require.NoError(t, sched.RunOnce(ctx))
	listed, err = h.Accounts.ListTransactions(ctx, userID, accountdomain.ListTransactionRequest{AccountID: &accountID})
	require.NoError(t, err)
	assert.Len(t, listed.Transactions, 3)

	h.Clock.Set(time.Date(2024, time.April, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, sched.RunOnce(ctx))
	listed, err = h.Accounts.ListTransactions(ctx, userID, accountdomain.ListTransactionRequest{AccountID: &accountID})
	require.NoError(t, err)
	assert.Len(t, listed.Transactions, 4)
}

func TestRunJobTimeoutIsSoft(t *testing.T) {
	recurring := &stubRecurring{
		generateDue: func(ctx context.Context, _ time.Time, _ int) (recurringdomain.DueSummary, error) {
			<-ctx.Done()
			return recurringdomain.DueSummary{}, ctx.Err()
		},
	}
	sched, registry := newTestScheduler(t, recurring, clock.NewFakeClock(time.Now()), Config{JobTimeout: 5 * time.Millisecond})

	require.NoError(t, sched.RunOnce(context.Background()))
	assert.Equal(t, float64(1), counterValue(t, registry, "fatura_scheduler_job_errors_total", map[string]string{
		"job":        JobRecurringDue,
		"error_type": obsmetrics.JobErrorDeadlineExceeded,
	}))
}

func TestRunJobWrapsFailures(t *testing.T) {
	boom := errors.New("boom")
	var gotBatch int
	recurring := &stubRecurring{
		generateDue: func(_ context.Context, _ time.Time, batchSize int) (recurringdomain.DueSummary, error) {
			gotBatch = batchSize
			return recurringdomain.DueSummary{Transactions: 1}, boom
		},
	}
	sched, registry := newTestScheduler(t, recurring, clock.NewFakeClock(time.Now()), Config{BatchSize: 25})

	err := sched.RunOnce(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), JobRecurringDue)
	assert.Equal(t, 25, gotBatch)
	assert.Equal(t, float64(1), counterValue(t, registry, "fatura_scheduler_items_generated_total", map[string]string{"job": JobRecurringDue}))
	assert.Equal(t, float64(1), counterValue(t, registry, "fatura_scheduler_job_errors_total", map[string]string{
		"job":        JobRecurringDue,
		"error_type": obsmetrics.JobErrorUnknown,
	}))
}

func TestRunForeverStopsOnCancel(t *testing.T) {
	calls := make(chan struct{}, 4)
	recurring := &stubRecurring{
		generateDue: func(context.Context, time.Time, int) (recurringdomain.DueSummary, error) {
			select {
			case calls <- struct{}{}:
			default:
			}
			return recurringdomain.DueSummary{}, nil
		},
	}
	sched, _ := newTestScheduler(t, recurring, clock.NewFakeClock(time.Now()), Config{RunInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.RunForever(ctx)
		close(done)
	}()

	select {
	case <-calls:
	case <-time.After(time.Second):
		t.Fatal("first run did not happen")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunForever did not return after cancel")
	}
}
