package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/recommendation-performance/internal/models"
	"github.com/trogers1052/recommendation-performance/internal/performance"
)

type MockEvaluator struct {
	calls    atomic.Int32
	lastUser atomic.Value
	result   *models.EvaluationRunResult
	err      error
	deadline bool
}

func (m *MockEvaluator) RunEvaluation(ctx context.Context, userID string) (*models.EvaluationRunResult, error) {
	m.calls.Add(1)
	m.lastUser.Store(userID)
	_, m.deadline = ctx.Deadline()
	return m.result, m.err
}

type countingJob struct {
	runs atomic.Int32
}

func (j *countingJob) Run() error {
	j.runs.Add(1)
	return nil
}

func (j *countingJob) Name() string { return "counting" }

func TestEvaluationJob_Run(t *testing.T) {
	t.Run("Runs for all users", func(t *testing.T) {
		ev := &MockEvaluator{result: &models.EvaluationRunResult{Success: true}}
		job := NewEvaluationJob(ev, time.Minute, zerolog.Nop())

		require.NoError(t, job.Run())
		assert.Equal(t, int32(1), ev.calls.Load())
		assert.Equal(t, performance.AllUsers, ev.lastUser.Load())
		assert.True(t, ev.deadline)
	})

	t.Run("No timeout leaves the context open", func(t *testing.T) {
		ev := &MockEvaluator{result: &models.EvaluationRunResult{Success: true}}
		require.NoError(t, NewEvaluationJob(ev, 0, zerolog.Nop()).Run())
		assert.False(t, ev.deadline)
	})

	t.Run("Disabled tracking is skipped", func(t *testing.T) {
		ev := &MockEvaluator{err: performance.ErrDisabled}
		assert.NoError(t, NewEvaluationJob(ev, time.Minute, zerolog.Nop()).Run())
	})

	t.Run("Run errors are reported", func(t *testing.T) {
		ev := &MockEvaluator{result: &models.EvaluationRunResult{Errors: 2}}
		err := NewEvaluationJob(ev, time.Minute, zerolog.Nop()).Run()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "2 errors")
	})

	t.Run("Service errors are wrapped", func(t *testing.T) {
		cause := errors.New("context deadline exceeded")
		ev := &MockEvaluator{err: cause}
		err := NewEvaluationJob(ev, time.Minute, zerolog.Nop()).Run()
		assert.ErrorIs(t, err, cause)
	})
}

func TestScheduler_AddJob(t *testing.T) {
	s := New(zerolog.Nop())

	require.NoError(t, s.AddJob("0 */6 * * *", &countingJob{}))
	require.NoError(t, s.AddJob("@every 1h", &countingJob{}))
	assert.Equal(t, 2, s.Entries())

	assert.Error(t, s.AddJob("not a schedule", &countingJob{}))
	assert.Error(t, s.AddJob("0 0 */6 * * *", &countingJob{}), "six field schedules are rejected")
	assert.Equal(t, 2, s.Entries())
}

func TestScheduler_RunsJobs(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{}
	require.NoError(t, s.AddJob("@every 1s", job))

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool { return job.runs.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
}

func TestScheduler_RunNow(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{}

	require.NoError(t, s.RunNow(job))
	assert.Equal(t, int32(1), job.runs.Load())
}
