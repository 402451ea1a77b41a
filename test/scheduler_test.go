package test

import (
	"fedipress/logic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_RunsAndDeletesDueJobs(t *testing.T) {
	cfg := makeTestConfig(t)
	logger := newTestLogger(t)
	repo := makeTestRepo(t, cfg, logger)
	sch := logic.NewScheduler(logger, repo, newNopMetrics())
	defer sch.Shutdown()

	var gotPayload string
	runs := 0
	sch.RegisterHandler("test_job", func(payload string) error {
		gotPayload = payload
		runs += 1
		return nil
	})

	require.NoError(t, sch.Schedule("test_job", "hello", time.Now().UTC().Add(-time.Minute)))
	sch.RunDueJobs()
	assert.Equal(t, 1, runs)
	assert.Equal(t, "hello", gotPayload)

	// One-shot jobs don't come back
	sch.RunDueJobs()
	assert.Equal(t, 1, runs)
}

func TestScheduler_FutureJobsWait(t *testing.T) {
	cfg := makeTestConfig(t)
	logger := newTestLogger(t)
	repo := makeTestRepo(t, cfg, logger)
	sch := logic.NewScheduler(logger, repo, newNopMetrics())
	defer sch.Shutdown()

	runs := 0
	sch.RegisterHandler("test_job", func(string) error {
		runs += 1
		return nil
	})
	require.NoError(t, sch.Schedule("test_job", "", time.Now().UTC().Add(time.Hour)))
	sch.RunDueJobs()
	assert.Equal(t, 0, runs)
}

func TestScheduler_RecurringJobReEnqueued(t *testing.T) {
	cfg := makeTestConfig(t)
	logger := newTestLogger(t)
	repo := makeTestRepo(t, cfg, logger)
	sch := logic.NewScheduler(logger, repo, newNopMetrics())
	defer sch.Shutdown()

	runs := 0
	sch.RegisterHandler("recurring_job", func(string) error {
		runs += 1
		return nil
	})
	require.NoError(t, sch.EnsureRecurring("recurring_job", time.Hour))

	// Calling again must not enqueue a second copy
	require.NoError(t, sch.EnsureRecurring("recurring_job", time.Hour))
	due, err := repo.GetDueJobs(time.Now().UTC().Add(time.Hour*2), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, len(due))

	sch.RunDueJobs()
	assert.Equal(t, 1, runs)

	// Ran once, and the next run is back in the queue
	pending, err := repo.HasPendingJob("recurring_job")
	require.NoError(t, err)
	assert.True(t, pending)
	due, err = repo.GetDueJobs(time.Now().UTC(), 10)
	require.NoError(t, err)
	assert.Equal(t, 0, len(due))
}
