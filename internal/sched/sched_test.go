package sched

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portalsync/internal/job"
)

type countingJob struct {
	name string
	runs atomic.Int32
}

func (j *countingJob) Name() string        { return j.name }
func (j *countingJob) Description() string { return "counts runs" }
func (j *countingJob) Run(ctx context.Context, opts job.RunOptions) job.Result {
	j.runs.Add(1)
	return job.Result{Success: true, Started: time.Now(), Finished: time.Now()}
}

func TestAddUnknownJobFails(t *testing.T) {
	s := New(job.NewRegistry(), zerolog.Nop())
	assert.Error(t, s.Add("sync", "* * * * *"))
}

func TestAddInvalidCronExpressionFails(t *testing.T) {
	r := job.NewRegistry()
	r.Register(&countingJob{name: "sync"})

	s := New(r, zerolog.Nop())
	assert.Error(t, s.Add("sync", "not a cron spec"))
	assert.Zero(t, s.Entries())
}

func TestScheduledJobRuns(t *testing.T) {
	r := job.NewRegistry()
	j := &countingJob{name: "sync"}
	r.Register(j)

	s := New(r, zerolog.Nop())
	// @every accepts sub-minute intervals, keeping the test fast.
	require.NoError(t, s.Add("sync", "@every 10ms"))
	require.Equal(t, 1, s.Entries())

	s.Start()
	defer s.Stop()

	deadline := time.After(3 * time.Second)
	for j.runs.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("scheduled job never ran")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestStopWaitsForRunningJobs(t *testing.T) {
	r := job.NewRegistry()
	r.Register(&countingJob{name: "expiry"})

	s := New(r, zerolog.Nop())
	require.NoError(t, s.Add("expiry", "@every 10ms"))
	s.Start()

	ctx := s.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("scheduler did not drain after Stop")
	}
}
