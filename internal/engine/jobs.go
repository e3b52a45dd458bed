package engine

import (
	"context"
	"fmt"
	"time"

	"portalsync/internal/job"
)

// SyncJob adapts Engine.Run to the job framework.
type SyncJob struct {
	engine *Engine
}

// NewSyncJob wraps the engine's sync pass as a registrable job.
func NewSyncJob(e *Engine) *SyncJob { return &SyncJob{engine: e} }

func (j *SyncJob) Name() string        { return "sync" }
func (j *SyncJob) Description() string { return "Pull portal events, enrich and announce new ones" }

func (j *SyncJob) Run(ctx context.Context, opts job.RunOptions) job.Result {
	started := time.Now()
	ok := j.engine.Run(ctx, opts.ForceResync)
	status := j.engine.Status()

	msg := fmt.Sprintf("sync finished, %d new events", status.NewEvents)
	if !ok {
		msg = "sync failed or was skipped"
	}
	return job.Result{
		Success:   ok,
		Message:   msg,
		NewEvents: status.NewEvents,
		Started:   started,
		Finished:  time.Now(),
	}
}

// ExpiryJob adapts Engine.CheckExpired to the job framework.
type ExpiryJob struct {
	engine *Engine
}

// NewExpiryJob wraps the engine's expiry pass as a registrable job.
func NewExpiryJob(e *Engine) *ExpiryJob { return &ExpiryJob{engine: e} }

func (j *ExpiryJob) Name() string        { return "expiry" }
func (j *ExpiryJob) Description() string { return "Flag and announce events whose window closed" }

func (j *ExpiryJob) Run(ctx context.Context, opts job.RunOptions) job.Result {
	started := time.Now()
	ok := j.engine.CheckExpired(ctx)

	msg := "expiry pass finished"
	if !ok {
		msg = "expiry pass failed or was skipped"
	}
	return job.Result{
		Success:  ok,
		Message:  msg,
		Started:  started,
		Finished: time.Now(),
	}
}

var (
	_ job.Job = (*SyncJob)(nil)
	_ job.Job = (*ExpiryJob)(nil)
)
