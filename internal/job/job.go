// Package job provides the job framework for portalsync.
//
// Jobs are the schedulable units of work. The cron scheduler, the HTTP API
// and the CLI all dispatch through the same registry so a job behaves the
// same no matter what triggered it.
package job

import (
	"context"
	"time"
)

// Job defines the interface all portalsync jobs must implement.
type Job interface {
	// Name returns the job identifier (e.g., "sync")
	Name() string

	// Description returns human-readable description
	Description() string

	// Run executes the job with given options
	Run(ctx context.Context, opts RunOptions) Result
}

// RunOptions contains options passed to job execution.
type RunOptions struct {
	// ForceResync treats every fetched event as new, re-running enrichment
	// and announcements for records the store already knows.
	ForceResync bool
}

// Result contains the outcome of a job execution.
type Result struct {
	// Success indicates whether the job completed successfully
	Success bool

	// Message is a human-readable summary of what happened
	Message string

	// NewEvents is the number of events first seen by this execution
	NewEvents int

	// Started and Finished bound the execution
	Started  time.Time
	Finished time.Time
}
