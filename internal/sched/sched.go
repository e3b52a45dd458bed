// Package sched drives registered jobs on cron schedules.
package sched

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"portalsync/internal/job"
)

// Scheduler wraps a cron runner over the job registry.
type Scheduler struct {
	cron     *cron.Cron
	registry *job.Registry
	log      zerolog.Logger
}

// New builds a stopped scheduler over the registry.
func New(registry *job.Registry, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		registry: registry,
		log:      log.With().Str("component", "sched").Logger(),
	}
}

// Add schedules the named job on the given cron expression.
func (s *Scheduler) Add(name, spec string) error {
	j := s.registry.Get(name)
	if j == nil {
		return fmt.Errorf("job not registered: %s", name)
	}

	_, err := s.cron.AddFunc(spec, func() {
		s.log.Info().Str("job", name).Msg("scheduled job starting")
		res := j.Run(context.Background(), job.RunOptions{})
		evt := s.log.Info()
		if !res.Success {
			evt = s.log.Error()
		}
		evt.Str("job", name).
			Bool("success", res.Success).
			Dur("took", res.Finished.Sub(res.Started)).
			Msg(res.Message)
	})
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}

	s.log.Info().Str("job", name).Str("cron", spec).Msg("job scheduled")
	return nil
}

// Start launches the cron runner in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("entries", len(s.cron.Entries())).Msg("scheduler running")
}

// Stop halts scheduling and returns a context that closes when the running
// jobs have finished.
func (s *Scheduler) Stop() context.Context {
	s.log.Info().Msg("scheduler stopping")
	return s.cron.Stop()
}

// Entries returns the number of active schedules.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
