// Package sched runs the refresh pipelines on their cron schedules.
package sched

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "cohortdash/internal/log"
)

// Job is one scheduled pipeline trigger.
type Job struct {
	Name string
	// Spec is a standard 5-field cron expression.
	Spec string
	Run  func(ctx context.Context) error
}

// Scheduler wraps a cron runner pinned to the display timezone.
type Scheduler struct {
	cron *cron.Cron
}

// New creates a scheduler in the given location.
func New(loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		cron: cron.New(cron.WithLocation(loc)),
	}
}

// Add registers a job. The job's context is the scheduler's run context.
func (s *Scheduler) Add(ctx context.Context, job Job) error {
	if job.Spec == "" {
		return fmt.Errorf("sched: empty cron spec for %q", job.Name)
	}

	_, err := s.cron.AddFunc(job.Spec, func() {
		appLog.Info("scheduled job starting", "job", job.Name)
		if err := job.Run(ctx); err != nil {
			appLog.Error("scheduled job failed", err, "job", job.Name)
			return
		}
		appLog.Info("scheduled job completed", "job", job.Name)
	})
	if err != nil {
		return fmt.Errorf("sched: add job %q: %w", job.Name, err)
	}
	return nil
}

// Start begins the scheduler and stops it when ctx is canceled.
func (s *Scheduler) Start(ctx context.Context) {
	s.cron.Start()
	go func() {
		<-ctx.Done()
		s.cron.Stop()
	}()
}
