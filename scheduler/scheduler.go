package scheduler

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"polyradar/logging"
)

// Scheduler manages the background maintenance jobs: position sync,
// market refresh and periodic stats reporting.
type Scheduler struct {
	cron   *cron.Cron
	logger logging.LoggerInterface
}

// New creates a scheduler with second-resolution cron expressions.
func New(log logging.LoggerInterface) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		logger: log,
	}
}

// Register adds a named job on a cron spec.
func (s *Scheduler) Register(spec, name string, job func()) error {
	wrapped := func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("Job %s panicked: %v", name, r)
			}
		}()
		job()
	}
	if _, err := s.cron.AddFunc(spec, wrapped); err != nil {
		return fmt.Errorf("register job %s: %w", name, err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Scheduler stopped")
}
