package export

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler runs unattended full exports on a cron schedule.
type Scheduler struct {
	cron     *cron.Cron
	orch     *Orchestrator
	schedule string
	logger   *slog.Logger
}

// NewScheduler creates a scheduler for the given cron expression. An empty
// expression disables scheduling.
func NewScheduler(orch *Orchestrator, schedule string, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		orch:     orch,
		schedule: schedule,
		logger:   logger,
	}
}

// Start registers the export job and starts the cron scheduler.
func (s *Scheduler) Start() error {
	if s.schedule == "" {
		s.logger.Info("export scheduler disabled, no schedule configured")
		return nil
	}

	_, err := s.cron.AddFunc(s.schedule, func() {
		ctx := context.Background()
		id, runErr := s.orch.ExportAll(ctx, false)
		if runErr != nil {
			s.logger.Warn("scheduled export failed", "session", id, "error", runErr)
			return
		}
		s.logger.Info("scheduled export finished", "session", id)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("export scheduler started", "schedule", s.schedule)
	return nil
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info("export scheduler stopped")
}
