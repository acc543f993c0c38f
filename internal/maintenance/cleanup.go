// Package maintenance schedules background housekeeping jobs.
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"umid/internal/biometric/service"
)

// Cleaner reconciles stored templates against the identity registry.
type Cleaner interface {
	CleanupOrphans(ctx context.Context) (service.CleanupReport, error)
}

// Scheduler runs the periodic orphan-template sweep.
type Scheduler struct {
	scheduler *gocron.Scheduler
	cleaner   Cleaner
	logger    *slog.Logger
}

func NewScheduler(cleaner Cleaner, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		cleaner:   cleaner,
		logger:    logger,
	}
}

// Start schedules the sweep at the given interval and begins running jobs in
// the background. An interval of 0 disables scheduling.
func (s *Scheduler) Start(interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	_, err := s.scheduler.Every(interval).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		report, err := s.cleaner.CleanupOrphans(ctx)
		if err != nil {
			s.logger.Error("scheduled orphan cleanup failed", "error", err)
			return
		}
		if n := len(report.RemovedFingerprints) + len(report.RemovedFaces); n > 0 {
			s.logger.Info("scheduled orphan cleanup removed templates",
				"removed_fingerprints", len(report.RemovedFingerprints),
				"removed_faces", len(report.RemovedFaces),
			)
		}
	})
	if err != nil {
		return err
	}
	s.scheduler.StartAsync()
	return nil
}

// Stop halts the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}
