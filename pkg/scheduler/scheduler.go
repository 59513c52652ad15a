package scheduler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Job is one scheduled pass. Errors are logged and the next tick runs anyway.
type Job func(ctx context.Context) error

type Scheduler struct {
	name     string
	job      Job
	interval time.Duration
	logger   logrus.FieldLogger
}

func NewScheduler(name string, job Job, interval time.Duration, logger logrus.FieldLogger) *Scheduler {
	return &Scheduler{
		name:     name,
		job:      job,
		interval: interval,
		logger:   logger.WithField("job", name),
	}
}

// Start blocks until ctx is cancelled
func (s *Scheduler) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Warn("Scheduler disabled: non-positive interval")
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.WithField("interval", s.interval).Info("Scheduler started")
	for {
		select {
		case <-ticker.C:
			if err := s.job(ctx); err != nil && ctx.Err() == nil {
				s.logger.WithError(err).Error("Scheduled job failed")
			}
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped")
			return
		}
	}
}
