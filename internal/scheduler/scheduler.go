// Package scheduler runs the periodic drift audit: a read-only comparison of
// stored user totals against a full recompute. Repair stays a manual admin
// action; this job only surfaces divergence.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"

	service "github.com/circolo-dev/fantacircolo/internal/app"
	"github.com/circolo-dev/fantacircolo/pkg/logger"
)

// Scheduler owns the background jobs.
type Scheduler struct {
	s   gocron.Scheduler
	svc *service.Service
	log logger.Logger
}

// New creates a scheduler bound to the service.
func New(svc *service.Service, log logger.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &Scheduler{s: s, svc: svc, log: log}, nil
}

// Start registers the drift audit at the given interval and starts the
// scheduler. A non-positive interval disables the job.
func (s *Scheduler) Start(interval time.Duration) error {
	if interval > 0 {
		_, err := s.s.NewJob(
			gocron.DurationJob(interval),
			gocron.NewTask(s.runDriftAudit),
		)
		if err != nil {
			return fmt.Errorf("failed to create drift audit job: %w", err)
		}
	}
	s.s.Start()
	return nil
}

// Stop shuts the scheduler down.
func (s *Scheduler) Stop() error {
	return s.s.Shutdown()
}

func (s *Scheduler) runDriftAudit() {
	ctx := context.Background()
	drifted, err := s.svc.DriftAudit(ctx)
	if err != nil {
		s.log.Error(ctx, "drift audit failed", logger.Error(err))
		return
	}
	if len(drifted) == 0 {
		s.log.Debug(ctx, "drift audit clean")
		return
	}
	for _, row := range drifted {
		s.log.Warn(ctx, "user total drifted",
			logger.String("uid", row.UserID),
			logger.Int("stored", row.Stored),
			logger.Int("computed", row.Computed),
		)
	}
}
