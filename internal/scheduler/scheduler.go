package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/likenovel/likenovel-backend/internal/logger"
	"github.com/likenovel/likenovel-backend/internal/observability"
	"github.com/likenovel/likenovel-backend/internal/services"
)

const jobTimeout = 5 * time.Minute

// Scheduler drives the two background jobs: reserved-publish promotion every
// minute and the stale pending-file sweep every ten.
type Scheduler struct {
	log      *logger.Logger
	cron     *cron.Cron
	episodes services.EpisodeService
	metrics  *observability.Metrics
}

func New(log *logger.Logger, episodes services.EpisodeService, metrics *observability.Metrics) *Scheduler {
	return &Scheduler{
		log:      log.With("component", "Scheduler"),
		cron:     cron.New(),
		episodes: episodes,
		metrics:  metrics,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("* * * * *", s.runReservedPublish); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("*/10 * * * *", s.runPendingFileSweep); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info("scheduler started")
	return nil
}

// Stop waits for in-flight jobs before returning.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) runReservedPublish() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	published, err := s.episodes.RunReservedPublish(ctx, time.Now())
	if err != nil {
		s.log.Error("reserved publish run failed", "error", err)
		s.metrics.RecordSchedulerRun("reserved_publish", "error")
		return
	}
	s.metrics.RecordSchedulerRun("reserved_publish", "ok")
	if published > 0 {
		s.log.Info("reserved episodes published", "count", published)
	}
}

func (s *Scheduler) runPendingFileSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	swept, err := s.episodes.SweepPendingFiles(ctx, time.Now())
	if err != nil {
		s.log.Error("pending file sweep failed", "error", err)
		s.metrics.RecordSchedulerRun("pending_file_sweep", "error")
		return
	}
	s.metrics.RecordSchedulerRun("pending_file_sweep", "ok")
	if swept > 0 {
		s.log.Info("stale pending files swept", "count", swept)
	}
}
