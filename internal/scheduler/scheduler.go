package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"saascribe-platform/internal/logger"
	"saascribe-platform/utils"
)

// Scheduler runs periodic maintenance jobs.
type Scheduler struct {
	scheduler *gocron.Scheduler
	ctx       context.Context
	cancel    context.CancelFunc
}

func New() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()

	return &Scheduler{
		scheduler: s,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	s.cancel()
}

// ScheduleInterval runs job every d. The job receives a context cancelled on
// Stop; errors are logged and the job keeps its schedule.
func (s *Scheduler) ScheduleInterval(tag string, d time.Duration, job func(ctx context.Context) error) error {
	_, err := s.scheduler.Every(d).Tag(tag).SingletonMode().Do(func() {
		if err := job(s.ctx); err != nil {
			logger.Error("scheduled job failed", "job", tag, "error", err)
		}
	})
	return err
}

func (s *Scheduler) RemoveJob(tag string) error {
	return s.scheduler.RemoveByTag(tag)
}

func (s *Scheduler) Jobs() []*gocron.Job {
	return s.scheduler.Jobs()
}

// StaleResetter is implemented by the document repository.
type StaleResetter interface {
	ResetStaleIndexing(ctx context.Context, cutoff time.Time) (int64, error)
}

// ScheduleStaleIndexingReset periodically releases documents left in the
// indexing state by a crashed process.
func (s *Scheduler) ScheduleStaleIndexingReset(repo StaleResetter, every, staleAfter time.Duration) error {
	return s.ScheduleInterval("stale-indexing-reset", every, func(ctx context.Context) error {
		ctx, cancel := utils.WithTimeout(ctx)
		defer cancel()
		n, err := repo.ResetStaleIndexing(ctx, time.Now().Add(-staleAfter))
		if err != nil {
			return err
		}
		if n > 0 {
			logger.Warn("reset stale indexing documents", "count", n)
		}
		return nil
	})
}
