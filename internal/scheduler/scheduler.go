package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"
)

// CycleRunner is satisfied by the ingest service.
type CycleRunner interface {
	RunCycle(ctx context.Context) error
}

// Scheduler drives the ingestion cycle: one synchronous run at startup via
// RunOnce, then a recurring non-reentrant job every interval.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   CycleRunner
	interval  time.Duration
}

func New(service CycleRunner, interval time.Duration) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.Local),
		service:   service,
		interval:  interval,
	}
}

// RunOnce executes a single cycle synchronously.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	return s.service.RunCycle(ctx)
}

// Start arms the recurring job and starts the underlying scheduler.
// SingletonMode keeps a slow cycle from overlapping the next trigger.
func (s *Scheduler) Start() error {
	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 30
	}

	_, err := s.scheduler.Every(minutes).Minutes().SingletonMode().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.interval)
		defer cancel()

		if err := s.service.RunCycle(ctx); err != nil {
			log.Printf("scheduler: cycle failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop disarms future firings without waiting for an in-flight run.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
