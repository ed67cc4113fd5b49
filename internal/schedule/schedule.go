package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"ctifeed/internal/runguard"
)

// Job is invoked on every tick.
type Job func(ctx context.Context) error

// Scheduler runs a job on a cron spec until stopped.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	entry   cron.EntryID
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
	log     logrus.FieldLogger
}

// New parses spec (standard five fields or descriptors such as "@every 30m") and registers job.
func New(spec string, job Job, logger logrus.FieldLogger) (*Scheduler, error) {
	log := logger.WithField("component", "scheduler")
	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(cron.PrintfLogger(log)),
			cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(log))),
		),
		ctx:    ctx,
		cancel: cancel,
		log:    log,
	}

	id, err := s.cron.AddFunc(spec, func() { s.run(job) })
	if err != nil {
		cancel()
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	s.entry = id
	return s, nil
}

func (s *Scheduler) run(job Job) {
	start := time.Now()
	err := job(s.ctx)
	switch {
	case errors.Is(err, runguard.ErrBusy):
		s.log.Info("Scheduled run skipped, another run in progress")
	case err != nil:
		s.log.WithError(err).Error("Scheduled run failed")
	default:
		s.log.WithField("duration", time.Since(start).String()).Info("Scheduled run finished")
	}
}

// Start begins ticking. Calling Start twice is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.cron.Start()
	s.running = true
	s.log.WithField("next_run", s.Next()).Info("Scheduler started")
}

// Stop cancels the in-flight job's context and waits for it to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.cancel()
	<-s.cron.Stop().Done()
	s.running = false
	s.log.Info("Scheduler stopped")
}

// Next returns the next scheduled run, or the zero time before Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}
