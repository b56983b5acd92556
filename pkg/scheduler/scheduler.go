// Package scheduler runs the scraper on a cron expression. Overlapping
// invocations are skipped, not queued: a slow run must never stack a
// second browser behind itself.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	errs "linkscraper/pkg/errors"
	"linkscraper/pkg/logger"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context)

// Scheduler wraps a cron runner with overlap protection.
type Scheduler struct {
	cron    *cron.Cron
	log     logger.Logger
	running sync.Mutex
	skipped int
	mu      sync.Mutex
}

// New creates an empty scheduler.
func New(log logger.Logger) *Scheduler {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Scheduler{
		cron: cron.New(),
		log:  log,
	}
}

// Schedule registers the job under a standard five-field cron
// expression.
func (s *Scheduler) Schedule(ctx context.Context, expression string, job Job) error {
	_, err := s.cron.AddFunc(expression, func() {
		s.invoke(ctx, job)
	})
	if err != nil {
		return errs.Newf(errs.ErrorTypeConfig, "invalid cron expression %q: %v", expression, err)
	}
	s.log.WithField("schedule", expression).Info("Job scheduled")
	return nil
}

// invoke runs the job unless a previous invocation is still going.
func (s *Scheduler) invoke(ctx context.Context, job Job) {
	if !s.running.TryLock() {
		s.mu.Lock()
		s.skipped++
		s.mu.Unlock()
		s.log.Warn("Previous run still in progress, skipping this invocation")
		return
	}
	defer s.running.Unlock()

	if ctx.Err() != nil {
		return
	}
	job(ctx)
}

// RunNow executes the job immediately with the same overlap protection
// as scheduled invocations.
func (s *Scheduler) RunNow(ctx context.Context, job Job) {
	s.invoke(ctx, job)
}

// SkippedCount reports how many invocations were dropped due to overlap.
func (s *Scheduler) SkippedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skipped
}

// Start begins cron dispatch in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	logger.LogComponentStart("scheduler", nil)
}

// Stop halts dispatch and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(30 * time.Second):
		s.log.Warn("Timed out waiting for running job to finish")
	}
	logger.LogComponentStop("scheduler", "shutdown requested")
}
