package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"linkscraper/pkg/logger"
)

func TestScheduleRejectsInvalidExpression(t *testing.T) {
	s := New(logger.NewNopLogger())
	err := s.Schedule(context.Background(), "not a cron line", func(ctx context.Context) {})
	assert.Error(t, err)
}

func TestScheduleAcceptsStandardExpression(t *testing.T) {
	s := New(logger.NewNopLogger())
	err := s.Schedule(context.Background(), "0 */6 * * *", func(ctx context.Context) {})
	assert.NoError(t, err)
}

func TestOverlappingInvocationsAreSkipped(t *testing.T) {
	s := New(logger.NewNopLogger())

	var runs int32
	release := make(chan struct{})
	started := make(chan struct{})
	job := func(ctx context.Context) {
		atomic.AddInt32(&runs, 1)
		close(started)
		<-release
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.RunNow(context.Background(), job)
	}()

	<-started
	// A second invocation while the first holds the lock must be dropped.
	s.RunNow(context.Background(), job)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))
	assert.Equal(t, 1, s.SkippedCount())
}

func TestRunNowHonoursCancelledContext(t *testing.T) {
	s := New(logger.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	s.RunNow(ctx, func(ctx context.Context) { ran = true })
	assert.False(t, ran)
}

func TestStartStop(t *testing.T) {
	s := New(logger.NewNopLogger())
	_ = s.Schedule(context.Background(), "@every 1h", func(ctx context.Context) {})
	s.Start()
	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
}
