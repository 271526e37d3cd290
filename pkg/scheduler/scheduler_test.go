package scheduler

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
)

func TestCronParseEvery(t *testing.T) {
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse("@every 15m0s")
	if err != nil {
		t.Fatalf("failed to parse cron expression: %v", err)
	}

	now := time.Now()
	next1 := schedule.Next(now)
	next2 := schedule.Next(next1)

	if got := next2.Sub(next1); got != 15*time.Minute {
		t.Fatalf("expected 15m between runs, got %v", got)
	}
}

func TestSchedulerScheduleStatus(t *testing.T) {
	s := NewScheduler("test", func() error { return nil }, nil)

	if err := s.Every(time.Minute); err != nil {
		t.Fatalf("Every returned error: %v", err)
	}

	next, running := s.Status()
	if running {
		t.Fatalf("scheduler should not be running")
	}
	if next.IsZero() {
		t.Fatalf("next run should be set after scheduling")
	}
}

func TestSchedulerEveryRejectsTinyInterval(t *testing.T) {
	s := NewScheduler("test", func() error { return nil }, nil)
	if err := s.Every(time.Millisecond); err == nil {
		t.Fatalf("expected error for sub-second interval")
	}
}

func TestSchedulerSkip(t *testing.T) {
	s := NewScheduler("test", func() error { return nil }, nil)
	if err := s.Every(10 * time.Minute); err != nil {
		t.Fatalf("Every returned error: %v", err)
	}

	orig, _ := s.Status()

	s.Start()
	defer s.Stop()

	if err := s.Skip(); err != nil {
		t.Fatalf("Skip returned error: %v", err)
	}
	skipped, _ := s.Status()
	if !skipped.After(orig) {
		t.Fatalf("expected skip to move schedule forward, got %v <= %v", skipped, orig)
	}
}

func TestSchedulerSkipWithoutSchedule(t *testing.T) {
	s := NewScheduler("test", func() error { return nil }, nil)
	if err := s.Skip(); err == nil {
		t.Fatalf("expected error when nothing is scheduled")
	}
}

func TestSchedulerRunsTask(t *testing.T) {
	taskCh := make(chan struct{}, 1)
	errCh := make(chan error, 1)

	task := func() error {
		taskCh <- struct{}{}
		return nil
	}
	onError := func(data any) {
		if err, ok := data.(error); ok {
			errCh <- err
		}
	}

	s := NewScheduler("test", task, onError)
	if err := s.Every(time.Second); err != nil {
		t.Fatalf("Every returned error: %v", err)
	}

	s.mu.Lock()
	s.nextRun = time.Now().Add(50 * time.Millisecond)
	s.mu.Unlock()

	s.Start()
	defer s.Stop()

	select {
	case <-taskCh:
	case <-time.After(2 * time.Second):
		t.Fatalf("task did not execute in time")
	}

	select {
	case err := <-errCh:
		t.Fatalf("unexpected error callback: %v", err)
	default:
	}

	if stats := s.Stats(); stats.Runs < 1 || stats.LastRun.IsZero() {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestSchedulerTaskError(t *testing.T) {
	errCh := make(chan error, 4)

	s := NewScheduler("test", func() error { return errors.New("boom") }, func(data any) {
		if err, ok := data.(error); ok {
			errCh <- err
		}
	})
	if err := s.Every(time.Second); err != nil {
		t.Fatalf("Every returned error: %v", err)
	}

	s.mu.Lock()
	s.nextRun = time.Now().Add(20 * time.Millisecond)
	s.mu.Unlock()

	s.Start()
	defer s.Stop()

	select {
	case err := <-errCh:
		if err.Error() != "task failed: boom" {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected error callback from failed task")
	}
}

func TestSchedulerSkipsWhileBusy(t *testing.T) {
	release := make(chan struct{})
	var started int32

	s := NewScheduler("test", func() error {
		atomic.AddInt32(&started, 1)
		<-release
		return nil
	}, nil)
	if err := s.Every(time.Second); err != nil {
		t.Fatalf("Every returned error: %v", err)
	}

	s.fire(time.Now())
	s.fire(time.Now())
	s.fire(time.Now())

	stats := s.Stats()
	if stats.Runs != 1 || stats.Skipped != 2 || !stats.Busy {
		t.Fatalf("unexpected stats while busy: %+v", stats)
	}

	close(release)

	deadline := time.Now().Add(2 * time.Second)
	for s.Stats().Busy {
		if time.Now().After(deadline) {
			t.Fatalf("task did not finish in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := atomic.LoadInt32(&started); got != 1 {
		t.Fatalf("expected one task run, got %d", got)
	}
}

func TestSchedulerAdvanceDoesNotReplayMissedRuns(t *testing.T) {
	s := NewScheduler("test", func() error { return nil }, nil)
	if err := s.Every(time.Minute); err != nil {
		t.Fatalf("Every returned error: %v", err)
	}

	s.mu.Lock()
	s.nextRun = time.Now().Add(-time.Hour)
	s.mu.Unlock()

	s.advanceNextRun()

	next, _ := s.Status()
	if !next.After(time.Now()) {
		t.Fatalf("expected next run in the future, got %v", next)
	}
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	s := NewScheduler("test", func() error { return nil }, nil)
	s.Start()
	s.Stop()
	s.Stop()

	deadline := time.Now().Add(time.Second)
	for {
		if _, running := s.Status(); !running {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("scheduler still running after Stop")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
