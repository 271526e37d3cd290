// Package scheduler runs named periodic tasks.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

type NotifyFunc func(data any)

// TaskFunc represents a runnable task.
type TaskFunc func() error

// Scheduler runs Task on a cron schedule. A tick that arrives while the
// previous run is still in progress is skipped, so at most one run of the
// task exists at a time. A stopped Scheduler cannot be restarted.
type Scheduler struct {
	Name    string
	OnError NotifyFunc // called on task error
	Task    TaskFunc   // task callback

	parser cron.Parser

	schedule cron.Schedule
	nextRun  time.Time

	mu      sync.Mutex
	running bool
	busy    bool
	runs    int
	skipped int
	lastRun time.Time

	controlCh chan controlMsg
	stopCh    chan struct{}
}

// Stats describe what a Scheduler has done so far.
type Stats struct {
	Runs    int       `json:"runs"`
	Skipped int       `json:"skipped"`
	LastRun time.Time `json:"lastRun"`
	Busy    bool      `json:"busy"`
}

type controlKind int

const (
	ctrlRecalculate controlKind = iota // timer needs recalculation due to schedule change
	ctrlSkip                           // next run skipped
)

type controlMsg struct {
	kind controlKind
	data any
}

// idleWait is how long the loop sleeps when nothing is scheduled.
const idleWait = time.Hour * 10000

func NewScheduler(name string, task TaskFunc, onError NotifyFunc) *Scheduler {
	if task == nil {
		panic("task function cannot be nil")
	}

	return &Scheduler{
		Name:      name,
		OnError:   onError,
		Task:      task,
		parser:    cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		controlCh: make(chan controlMsg, 4),
		stopCh:    make(chan struct{}),
	}
}

func (s *Scheduler) Stop() {
	select {
	case <-s.stopCh: // already closed
	default:
		close(s.stopCh)
	}
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	go s.runScheduled()
}

func (s *Scheduler) Schedule(cronExpr string) error {
	sh, err := s.parser.Parse(cronExpr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	running := s.running
	if !running {
		s.schedule = sh
		s.nextRun = sh.Next(time.Now())
	}
	s.mu.Unlock()

	if running {
		s.trySendControl(ctrlRecalculate, sh)
	}
	return nil
}

// Every schedules the task to run every interval.
func (s *Scheduler) Every(interval time.Duration) error {
	if interval < time.Second {
		return fmt.Errorf("interval must be at least 1s, got %s", interval)
	}
	return s.Schedule("@every " + interval.String())
}

// Skip skips the next scheduled run.
func (s *Scheduler) Skip() error {
	s.mu.Lock()
	if s.schedule == nil || s.nextRun.IsZero() {
		s.mu.Unlock()
		return fmt.Errorf("no active schedule to skip")
	}
	s.nextRun = s.schedule.Next(s.nextRun)
	running := s.running
	s.mu.Unlock()

	if running {
		s.trySendControl(ctrlSkip, nil)
	}
	return nil
}

func (s *Scheduler) Status() (nextRun time.Time, running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nextRun = s.nextRun
	running = s.running
	return
}

func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		Runs:    s.runs,
		Skipped: s.skipped,
		LastRun: s.lastRun,
		Busy:    s.busy,
	}
}

func (s *Scheduler) runScheduled() {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		logrus.WithField("job", s.Name).Debug("scheduler stopped")
	}()

	logrus.WithField("job", s.Name).Debug("scheduler started")

	for {
		schedule, nextRun := s.snapshot()
		var timer *time.Timer
		if schedule == nil || nextRun.IsZero() {
			timer = time.NewTimer(idleWait)
		} else {
			wait := time.Until(nextRun)
			if wait < 0 {
				wait = 0
			}
			timer = time.NewTimer(wait)
		}

		select {
		case <-timer.C:
			if schedule == nil || nextRun.IsZero() {
				continue
			}
			s.fire(nextRun)
			s.advanceNextRun()
		case <-s.stopCh:
			timer.Stop()
			return
		case msg := <-s.controlCh:
			timer.Stop()
			logrus.WithFields(logrus.Fields{
				"job":  s.Name,
				"kind": msg.kind,
			}).Debug("received control msg")

			if msg.kind == ctrlRecalculate {
				sh := msg.data.(cron.Schedule)
				s.mu.Lock()
				s.schedule = sh
				s.nextRun = sh.Next(time.Now())
				s.mu.Unlock()
			}
			// ctrlSkip already moved nextRun; the loop re-arms the timer.
		}
	}
}

func (s *Scheduler) fire(at time.Time) {
	s.mu.Lock()
	if s.busy {
		s.skipped++
		s.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"job":       s.Name,
			"scheduled": at.Format(time.DateTime),
		}).Warn("previous run still in progress, skipping this one")
		return
	}
	s.busy = true
	s.runs++
	s.lastRun = time.Now()
	s.mu.Unlock()

	logrus.WithField("job", s.Name).Debugf("running scheduled task at %s", at.Format(time.DateTime))

	go func() {
		defer func() {
			s.mu.Lock()
			s.busy = false
			s.mu.Unlock()
		}()

		if err := s.Task(); err != nil {
			s.sendError(fmt.Errorf("task failed: %w", err))
		}
	}()
}

func (s *Scheduler) snapshot() (cron.Schedule, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schedule, s.nextRun
}

// advanceNextRun moves nextRun forward. Runs missed while the host was
// asleep are not replayed.
func (s *Scheduler) advanceNextRun() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.schedule == nil {
		return
	}
	next := s.schedule.Next(s.nextRun)
	if now := time.Now(); next.Before(now) {
		next = s.schedule.Next(now)
	}
	s.nextRun = next
}

func (s *Scheduler) sendError(err error) {
	if s.OnError == nil {
		return
	}

	go s.OnError(err)
}

func (s *Scheduler) trySendControl(kind controlKind, data any) {
	select {
	case s.controlCh <- controlMsg{kind: kind, data: data}:
	default:
	}
}
