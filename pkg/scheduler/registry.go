package scheduler

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Policy decides what EnqueueUniquePeriodic does when a job with the same
// name already exists.
type Policy int

const (
	// Keep leaves the existing job untouched.
	Keep Policy = iota
	// Replace stops the existing job and schedules the new one.
	Replace
)

func (p Policy) String() string {
	switch p {
	case Keep:
		return "KEEP"
	case Replace:
		return "REPLACE"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

var (
	ErrInvalidJob  = errors.New("invalid job")
	ErrJobNotFound = errors.New("job not found")
)

// Job is a named periodic task owned by a Registry.
type Job struct {
	Name       string
	Interval   time.Duration
	EnqueuedAt time.Time

	sched *Scheduler
}

// JobInfo is a point-in-time view of a Job.
type JobInfo struct {
	Name       string        `json:"name"`
	Interval   time.Duration `json:"interval"`
	EnqueuedAt time.Time     `json:"enqueuedAt"`
	NextRun    time.Time     `json:"nextRun"`
	Running    bool          `json:"running"`
	Stats
}

func (j *Job) Info() JobInfo {
	next, running := j.sched.Status()
	return JobInfo{
		Name:       j.Name,
		Interval:   j.Interval,
		EnqueuedAt: j.EnqueuedAt,
		NextRun:    next,
		Running:    running,
		Stats:      j.sched.Stats(),
	}
}

// Registry keeps at most one Job per name.
type Registry struct {
	mu   sync.Mutex
	jobs map[string]*Job

	// OnError receives errors returned by any job's task.
	OnError NotifyFunc
}

func NewRegistry() *Registry {
	return &Registry{jobs: map[string]*Job{}}
}

// EnqueueUniquePeriodic makes sure a job called name runs task every
// interval. With Keep an existing job is returned unchanged; with Replace it
// is stopped and superseded.
func (r *Registry) EnqueueUniquePeriodic(name string, interval time.Duration, policy Policy, task TaskFunc) (*Job, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrInvalidJob)
	}
	if task == nil {
		return nil, fmt.Errorf("%w: nil task", ErrInvalidJob)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	logger := logrus.WithFields(logrus.Fields{
		"job":      name,
		"interval": interval,
		"policy":   policy,
	})

	if existing, ok := r.jobs[name]; ok {
		if policy == Keep {
			logger.Debug("job already enqueued, keeping it")
			return existing, nil
		}
		existing.sched.Stop()
		delete(r.jobs, name)
		logger.Debug("replacing existing job")
	}

	sched := NewScheduler(name, task, r.OnError)
	if err := sched.Every(interval); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}
	sched.Start()

	job := &Job{
		Name:       name,
		Interval:   interval,
		EnqueuedAt: time.Now(),
		sched:      sched,
	}
	r.jobs[name] = job

	logger.Info("periodic job enqueued")
	return job, nil
}

// Cancel stops and removes the job called name.
func (r *Registry) Cancel(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[name]
	if !ok {
		return false
	}
	job.sched.Stop()
	delete(r.jobs, name)

	logrus.WithField("job", name).Info("periodic job cancelled")
	return true
}

func (r *Registry) Lookup(name string) (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[name]
	return job, ok
}

// Skip moves the next run of the job called name one interval later.
func (r *Registry) Skip(name string) (*Job, error) {
	job, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	if err := job.sched.Skip(); err != nil {
		return nil, err
	}

	logrus.WithField("job", name).Info("next run skipped")
	return job, nil
}

// Jobs returns all jobs sorted by name.
func (r *Registry) Jobs() []JobInfo {
	r.mu.Lock()
	jobs := make([]*Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		jobs = append(jobs, j)
	}
	r.mu.Unlock()

	sort.Slice(jobs, func(i, k int) bool { return jobs[i].Name < jobs[k].Name })

	infos := make([]JobInfo, 0, len(jobs))
	for _, j := range jobs {
		infos = append(infos, j.Info())
	}
	return infos
}

// StopAll stops and removes every job.
func (r *Registry) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, job := range r.jobs {
		job.sched.Stop()
		delete(r.jobs, name)
	}
}
