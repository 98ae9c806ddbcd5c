// Package scheduler runs the service's housekeeping jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one unit of periodic work.
type Job func(ctx context.Context) error

// JobInfo describes a registered job.
type JobInfo struct {
	Name     string    `json:"name"`
	Schedule string    `json:"schedule"`
	NextRun  time.Time `json:"next_run"`
	LastRun  time.Time `json:"last_run"`
}

type registered struct {
	id       cron.EntryID
	schedule string
}

// Scheduler wraps a cron runner. Runs of the same job never overlap: a tick
// that arrives while the previous run is still going is skipped.
type Scheduler struct {
	cron *cron.Cron

	mu   sync.Mutex
	jobs map[string]registered
}

// New creates a stopped Scheduler.
func New() *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		jobs: make(map[string]registered),
	}
}

// AddJob registers job under name. schedule is a standard five-field cron
// expression or a descriptor such as "@every 10m". Each run gets its own
// context bounded by timeout.
func (s *Scheduler) AddJob(name, schedule string, timeout time.Duration, job Job) error {
	id, err := s.cron.AddFunc(schedule, func() {
		if err := s.run(name, timeout, job); err != nil {
			slog.Error("scheduled job failed", "job", name, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling job %s: %w", name, err)
	}

	s.mu.Lock()
	s.jobs[name] = registered{id: id, schedule: schedule}
	s.mu.Unlock()

	slog.Info("scheduled job", "job", name, "schedule", schedule)
	return nil
}

// RunNow executes job immediately, outside the schedule.
func (s *Scheduler) RunNow(name string, timeout time.Duration, job Job) error {
	return s.run(name, timeout, job)
}

func (s *Scheduler) run(name string, timeout time.Duration, job Job) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	if err := job(ctx); err != nil {
		return err
	}
	slog.Debug("scheduled job completed", "job", name, "duration", time.Since(start))
	return nil
}

// Jobs lists the registered jobs with their next and previous run times.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for name, r := range s.jobs {
		e := s.cron.Entry(r.id)
		infos = append(infos, JobInfo{
			Name:     name,
			Schedule: r.schedule,
			NextRun:  e.Next,
			LastRun:  e.Prev,
		})
	}
	return infos
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler. The returned context is done once running jobs
// have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
