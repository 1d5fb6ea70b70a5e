// Package scheduler runs periodic maintenance jobs, currently just the
// retraining trigger.
package scheduler

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// JobHandler executes one scheduled job invocation.
type JobHandler func()

type job struct {
	name     string
	schedule string
	handler  JobHandler
	lastRun  time.Time
}

type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger

	mu   sync.Mutex
	jobs map[string]*job
}

func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:   cron.New(),
		logger: logger,
		jobs:   make(map[string]*job),
	}
}

// Register adds a job under a cron schedule expression.
func (s *Scheduler) Register(name, schedule string, handler JobHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %q already registered", name)
	}

	j := &job{name: name, schedule: schedule, handler: handler}
	_, err := s.cron.AddFunc(schedule, func() { s.run(j) })
	if err != nil {
		return fmt.Errorf("scheduling job %q: %w", name, err)
	}

	s.jobs[name] = j
	s.logger.Info("job registered", "job", name, "schedule", schedule)
	return nil
}

// RegisterEvery adds a job on a fixed interval.
func (s *Scheduler) RegisterEvery(name string, interval time.Duration, handler JobHandler) error {
	return s.Register(name, "@every "+interval.String(), handler)
}

func (s *Scheduler) run(j *job) {
	s.mu.Lock()
	j.lastRun = time.Now().UTC()
	s.mu.Unlock()

	s.logger.Info("running scheduled job", "job", j.name)
	j.handler()
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
