package scheduler

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is a unit of background maintenance work.
type Job func()

// Scheduler runs the periodic maintenance jobs (audit retention pruning,
// summary cache warmup) on named tickers and one-shot timers. Jobs are
// keyed by name; registering a name again replaces the previous job.
type Scheduler struct {
	mu     sync.Mutex
	jobs   map[string]chan struct{}
	timers map[string]*time.Timer
	logger *zap.Logger
	stopCh chan struct{}
}

func New(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		jobs:   make(map[string]chan struct{}),
		timers: make(map[string]*time.Timer),
		stopCh: make(chan struct{}),
		logger: logger,
	}
}

// AddTicker runs fn every interval until the job is removed or the
// scheduler stops.
func (s *Scheduler) AddTicker(name string, interval time.Duration, fn Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.jobs[name]; ok {
		close(old)
	}
	done := make(chan struct{})
	s.jobs[name] = done

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.run(name, fn)
			case <-done:
				return
			case <-s.stopCh:
				return
			}
		}
	}()
	s.logger.Info("maintenance job registered",
		zap.String("name", name), zap.Duration("interval", interval))
}

// AddDelay runs fn once after the given delay.
func (s *Scheduler) AddDelay(name string, delay time.Duration, fn Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.timers[name]; ok {
		old.Stop()
	}
	s.timers[name] = time.AfterFunc(delay, func() {
		defer func() {
			s.mu.Lock()
			delete(s.timers, name)
			s.mu.Unlock()
		}()
		s.run(name, fn)
	})
}

// run executes a job, keeping a panic in one job from taking the
// scheduler down with it.
func (s *Scheduler) run(name string, fn Job) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("maintenance job panicked",
				zap.String("name", name), zap.Any("recover", r))
		}
	}()
	fn()
}

// Remove stops the named ticker or timer, if registered.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if done, ok := s.jobs[name]; ok {
		close(done)
		delete(s.jobs, name)
	}
	if t, ok := s.timers[name]; ok {
		t.Stop()
		delete(s.timers, name)
	}
}

// Stop halts every job. The scheduler cannot be restarted.
func (s *Scheduler) Stop() {
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
}

// ListTickers returns the names of the registered ticker jobs.
func (s *Scheduler) ListTickers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	return names
}
