package daemon

import (
	"sync"
	"time"

	"github.com/coder/quartz"
	"go.uber.org/zap"
)

// Scheduler runs delayed one-shot tasks that the monitor can cancel as a
// group on shutdown. After CancelAll it refuses new tasks.
type Scheduler struct {
	clock  quartz.Clock
	logger *zap.Logger

	mu     sync.Mutex
	nextID uint64
	tasks  map[uint64]scheduledTask
	closed bool
}

type scheduledTask struct {
	name  string
	timer *quartz.Timer
}

// NewScheduler creates a scheduler on the given clock.
func NewScheduler(clock quartz.Clock, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		clock:  clock,
		logger: logger,
		tasks:  make(map[uint64]scheduledTask),
	}
}

// Schedule runs fn once after delay. The returned func cancels the task and
// reports whether it was still pending. ok is false when the scheduler is closed.
func (s *Scheduler) Schedule(name string, delay time.Duration, fn func()) (cancel func() bool, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.logger.Debug("scheduler closed, task dropped", zap.String("task", name))
		return func() bool { return false }, false
	}

	id := s.nextID
	s.nextID++

	timer := s.clock.AfterFunc(delay, func() {
		if !s.take(id) {
			return
		}
		s.logger.Info("running scheduled task", zap.String("task", name))
		fn()
	}, "scheduler", name)
	s.tasks[id] = scheduledTask{name: name, timer: timer}

	s.logger.Info("task scheduled", zap.String("task", name), zap.Duration("delay", delay))
	return func() bool { return s.cancel(id) }, true
}

// take removes a task before it runs. It fails if the task was cancelled.
func (s *Scheduler) take(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return false
	}
	delete(s.tasks, id)
	return true
}

func (s *Scheduler) cancel(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return false
	}
	delete(s.tasks, id)
	task.timer.Stop()
	return true
}

// Pending returns the number of tasks that have not run yet.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// CancelAll cancels every pending task, closes the scheduler and returns
// how many tasks were cancelled.
func (s *Scheduler) CancelAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	n := len(s.tasks)
	for id, task := range s.tasks {
		task.timer.Stop()
		delete(s.tasks, id)
		s.logger.Info("scheduled task cancelled", zap.String("task", task.name))
	}
	return n
}
