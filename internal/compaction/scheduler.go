package compaction

import (
	"context"
	"sync"
	"time"

	"github.com/granitedb/granite/internal/logging"
)

// Handle tracks one submitted task. The channel closes when the task
// finishes, whether or not anyone is still waiting.
type Handle struct {
	task Task
	done chan struct{}
	err  error
}

// Done closes when the task has finished.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Err returns the task outcome. Only valid after Done has closed.
func (h *Handle) Err() error { return h.err }

// Task returns the submitted task.
func (h *Handle) Task() Task { return h.task }

// Scheduler runs compaction tasks on a fixed worker pool. Submissions are
// asynchronous; callers that care about the outcome wait on the handle with
// a bounded Await.
type Scheduler struct {
	logger  *logging.Logger
	workers int
	queue   chan *Handle

	mu      sync.Mutex
	stopCh  chan struct{}
	wg      sync.WaitGroup
	started bool
	stopped bool
}

// NewScheduler creates a scheduler with the given worker count.
func NewScheduler(workers int, logger *logging.Logger) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	return &Scheduler{
		logger:  logger,
		workers: workers,
		queue:   make(chan *Handle, workers*16),
		stopCh:  make(chan struct{}),
	}
}

// Start launches the worker pool. Calling Start twice is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
}

// Stop rejects new submissions and waits for in-flight tasks to finish.
// Running tasks are never cancelled mid-merge.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.stopCh)
	s.mu.Unlock()
	s.wg.Wait()
}

// Submit enqueues a task and returns its handle. The call never waits for
// the task itself, only for queue space. The stopped check and the enqueue
// happen under the same lock Stop takes, so no handle can enter the queue
// after the workers have drained it.
func (s *Scheduler) Submit(task Task) (*Handle, error) {
	h := &Handle{task: task, done: make(chan struct{})}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, ErrSchedulerStopped
	}
	s.queue <- h
	return h, nil
}

// Await waits up to timeout for the handle's task to finish. It returns the
// outcome and whether the task completed within the window. A timeout
// detaches the caller; the task keeps running to completion.
func (s *Scheduler) Await(h *Handle, timeout time.Duration) (error, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-h.done:
		return h.err, true
	case <-timer.C:
		return nil, false
	}
}

func (s *Scheduler) worker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopCh:
			s.drainOne()
			return
		case h := <-s.queue:
			s.runOne(h)
		}
	}
}

// drainOne gives queued tasks one last chance during shutdown so their
// handles always resolve.
func (s *Scheduler) drainOne() {
	for {
		select {
		case h := <-s.queue:
			h.err = ErrSchedulerStopped
			close(h.done)
		default:
			return
		}
	}
}

func (s *Scheduler) runOne(h *Handle) {
	h.err = Run(context.Background(), h.task, s.logger)
	close(h.done)
}
