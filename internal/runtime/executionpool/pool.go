package executionpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// Task is one unit of sequential work.
type Task struct {
	ID  string
	Run func() error
}

var (
	// ErrTaskIDRequired is returned when a task is missing an ID.
	ErrTaskIDRequired = errors.New("task id is required")
	// ErrTaskRunRequired is returned when a task is missing a run function.
	ErrTaskRunRequired = errors.New("task run func is required")
	// ErrClosed indicates the execution pool no longer accepts submissions.
	ErrClosed = errors.New("execution pool is closed")
	// ErrQueueFull indicates the execution pool queue is saturated.
	ErrQueueFull = errors.New("execution pool queue is full")
)

// PanicError wraps a value recovered from a panicking task.
type PanicError struct {
	TaskID string
	Value  any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task %s panicked: %v", e.TaskID, e.Value)
}

// Stats reports execution pool counters.
type Stats struct {
	Submitted  int64
	Completed  int64
	Failed     int64
	Rejected   int64
	InFlight   int64
	QueueDepth int64
}

// Manager is a bounded single-worker FIFO execution pool. Tasks run one at a
// time in submission order.
type Manager struct {
	queue  chan Task
	done   chan struct{}
	onFail func(Task, error)

	mu     sync.Mutex
	closed bool

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64
	inFlight  atomic.Int64
}

// Option customizes a Manager.
type Option func(*Manager)

// WithFailureHandler observes task errors, recovered panics included.
func WithFailureHandler(fn func(Task, error)) Option {
	return func(m *Manager) { m.onFail = fn }
}

// NewManager creates a FIFO manager holding at most capacity queued tasks.
func NewManager(capacity int, opts ...Option) *Manager {
	if capacity < 1 {
		capacity = 64
	}
	m := &Manager{
		queue: make(chan Task, capacity),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	go m.worker()
	return m
}

// Submit enqueues a task without blocking.
func (m *Manager) Submit(task Task) error {
	if task.ID == "" {
		return ErrTaskIDRequired
	}
	if task.Run == nil {
		return ErrTaskRunRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		m.rejected.Add(1)
		return ErrClosed
	}
	select {
	case m.queue <- task:
		m.submitted.Add(1)
		return nil
	default:
		m.rejected.Add(1)
		return ErrQueueFull
	}
}

// Drain stops accepting tasks and waits for queued and in-flight tasks to finish.
func (m *Manager) Drain(ctx context.Context) error {
	m.mu.Lock()
	if !m.closed {
		m.closed = true
		close(m.queue)
	}
	m.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-m.done:
		return nil
	}
}

// Stats returns a snapshot of pool counters.
func (m *Manager) Stats() Stats {
	return Stats{
		Submitted:  m.submitted.Load(),
		Completed:  m.completed.Load(),
		Failed:     m.failed.Load(),
		Rejected:   m.rejected.Load(),
		InFlight:   m.inFlight.Load(),
		QueueDepth: int64(len(m.queue)),
	}
}

func (m *Manager) worker() {
	defer close(m.done)
	for task := range m.queue {
		m.inFlight.Add(1)
		if err := m.runTask(task); err != nil {
			m.failed.Add(1)
			if m.onFail != nil {
				m.onFail(task, err)
			}
		}
		m.completed.Add(1)
		m.inFlight.Add(-1)
	}
}

func (m *Manager) runTask(task Task) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = &PanicError{TaskID: task.ID, Value: recovered}
		}
	}()
	return task.Run()
}
