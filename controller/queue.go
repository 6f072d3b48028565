package controller

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var (
	ErrQueueClosed = errors.New("task queue is closed")
	ErrQueueFull   = errors.New("task queue is full")
)

// Queue runs submitted tasks one at a time, in submission order, on a
// single worker goroutine.
type Queue struct {
	logger *slog.Logger
	tasks  chan func()

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewQueue starts a queue that buffers up to backlog pending tasks
func NewQueue(backlog int, logger *slog.Logger) *Queue {
	if backlog <= 0 {
		backlog = 1
	}
	q := &Queue{
		logger: logger,
		tasks:  make(chan func(), backlog),
	}
	q.wg.Add(1)
	go q.worker()
	return q
}

// Submit enqueues task without blocking
func (q *Queue) Submit(task func()) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting tasks, runs the ones already queued and waits
// for the worker to exit.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()

	q.wg.Wait()
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for task := range q.tasks {
		q.run(task)
	}
}

func (q *Queue) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("Task panicked", "error", fmt.Sprint(r))
		}
	}()
	task()
}
