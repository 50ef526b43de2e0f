// Package queue carries tasks from the upload server to workers.
package queue

import (
	"context"
	"errors"
	"sync"

	"pkg.jsn.cam/logmate/pkg/logmate/protocol"
)

// ErrClosed is returned by a queue after Close.
var ErrClosed = errors.New("queue closed")

// Queue is a FIFO of tasks shared by producers and workers.
type Queue interface {
	Enqueue(ctx context.Context, task protocol.Task) error
	// Dequeue blocks until a task is available, ctx is done, or the queue
	// is closed.
	Dequeue(ctx context.Context) (protocol.Task, error)
	Len(ctx context.Context) (int, error)
	Close() error
}

// MemoryQueue is an in-process Queue.
type MemoryQueue struct {
	mu     sync.Mutex
	tasks  []protocol.Task
	ready  chan struct{}
	done   chan struct{}
	closed bool
}

// NewMemoryQueue creates an empty in-process queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

func (q *MemoryQueue) Enqueue(_ context.Context, task protocol.Task) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.tasks = append(q.tasks, task)
	q.mu.Unlock()

	q.signal()
	return nil
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (protocol.Task, error) {
	for {
		q.mu.Lock()
		if len(q.tasks) > 0 {
			task := q.tasks[0]
			q.tasks = q.tasks[1:]
			more := len(q.tasks) > 0
			q.mu.Unlock()

			if more {
				q.signal()
			}
			return task, nil
		}
		if q.closed {
			q.mu.Unlock()
			return protocol.Task{}, ErrClosed
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return protocol.Task{}, ctx.Err()
		case <-q.done:
		case <-q.ready:
		}
	}
}

func (q *MemoryQueue) Len(context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks), nil
}

// Close wakes blocked consumers. Tasks still queued are dropped.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		q.tasks = nil
		close(q.done)
	}
	return nil
}

func (q *MemoryQueue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
