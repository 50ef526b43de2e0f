// Package worker runs queued log-processing tasks and owns the retry policy.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"pkg.jsn.cam/logmate/internal/metrics"
	"pkg.jsn.cam/logmate/internal/queue"
	"pkg.jsn.cam/logmate/pkg/logmate"
	"pkg.jsn.cam/logmate/pkg/logmate/protocol"
)

// ErrIncompatibleTask is the cause reported for tasks queued by a server
// with a different major version.
var ErrIncompatibleTask = errors.New("incompatible task version")

// Config holds worker configuration
type Config struct {
	ID            string
	Concurrency   int
	MaxRetries    int
	RetryBackoff  time.Duration
	TaskTimeLimit time.Duration
	// PollInterval is the pause after a failed dequeue.
	PollInterval time.Duration
}

// Node pulls tasks off a queue and runs them through a Controller.
type Node struct {
	id      string
	config  Config
	queue   queue.Queue
	ctrl    *logmate.Controller
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewNode creates a worker node. m may be nil.
func NewNode(cfg Config, q queue.Queue, ctrl *logmate.Controller, m *metrics.Metrics) *Node {
	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}

	return &Node{
		id:      cfg.ID,
		config:  cfg,
		queue:   q,
		ctrl:    ctrl,
		metrics: m,
		now:     time.Now,
	}
}

// ID returns the node's identifier.
func (n *Node) ID() string {
	return n.id
}

// Start runs the task loops and blocks until ctx is cancelled or the queue
// is closed.
func (n *Node) Start(ctx context.Context) error {
	log := zlog.With().Str("component", "worker").Str("worker_id", n.id).Logger()
	log.Info().
		Str("version", protocol.LogmateVersion).
		Int("concurrency", n.config.Concurrency).
		Int("max_retries", n.config.MaxRetries).
		Msg("starting worker")

	var wg sync.WaitGroup
	for slot := range n.config.Concurrency {
		wg.Go(func() {
			n.taskLoop(ctx, log.With().Int("slot", slot).Logger())
		})
	}
	wg.Wait()

	log.Info().Msg("worker stopped")
	return nil
}

// taskLoop dequeues and processes tasks one at a time
func (n *Node) taskLoop(ctx context.Context, log zerolog.Logger) {
	for {
		// A requeued task is still poppable after cancellation.
		if ctx.Err() != nil {
			log.Debug().Msg("task loop shutting down")
			return
		}

		task, err := n.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, queue.ErrClosed) {
				log.Debug().Err(err).Msg("task loop shutting down")
				return
			}
			log.Warn().Err(err).Msg("error getting next task")
			if !sleep(ctx, n.config.PollInterval) {
				return
			}
			continue
		}

		n.handle(ctx, task, log.With().Str("job_id", task.JobID).Int("attempt", task.Attempt).Logger())
	}
}

func (n *Node) handle(ctx context.Context, task protocol.Task, log zerolog.Logger) {
	spec := logmate.JobSpec{
		JobID:    task.JobID,
		FilePath: task.FilePath,
		FileName: task.FileName,
		FileSize: task.FileSize,
		Attempt:  task.Attempt,
	}

	if ok, err := protocol.IsCompatibleVersion(task.Version, protocol.LogmateVersion); !ok {
		cause := fmt.Errorf("%w: %s", ErrIncompatibleTask, protocol.CompatibilityError(task.Version, protocol.LogmateVersion))
		if err != nil {
			cause = fmt.Errorf("%w: %w", ErrIncompatibleTask, err)
		}
		log.Error().Err(cause).Msg("rejecting task")
		n.fail(ctx, spec, cause, log)
		return
	}

	if wait := task.NotBefore.Sub(n.now()); wait > 0 {
		log.Debug().Dur("wait", wait).Msg("waiting for retry backoff")
		if !sleep(ctx, wait) {
			n.requeue(ctx, task, log)
			return
		}
	}

	done := n.startAttempt()
	attemptCtx, cancel := n.attemptContext(ctx)
	_, err := n.ctrl.Execute(attemptCtx, spec)
	cancel()

	switch {
	case err == nil:
		done(metrics.OutcomeCompleted)
		log.Info().Msg("job completed")

	case ctx.Err() != nil:
		// Interrupted by shutdown; hand the same attempt back.
		done(metrics.OutcomeRetried)
		n.requeue(ctx, task, log)

	case logmate.IsRetryable(err) && task.Attempt < n.config.MaxRetries:
		done(metrics.OutcomeRetried)
		next := task
		next.Attempt++
		next.NotBefore = n.now().Add(n.config.backoff(task.Attempt))
		log.Warn().Err(err).Time("not_before", next.NotBefore).Msg("job failed, retrying")
		if qErr := n.queue.Enqueue(context.WithoutCancel(ctx), next); qErr != nil {
			log.Error().Err(qErr).Msg("failed to requeue job")
			n.fail(ctx, spec, errors.Join(err, qErr), log)
		}

	default:
		done(metrics.OutcomeFailed)
		n.fail(ctx, spec, err, log)
	}
}

// fail publishes the final ERROR for spec.
func (n *Node) fail(ctx context.Context, spec logmate.JobSpec, cause error, log zerolog.Logger) {
	exhausted := &logmate.RetryExhaustedError{
		JobID:    spec.JobID,
		Attempts: spec.Attempt + 1,
		Cause:    cause,
	}
	log.Error().Err(exhausted).Msg("job failed permanently")

	if err := n.ctrl.ReportExhausted(context.WithoutCancel(ctx), spec, exhausted); err != nil {
		log.Error().Err(err).Msg("failed to publish final error")
	}
}

func (n *Node) requeue(ctx context.Context, task protocol.Task, log zerolog.Logger) {
	if err := n.queue.Enqueue(context.WithoutCancel(ctx), task); err != nil {
		log.Warn().Err(err).Msg("task lost on shutdown")
		return
	}
	log.Info().Msg("task returned to queue")
}

func (n *Node) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if n.config.TaskTimeLimit <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, n.config.TaskTimeLimit)
}

func (n *Node) startAttempt() func(outcome string) {
	if n.metrics == nil {
		return func(string) {}
	}
	return n.metrics.StartAttempt()
}

// backoff is the delay before retrying a task whose attempt just failed.
func (c Config) backoff(attempt int) time.Duration {
	if c.RetryBackoff <= 0 {
		return 0
	}
	return c.RetryBackoff << attempt
}

// sleep waits for d, reporting false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
