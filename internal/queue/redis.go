package queue

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gomodule/redigo/redis"

	"pkg.jsn.cam/logmate/pkg/logmate/protocol"
)

// DefaultKey is the Redis list tasks are pushed to.
const DefaultKey = "logmate:tasks"

// RedisQueue is a Queue on a Redis list: producers LPUSH, consumers BRPOP.
type RedisQueue struct {
	pool   *redis.Pool
	key    string
	poll   time.Duration
	closed atomic.Bool
}

// NewRedisQueue creates a queue on key. poll bounds how long a single BRPOP
// blocks before the consumer rechecks ctx; it is rounded up to whole seconds.
func NewRedisQueue(pool *redis.Pool, key string, poll time.Duration) *RedisQueue {
	if key == "" {
		key = DefaultKey
	}
	if poll < time.Second {
		poll = time.Second
	}
	return &RedisQueue{pool: pool, key: key, poll: poll}
}

func (q *RedisQueue) Enqueue(ctx context.Context, task protocol.Task) error {
	if q.closed.Load() {
		return ErrClosed
	}

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}

	conn, err := q.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("redis connection: %w", err)
	}
	defer conn.Close()

	if _, err := redis.DoContext(conn, ctx, "LPUSH", q.key, data); err != nil {
		return fmt.Errorf("enqueue task %s: %w", task.JobID, err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (protocol.Task, error) {
	timeout := int((q.poll + time.Second - 1) / time.Second)

	for {
		if q.closed.Load() {
			return protocol.Task{}, ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return protocol.Task{}, err
		}

		task, ok, err := q.pop(ctx, timeout)
		if err != nil {
			return protocol.Task{}, err
		}
		if ok {
			return task, nil
		}
	}
}

func (q *RedisQueue) pop(ctx context.Context, timeout int) (protocol.Task, bool, error) {
	conn, err := q.pool.GetContext(ctx)
	if err != nil {
		return protocol.Task{}, false, fmt.Errorf("redis connection: %w", err)
	}
	defer conn.Close()

	reply, err := redis.ByteSlices(redis.DoContext(conn, ctx, "BRPOP", q.key, timeout))
	if errors.Is(err, redis.ErrNil) {
		return protocol.Task{}, false, nil
	}
	if err != nil {
		if ctxErr := contextErr(ctx); ctxErr != nil {
			return protocol.Task{}, false, ctxErr
		}
		return protocol.Task{}, false, fmt.Errorf("dequeue: %w", err)
	}
	if len(reply) != 2 {
		return protocol.Task{}, false, fmt.Errorf("dequeue: unexpected BRPOP reply of %d elements", len(reply))
	}

	var task protocol.Task
	if err := json.Unmarshal(reply[1], &task); err != nil {
		return protocol.Task{}, false, fmt.Errorf("decode task: %w", err)
	}
	return task, true, nil
}

func (q *RedisQueue) Len(ctx context.Context) (int, error) {
	conn, err := q.pool.GetContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("redis connection: %w", err)
	}
	defer conn.Close()

	return redis.Int(redis.DoContext(conn, ctx, "LLEN", q.key))
}

// Close stops the queue locally. Queued tasks stay in Redis.
func (q *RedisQueue) Close() error {
	q.closed.Store(true)
	return nil
}

// contextErr is ctx.Err, but also reports a deadline that has passed before
// the context's own timer fired; the connection read deadline is set from it.
func contextErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if dl, ok := ctx.Deadline(); ok && !time.Now().Before(dl) {
		return context.DeadlineExceeded
	}
	return nil
}
