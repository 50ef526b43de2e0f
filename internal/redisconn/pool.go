// Package redisconn builds the Redis connection pool shared by the queue and
// the event channel.
package redisconn

import (
	"context"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"
)

// NewPool returns a pool dialing rawURL (redis://[:password@]host:port/db).
// The URL is validated by dialing once.
func NewPool(ctx context.Context, rawURL string, maxActive int) (*redis.Pool, error) {
	pool := &redis.Pool{
		MaxIdle:     max(2, maxActive/2),
		MaxActive:   maxActive,
		IdleTimeout: 5 * time.Minute,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			return redis.DialURLContext(ctx, rawURL, redis.DialConnectTimeout(5*time.Second))
		},
		TestOnBorrow: func(c redis.Conn, lastUsed time.Time) error {
			if time.Since(lastUsed) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}

	conn, err := pool.GetContext(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	defer conn.Close()

	if _, err := redis.DoContext(conn, ctx, "PING"); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return pool, nil
}
