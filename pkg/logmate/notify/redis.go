package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gomodule/redigo/redis"
	zlog "github.com/rs/zerolog/log"

	"pkg.jsn.cam/logmate/pkg/logmate"
)

// DefaultChannelPrefix namespaces logmate pub/sub channels.
const DefaultChannelPrefix = "logmate:events:"

// Redis publishes events as JSON on the channel prefix+group.
type Redis struct {
	pool   *redis.Pool
	prefix string
}

// NewRedis creates a publisher on pool. An empty prefix uses
// DefaultChannelPrefix.
func NewRedis(pool *redis.Pool, prefix string) *Redis {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &Redis{pool: pool, prefix: prefix}
}

func (r *Redis) Publish(ctx context.Context, group string, ev logmate.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("redis connection: %w", err)
	}
	defer conn.Close()

	if _, err := redis.DoContext(conn, ctx, "PUBLISH", r.prefix+group, data); err != nil {
		return fmt.Errorf("publish to %s: %w", r.prefix+group, err)
	}
	return nil
}

// Relay subscribes to every logmate channel on Redis and republishes the
// decoded events to a local sink, typically a Hub serving websockets.
type Relay struct {
	pool   *redis.Pool
	prefix string
	sink   logmate.Notifier

	// Reconnect is the pause before resubscribing after a connection error.
	Reconnect time.Duration
}

// NewRelay creates a relay from pool into sink.
func NewRelay(pool *redis.Pool, prefix string, sink logmate.Notifier) *Relay {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &Relay{pool: pool, prefix: prefix, sink: sink, Reconnect: time.Second}
}

// Run relays until ctx is cancelled, resubscribing after connection errors.
func (r *Relay) Run(ctx context.Context) error {
	log := zlog.With().Str("component", "relay").Str("pattern", r.prefix+"*").Logger()
	log.Info().Msg("relay started")

	for {
		err := r.run(ctx)
		if ctx.Err() != nil {
			log.Info().Msg("relay stopped")
			return nil
		}
		log.Warn().Err(err).Dur("retry_in", r.Reconnect).Msg("relay connection lost")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(r.Reconnect):
		}
	}
}

func (r *Relay) run(ctx context.Context) error {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("redis connection: %w", err)
	}
	psc := redis.PubSubConn{Conn: conn}
	defer psc.Close()

	if err := psc.PSubscribe(r.prefix + "*"); err != nil {
		return fmt.Errorf("psubscribe: %w", err)
	}

	for {
		switch v := psc.ReceiveContext(ctx).(type) {
		case redis.Message:
			r.forward(ctx, v.Channel, v.Data)
		case redis.Subscription:
			zlog.Debug().Str("component", "relay").Str("kind", v.Kind).Str("channel", v.Channel).Msg("subscription changed")
		case error:
			return v
		}
	}
}

func (r *Relay) forward(ctx context.Context, channel string, data []byte) {
	group := strings.TrimPrefix(channel, r.prefix)

	var ev logmate.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		zlog.Warn().Err(err).Str("component", "relay").Str("channel", channel).Msg("dropping undecodable event")
		return
	}
	if err := r.sink.Publish(ctx, group, ev); err != nil && !errors.Is(err, context.Canceled) {
		zlog.Warn().Err(err).Str("component", "relay").Str("job_id", ev.JobID).Msg("local publish failed")
	}
}
