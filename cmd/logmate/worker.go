package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"pkg.jsn.cam/logmate/internal/metrics"
	"pkg.jsn.cam/logmate/internal/queue"
	"pkg.jsn.cam/logmate/internal/redisconn"
	"pkg.jsn.cam/logmate/internal/worker"
	"pkg.jsn.cam/logmate/pkg/logmate/notify"
)

var errWorkerNeedsRedis = errors.New("worker needs redis.enabled: the in-memory queue only exists inside \"logmate serve\"")

func newWorkerCmd(a *app) *cobra.Command {
	var (
		concurrency int
		metricsAddr string
		id          string
	)

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Process queued uploads from Redis",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !a.cfg.Redis.Enabled {
				return errWorkerNeedsRedis
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return a.runWorker(ctx, id, concurrency, metricsAddr)
		},
	}

	cmd.Flags().IntVarP(&concurrency, "concurrency", "n", 0, "override worker.concurrency")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().StringVar(&id, "id", "", "worker id (default: random)")
	return cmd
}

func (a *app) runWorker(ctx context.Context, id string, concurrency int, metricsAddr string) error {
	cfg := a.cfg

	pool, err := redisconn.NewPool(ctx, cfg.Redis.URL, cfg.Redis.MaxActive)
	if err != nil {
		return err
	}
	defer pool.Close()

	blobs, err := a.blobStore(ctx)
	if err != nil {
		return err
	}

	m := metrics.New()
	q := queue.NewRedisQueue(pool, cfg.Redis.QueueKey, cfg.Worker.PollInterval)
	ctrl := a.controller(m.Notifier(notify.NewRedis(pool, cfg.Redis.ChannelPrefix)), blobs)

	wcfg := a.workerConfig(concurrency)
	wcfg.ID = id
	node := worker.NewNode(wcfg, q, ctrl, m)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return node.Start(ctx) })
	if metricsAddr != "" {
		g.Go(func() error { return serveMetrics(ctx, metricsAddr, m) })
	}
	return g.Wait()
}

func serveMetrics(ctx context.Context, addr string, m *metrics.Metrics) error {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	zlog.Info().Str("component", "metrics").Str("addr", addr).Msg("serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
