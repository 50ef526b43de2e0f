package main

import (
	"context"
	"fmt"

	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"pkg.jsn.cam/logmate/internal/metrics"
	"pkg.jsn.cam/logmate/internal/queue"
	"pkg.jsn.cam/logmate/internal/redisconn"
	"pkg.jsn.cam/logmate/internal/server"
	"pkg.jsn.cam/logmate/internal/store"
	"pkg.jsn.cam/logmate/internal/worker"
	"pkg.jsn.cam/logmate/pkg/logmate/notify"
	"pkg.jsn.cam/logmate/pkg/storage"
)

// hubBuffer is the per-subscriber event backlog of the websocket hub.
const hubBuffer = 256

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the upload API and progress websocket",
		Long: `Serve accepts uploads, queues them and streams progress to websocket
clients.

Without Redis the queue lives in memory and workers run inside the server.
With redis.enabled the queue and event channel are shared with standalone
"logmate worker" processes.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return a.serve(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "override server.addr")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg
	log := zlog.With().Str("component", "serve").Logger()

	backend, err := storage.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open job store: %w", err)
	}
	defer backend.Close()

	jobs, err := store.NewJobStore(backend)
	if err != nil {
		return err
	}

	maxUpload, err := cfg.MaxUploadBytes()
	if err != nil {
		return err
	}

	blobs, err := a.blobStore(ctx)
	if err != nil {
		return err
	}

	m := metrics.New()
	hub := notify.NewHub(hubBuffer)
	defer hub.Close()

	// Every event reaching the hub first updates the job record.
	tracker := store.NewTracker(jobs, hub)

	g, ctx := errgroup.WithContext(ctx)

	var (
		q         queue.Queue
		queueKind string
	)
	if cfg.Redis.Enabled {
		pool, err := redisconn.NewPool(ctx, cfg.Redis.URL, cfg.Redis.MaxActive)
		if err != nil {
			return err
		}
		defer pool.Close()

		q = queue.NewRedisQueue(pool, cfg.Redis.QueueKey, cfg.Worker.PollInterval)
		queueKind = "redis"

		if blobs == nil {
			log.Warn().Msg("blob store disabled: standalone workers must share server.upload_dir")
		}

		relay := notify.NewRelay(pool, cfg.Redis.ChannelPrefix, tracker)
		g.Go(func() error { return relay.Run(ctx) })

		if n := cfg.Server.EmbeddedWorkers; n > 0 {
			ctrl := a.controller(m.Notifier(notify.NewRedis(pool, cfg.Redis.ChannelPrefix)), blobs)
			node := worker.NewNode(a.workerConfig(n), q, ctrl, m)
			g.Go(func() error { return node.Start(ctx) })
		}
	} else {
		mq := queue.NewMemoryQueue()
		defer mq.Close()
		q = mq
		queueKind = "memory"

		ctrl := a.controller(m.Notifier(tracker), blobs)
		node := worker.NewNode(a.workerConfig(cfg.Server.EmbeddedWorkers), q, ctrl, m)
		g.Go(func() error { return node.Start(ctx) })
	}

	srv, err := server.NewServer(server.Options{
		Addr:              cfg.Server.Addr,
		UploadDir:         cfg.Server.UploadDir,
		MaxUploadBytes:    maxUpload,
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		CSRF:              cfg.Server.CSRF,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		Group:             cfg.Processing.Group,
		QueueKind:         queueKind,
	}, server.Deps{
		Jobs:    jobs,
		Queue:   q,
		Hub:     hub,
		Metrics: m,
		Blob:    blobs,
	})
	if err != nil {
		return err
	}

	g.Go(func() error { return srv.Start(ctx) })

	log.Info().Str("addr", cfg.Server.Addr).Str("queue", queueKind).Bool("blob", blobs != nil).Msg("logmate server running")
	return g.Wait()
}
