package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"pkg.jsn.cam/logmate/internal/blob"
	"pkg.jsn.cam/logmate/internal/config"
	"pkg.jsn.cam/logmate/internal/logger"
	"pkg.jsn.cam/logmate/internal/worker"
	"pkg.jsn.cam/logmate/pkg/logmate"
)

// app carries state shared by every subcommand.
type app struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

func (a *app) load() error {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	logger.Init(cfg.Logging)

	a.cfg = cfg
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func (a *app) controller(n logmate.Notifier, store *blob.S3) *logmate.Controller {
	ctrl := logmate.NewController(n)
	ctrl.Group = a.cfg.Processing.Group
	ctrl.ChunkCount = a.cfg.Processing.ChunkCount
	ctrl.ChunkDelay = a.cfg.Processing.ChunkDelay
	ctrl.Opener = blob.Opener(store, logmate.OpenLog)
	return ctrl
}

// blobStore connects to S3 when blob.bucket is set and returns nil otherwise.
func (a *app) blobStore(ctx context.Context) (*blob.S3, error) {
	if !a.cfg.Blob.Enabled() {
		return nil, nil
	}
	s, err := blob.NewS3(ctx, a.cfg.Blob)
	if err != nil {
		return nil, fmt.Errorf("blob store: %w", err)
	}
	return s, nil
}

func (a *app) workerConfig(concurrency int) worker.Config {
	w := a.cfg.Worker
	if concurrency <= 0 {
		concurrency = w.Concurrency
	}
	return worker.Config{
		Concurrency:   concurrency,
		MaxRetries:    w.MaxRetries,
		RetryBackoff:  w.RetryBackoff,
		TaskTimeLimit: w.TaskTimeLimit,
		PollInterval:  w.PollInterval,
	}
}
