// Package logger configures the process-wide zerolog logger.
package logger

import (
	"io"
	stdlog "log"
	"os"
	"strings"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"pkg.jsn.cam/logmate/internal/config"
)

// Init installs the global logger described by cfg. It is called once at
// startup, before any component logs.
//
// Pretty output is for terminals; otherwise every line is JSON. All lines
// carry service and instance fields. With SampleN > 1 only one in N debug
// and info lines is kept; warnings and errors are never sampled.
func Init(cfg config.LoggingConfig) {
	InitWriter(cfg, os.Stderr)
}

// InitWriter is Init with an explicit destination.
func InitWriter(cfg config.LoggingConfig, out io.Writer) {
	level := zerolog.InfoLevel
	if l, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level))); err == nil && cfg.Level != "" {
		level = l
	}
	zerolog.SetGlobalLevel(level)

	w := out
	if cfg.Pretty {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	ctx := zerolog.New(w).Level(level).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	if cfg.Instance != "" {
		ctx = ctx.Str("instance", cfg.Instance)
	}
	logger := ctx.Logger()

	if cfg.SampleN > 1 {
		logger = logger.Sample(&zerolog.LevelSampler{
			DebugSampler: &zerolog.BasicSampler{N: cfg.SampleN},
			InfoSampler:  &zerolog.BasicSampler{N: cfg.SampleN},
		})
	}

	zlog.Logger = logger

	// Libraries using the standard logger end up in the same stream.
	stdlog.SetFlags(0)
	stdlog.SetOutput(zlog.Logger)
}
