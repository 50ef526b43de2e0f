package logmate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// MaxRetries is how many times a failed job is run again before it is
// reported as permanently failed.
const MaxRetries = 3

// JobSpec identifies one attempt at processing a file.
type JobSpec struct {
	JobID    string
	FilePath string
	// FileName and FileSize are resolved from FilePath when empty.
	FileName string
	FileSize int64
	Attempt  int
}

// displayName is the best-effort file name reported in ERROR events.
func (s JobSpec) displayName() string {
	if s.FileName != "" || s.FilePath == "" {
		return s.FileName
	}
	return filepath.Base(s.FilePath)
}

// Controller runs the parse-aggregate-report pipeline for a file and
// publishes its progress.
type Controller struct {
	Notifier   Notifier
	Group      string
	ChunkCount int
	ChunkDelay time.Duration
	Opener     Opener
	Now        func() time.Time
}

// NewController creates a controller with default settings.
func NewController(n Notifier) *Controller {
	return &Controller{
		Notifier:   n,
		Group:      DefaultGroup,
		ChunkCount: DefaultChunkCount,
		Opener:     OpenLog,
		Now:        time.Now,
	}
}

// Execute processes the file named by spec. On any failure an ERROR event is
// published and the returned error is a *RetryableError or *FatalError.
func (c *Controller) Execute(ctx context.Context, spec JobSpec) (Result, error) {
	log := zlog.With().
		Str("component", "controller").
		Str("job_id", spec.JobID).
		Int("attempt", spec.Attempt).
		Logger()

	res, err := c.execute(ctx, &spec, log)
	if err == nil {
		return res, nil
	}

	log.Error().Err(err).Str("file", spec.displayName()).Msg("error processing log file")

	// The attempt may have failed because ctx expired; observers still get ERROR.
	pubErr := c.publish(context.WithoutCancel(ctx), Event{
		Type:     EventError,
		JobID:    spec.JobID,
		FileName: spec.displayName(),
		Message:  err.Error(),
		Attempt:  spec.Attempt,
	})
	if pubErr != nil {
		err = errors.Join(err, fmt.Errorf("publish error event: %w", pubErr))
	}

	return Result{}, classify(ctx, err)
}

// ReportExhausted publishes the final ERROR for a job whose retries are used
// up, so observers know no further attempt will follow.
func (c *Controller) ReportExhausted(ctx context.Context, spec JobSpec, cause *RetryExhaustedError) error {
	return c.publish(ctx, Event{
		Type:     EventError,
		JobID:    spec.JobID,
		FileName: spec.displayName(),
		Message:  cause.Error(),
		Final:    true,
		Attempt:  spec.Attempt,
	})
}

func (c *Controller) execute(ctx context.Context, spec *JobSpec, log zerolog.Logger) (Result, error) {
	if spec.FilePath == "" {
		return Result{}, ErrNoFilePath
	}
	if spec.FileName == "" {
		spec.FileName = filepath.Base(spec.FilePath)
	}
	if spec.FileSize == 0 {
		if info, err := os.Stat(spec.FilePath); err == nil {
			spec.FileSize = info.Size()
		}
	}

	log.Info().
		Str("file", spec.FileName).
		Str("size", humanize.Bytes(uint64(spec.FileSize))).
		Msg("processing log file")

	lines, err := c.readLines(ctx, spec.FilePath)
	if err != nil {
		return Result{}, err
	}
	totalLines := len(lines)
	chunks := c.chunkCount()
	log.Info().Str("file", spec.FileName).Int("lines", totalLines).Msg("file loaded")

	err = c.publish(ctx, Event{
		Type:        EventStart,
		JobID:       spec.JobID,
		FileName:    spec.FileName,
		FileSize:    spec.FileSize,
		TotalLines:  totalLines,
		TotalChunks: chunks,
		Attempt:     spec.Attempt,
	})
	if err != nil {
		return Result{}, fmt.Errorf("publish start event: %w", err)
	}

	// Short files run fewer chunks than announced; totalChunks stays the
	// configured count on every event.
	opts := RunOptions{ChunkCount: chunks, Delay: c.ChunkDelay}
	agg, err := RunChunks(ctx, lines, opts, func(p ChunkProgress) error {
		log.Debug().Int("chunk", p.Index).Int("of", p.Total).Int("processed", p.Processed).Msg("chunk done")
		err := c.publish(ctx, Event{
			Type:           EventChunk,
			JobID:          spec.JobID,
			FileName:       spec.FileName,
			FileSize:       spec.FileSize,
			ChunkIndex:     p.Index,
			TotalChunks:    chunks,
			ProcessedCount: p.Processed,
			TotalLines:     p.TotalLines,
			Attempt:        spec.Attempt,
		})
		if err != nil {
			return fmt.Errorf("publish chunk event %d: %w", p.Index, err)
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	res, err := agg.FinalizeChecked()
	if err != nil {
		return Result{}, err
	}

	err = c.publish(ctx, Event{
		Type:     EventComplete,
		JobID:    spec.JobID,
		FileName: spec.FileName,
		FileSize: spec.FileSize,
		Result:   &res,
		Attempt:  spec.Attempt,
	})
	if err != nil {
		return Result{}, fmt.Errorf("publish complete event: %w", err)
	}

	log.Info().
		Str("file", spec.FileName).
		Int("parsed", res.ParsedLines).
		Int("skipped", res.SkippedLines).
		Msg("log file processed")

	return res, nil
}

func (c *Controller) readLines(ctx context.Context, path string) ([]string, error) {
	open := c.Opener
	if open == nil {
		open = OpenLog
	}

	rc, err := open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return ReadLines(rc)
}

func (c *Controller) publish(ctx context.Context, ev Event) error {
	if c.Notifier == nil {
		return nil
	}
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	ev.Timestamp = now().UTC()

	group := c.Group
	if group == "" {
		group = DefaultGroup
	}
	return c.Notifier.Publish(ctx, group, ev)
}

func (c *Controller) chunkCount() int {
	if c.ChunkCount <= 0 {
		return DefaultChunkCount
	}
	return c.ChunkCount
}
