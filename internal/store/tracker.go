package store

import (
	"context"
	"errors"

	zlog "github.com/rs/zerolog/log"

	"pkg.jsn.cam/logmate/pkg/logmate"
	"pkg.jsn.cam/logmate/pkg/logmate/protocol"
)

// Tracker is a logmate.Notifier that records each event on the job it
// belongs to, then forwards it to next.
type Tracker struct {
	store *JobStore
	next  logmate.Notifier
}

// NewTracker wraps next. A nil next only records.
func NewTracker(store *JobStore, next logmate.Notifier) *Tracker {
	return &Tracker{store: store, next: next}
}

func (t *Tracker) Publish(ctx context.Context, group string, ev logmate.Event) error {
	_, err := t.store.Update(ev.JobID, func(job *protocol.Job) error {
		Apply(job, ev)
		return nil
	})
	switch {
	case errors.Is(err, ErrJobNotFound):
		zlog.Debug().Str("component", "tracker").Str("job_id", ev.JobID).Msg("event for untracked job")
	case err != nil:
		// Status tracking is best effort; observers still get the event.
		zlog.Warn().Err(err).Str("component", "tracker").Str("job_id", ev.JobID).Msg("failed to persist job status")
	}

	if t.next == nil {
		return nil
	}
	return t.next.Publish(ctx, group, ev)
}

// Apply folds ev into job. Events for jobs that already finished are ignored.
func Apply(job *protocol.Job, ev logmate.Event) {
	if job.Status.Terminal() {
		return
	}

	switch ev.Type {
	case logmate.EventStart:
		job.Status = protocol.JobStatusRunning
		job.Attempt = ev.Attempt
		job.TotalLines = ev.TotalLines
		job.TotalChunks = ev.TotalChunks
		job.ProcessedLines = 0
		job.ChunksDone = 0
		if ev.FileSize > 0 {
			job.FileSize = ev.FileSize
		}
		if job.StartedAt.IsZero() {
			job.StartedAt = ev.Timestamp
		}

	case logmate.EventChunk:
		job.ProcessedLines = ev.ProcessedCount
		job.ChunksDone = ev.ChunkIndex

	case logmate.EventComplete:
		job.Status = protocol.JobStatusCompleted
		job.Result = ev.Result
		job.Error = ""
		job.CompletedAt = ev.Timestamp
		if ev.Result != nil {
			job.ProcessedLines = ev.Result.LineCount
			job.TotalLines = ev.Result.LineCount
		}

	case logmate.EventError:
		job.Status = protocol.JobStatusRetrying
		job.Attempt = ev.Attempt
		job.Error = ev.Message
		if ev.Final {
			job.Status = protocol.JobStatusFailed
			job.CompletedAt = ev.Timestamp
		}
	}
}
