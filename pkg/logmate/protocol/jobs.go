package protocol

import (
	"time"

	"pkg.jsn.cam/logmate/pkg/logmate"
)

// JobStatus represents the current state of a job
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusRetrying  JobStatus = "retrying"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether no further work will happen for the job.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job is the persisted record of one uploaded file and its processing.
type Job struct {
	ID       string    `json:"id"`
	Status   JobStatus `json:"status"`
	FileName string    `json:"file_name"`
	FilePath string    `json:"file_path"`
	FileSize int64     `json:"file_size"`
	Attempt  int       `json:"attempt"`

	// Progress
	TotalLines     int `json:"total_lines"`
	ProcessedLines int `json:"processed_lines"`
	TotalChunks    int `json:"total_chunks"`
	ChunksDone     int `json:"chunks_done"`

	// Results
	Result *logmate.Result `json:"result,omitempty"`

	// Metadata
	SubmittedAt time.Time `json:"submitted_at"`
	StartedAt   time.Time `json:"started_at,omitempty"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
	Error       string    `json:"error,omitempty"`

	// Duration in seconds, computed on read
	Duration float64 `json:"duration,omitempty"`
}

// ComputeDurations populates Duration from the job's timestamps.
func (j *Job) ComputeDurations() {
	if j.StartedAt.IsZero() {
		return
	}
	switch {
	case !j.CompletedAt.IsZero():
		j.Duration = j.CompletedAt.Sub(j.StartedAt).Seconds()
	case !j.Status.Terminal():
		j.Duration = time.Since(j.StartedAt).Seconds()
	}
}

// Percent reports progress as a whole percentage.
func (j *Job) Percent() int {
	if j.Status == JobStatusCompleted {
		return 100
	}
	if j.TotalLines == 0 {
		return 0
	}
	return j.ProcessedLines * 100 / j.TotalLines
}

// JobListResponse returns a list of jobs
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}
