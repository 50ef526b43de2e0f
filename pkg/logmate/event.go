package logmate

import (
	"context"
	"time"

	json "github.com/goccy/go-json"
)

// EventType identifies a progress event.
type EventType string

const (
	EventStart    EventType = "START"
	EventChunk    EventType = "CHUNK"
	EventComplete EventType = "COMPLETE"
	EventError    EventType = "ERROR"
)

// DefaultGroup is the broadcast group job events are published to.
const DefaultGroup = "logstatus_group"

// Event is a progress message for one job. Which fields are set depends on
// Type:
//
//	START     JobID, FileName, FileSize, TotalLines, TotalChunks
//	CHUNK     JobID, FileName, FileSize, ChunkIndex, TotalChunks, ProcessedCount, TotalLines
//	COMPLETE  JobID, FileName, FileSize, Result
//	ERROR     JobID, FileName, Message, Final
//
// Final marks the last ERROR of a job, sent once its retries are used up.
type Event struct {
	Type           EventType `json:"event"`
	JobID          string    `json:"task_id"`
	FileName       string    `json:"fileName"`
	FileSize       int64     `json:"fileSize"`
	TotalLines     int       `json:"totalLines"`
	TotalChunks    int       `json:"totalChunks"`
	ChunkIndex     int       `json:"chunkIndex"`
	ProcessedCount int       `json:"processedCount"`
	Result         *Result   `json:"result"`
	Message        string    `json:"message"`
	Final          bool      `json:"final"`
	Attempt        int       `json:"attempt"`
	Timestamp      time.Time `json:"timestamp"`
}

type eventHeader struct {
	Type      EventType `json:"event"`
	JobID     string    `json:"task_id"`
	FileName  string    `json:"fileName"`
	Attempt   int       `json:"attempt"`
	Timestamp time.Time `json:"timestamp"`
}

// MarshalJSON writes only the fields that belong to the event's type, so a
// zero count is still sent where it is meaningful.
func (e Event) MarshalJSON() ([]byte, error) {
	h := eventHeader{Type: e.Type, JobID: e.JobID, FileName: e.FileName, Attempt: e.Attempt, Timestamp: e.Timestamp}

	switch e.Type {
	case EventStart:
		return json.Marshal(struct {
			eventHeader
			FileSize    int64 `json:"fileSize"`
			TotalLines  int   `json:"totalLines"`
			TotalChunks int   `json:"totalChunks"`
		}{h, e.FileSize, e.TotalLines, e.TotalChunks})
	case EventChunk:
		return json.Marshal(struct {
			eventHeader
			FileSize       int64 `json:"fileSize"`
			ChunkIndex     int   `json:"chunkIndex"`
			TotalChunks    int   `json:"totalChunks"`
			ProcessedCount int   `json:"processedCount"`
			TotalLines     int   `json:"totalLines"`
		}{h, e.FileSize, e.ChunkIndex, e.TotalChunks, e.ProcessedCount, e.TotalLines})
	case EventComplete:
		return json.Marshal(struct {
			eventHeader
			FileSize int64   `json:"fileSize"`
			Result   *Result `json:"result"`
		}{h, e.FileSize, e.Result})
	default:
		return json.Marshal(struct {
			eventHeader
			Message string `json:"message"`
			Final   bool   `json:"final,omitempty"`
		}{h, e.Message, e.Final})
	}
}

// Notifier publishes job events to a broadcast group. Implementations must
// deliver events from one caller in the order they were published.
type Notifier interface {
	Publish(ctx context.Context, group string, ev Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, group string, ev Event) error

func (f NotifierFunc) Publish(ctx context.Context, group string, ev Event) error {
	return f(ctx, group, ev)
}
