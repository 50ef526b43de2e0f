package notify

import (
	"context"
	"sync"

	"pkg.jsn.cam/logmate/pkg/logmate"
)

// Recorded is one event captured by a Recorder.
type Recorded struct {
	Group string
	Event logmate.Event
}

// Recorder keeps every published event in memory.
type Recorder struct {
	mu      sync.Mutex
	entries []Recorded

	// FailOn, when set, is consulted before recording. A non-nil error is
	// returned from Publish and the event is not recorded.
	FailOn func(ev logmate.Event) error
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(_ context.Context, group string, ev logmate.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailOn != nil {
		if err := r.FailOn(ev); err != nil {
			return err
		}
	}
	r.entries = append(r.entries, Recorded{Group: group, Event: ev})
	return nil
}

// Entries returns a copy of everything recorded so far.
func (r *Recorder) Entries() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Recorded(nil), r.entries...)
}

// Events returns the recorded events in publish order.
func (r *Recorder) Events() []logmate.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]logmate.Event, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Event
	}
	return out
}

// Types returns the type of each recorded event in publish order.
func (r *Recorder) Types() []logmate.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]logmate.EventType, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Event.Type
	}
	return out
}

// ForJob returns the events recorded for one job.
func (r *Recorder) ForJob(jobID string) []logmate.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []logmate.Event
	for _, e := range r.entries {
		if e.Event.JobID == jobID {
			out = append(out, e.Event)
		}
	}
	return out
}

// Reset discards all recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
}
