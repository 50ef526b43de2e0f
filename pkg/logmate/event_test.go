package logmate_test

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkg.jsn.cam/logmate/pkg/logmate"
)

func decodeFields(t *testing.T, ev logmate.Event) map[string]any {
	t.Helper()

	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func TestEvent_FieldsPerType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ev      logmate.Event
		present []string
		absent  []string
	}{
		{
			ev:      logmate.Event{Type: logmate.EventStart, JobID: "j"},
			present: []string{"event", "task_id", "fileName", "fileSize", "totalLines", "totalChunks"},
			absent:  []string{"chunkIndex", "result", "message"},
		},
		{
			ev:      logmate.Event{Type: logmate.EventChunk, JobID: "j", ChunkIndex: 1},
			present: []string{"chunkIndex", "totalChunks", "processedCount", "totalLines", "fileSize"},
			absent:  []string{"result", "message"},
		},
		{
			ev:      logmate.Event{Type: logmate.EventComplete, JobID: "j", Result: &logmate.Result{}},
			present: []string{"result", "fileSize"},
			absent:  []string{"totalLines", "chunkIndex", "message"},
		},
		{
			ev:      logmate.Event{Type: logmate.EventError, JobID: "j", Message: "boom"},
			present: []string{"message", "fileName"},
			absent:  []string{"totalLines", "result", "fileSize"},
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.ev.Type), func(t *testing.T) {
			t.Parallel()

			m := decodeFields(t, tt.ev)
			assert.Equal(t, string(tt.ev.Type), m["event"])
			for _, k := range tt.present {
				assert.Contains(t, m, k)
			}
			for _, k := range tt.absent {
				assert.NotContains(t, m, k)
			}
		})
	}
}

func TestEvent_DecodeComplete(t *testing.T) {
	t.Parallel()

	ev := logmate.Event{
		Type:   logmate.EventComplete,
		JobID:  "job-1",
		Result: &logmate.Result{LineCount: 2, TopIPs: []logmate.Ranked{{Key: "1.1.1.1", Count: 2}}},
	}
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"topIPs":[["1.1.1.1",2]]`)

	var got logmate.Event
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "job-1", got.JobID)
	require.NotNil(t, got.Result)
	assert.Equal(t, ev.Result.TopIPs, got.Result.TopIPs)
}
