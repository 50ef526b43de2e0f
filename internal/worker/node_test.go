package worker

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkg.jsn.cam/logmate/internal/metrics"
	"pkg.jsn.cam/logmate/internal/queue"
	"pkg.jsn.cam/logmate/internal/store"
	"pkg.jsn.cam/logmate/pkg/logmate"
	"pkg.jsn.cam/logmate/pkg/logmate/notify"
	"pkg.jsn.cam/logmate/pkg/logmate/protocol"
	"pkg.jsn.cam/logmate/pkg/storage"
)

const sampleLog = `10.0.0.1 - - [22/Mar/2025:15:42:10 +0000] "GET /home HTTP/1.1" 200 512 "-" "Mozilla/5.0"
10.0.0.2 - - [22/Mar/2025:15:42:11 +0000] "POST /cart HTTP/1.1" 201 128 "-" "curl/8.0"
not a log line
`

func writeSample(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "access.log")
	require.NoError(t, os.WriteFile(path, []byte(sampleLog), 0o644))
	return path
}

// runNode starts n in the background and stops it when the test ends.
func runNode(t *testing.T, n *Node) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = n.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})
}

func lastEvent(rec *notify.Recorder) (logmate.Event, bool) {
	events := rec.Events()
	if len(events) == 0 {
		return logmate.Event{}, false
	}
	return events[len(events)-1], true
}

func finished(rec *notify.Recorder) func() bool {
	return func() bool {
		ev, ok := lastEvent(rec)
		return ok && (ev.Type == logmate.EventComplete || ev.Final)
	}
}

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rr.Body.String()
}

func task(id, path string) protocol.Task {
	return protocol.Task{JobID: id, FilePath: path, Version: protocol.LogmateVersion}
}

func TestNode_ProcessesTask(t *testing.T) {
	t.Parallel()

	q := queue.NewMemoryQueue()
	rec := notify.NewRecorder()
	m := metrics.New()
	n := NewNode(Config{MaxRetries: 3}, q, logmate.NewController(m.Notifier(rec)), m)

	require.NoError(t, q.Enqueue(context.Background(), task("job-1", writeSample(t))))
	runNode(t, n)

	require.Eventually(t, finished(rec), 5*time.Second, 10*time.Millisecond)

	ev, _ := lastEvent(rec)
	assert.Equal(t, logmate.EventComplete, ev.Type)
	require.NotNil(t, ev.Result)
	assert.Equal(t, 3, ev.Result.LineCount)
	assert.Equal(t, 1, ev.Result.SkippedLines)
	assert.Equal(t, int64(640), ev.Result.TotalBytes)

	require.Eventually(t, func() bool {
		return strings.Contains(scrape(t, m), `logmate_jobs_total{outcome="completed"} 1`)
	}, time.Second, 10*time.Millisecond)
}

func TestNode_RetriesUntilExhausted(t *testing.T) {
	t.Parallel()

	q := queue.NewMemoryQueue()
	rec := notify.NewRecorder()
	n := NewNode(Config{MaxRetries: 2, RetryBackoff: time.Millisecond}, q, logmate.NewController(rec), nil)

	missing := filepath.Join(t.TempDir(), "gone.log")
	require.NoError(t, q.Enqueue(context.Background(), task("job-2", missing)))
	runNode(t, n)

	require.Eventually(t, finished(rec), 5*time.Second, 10*time.Millisecond)

	events := rec.Events()
	require.Len(t, events, 4)
	for i, ev := range events[:3] {
		assert.Equal(t, logmate.EventError, ev.Type)
		assert.Equal(t, i, ev.Attempt)
		assert.False(t, ev.Final)
	}

	final := events[3]
	assert.Equal(t, logmate.EventError, final.Type)
	assert.True(t, final.Final)
	assert.Equal(t, 2, final.Attempt)
	assert.Contains(t, final.Message, "job job-2 failed after 3 attempts")
}

func TestNode_RetryThenSucceed(t *testing.T) {
	t.Parallel()

	q := queue.NewMemoryQueue()
	rec := notify.NewRecorder()
	ctrl := logmate.NewController(rec)

	var opens atomic.Int32
	ctrl.Opener = func(ctx context.Context, path string) (io.ReadCloser, error) {
		if opens.Add(1) == 1 {
			return nil, errors.New("disk hiccup")
		}
		return logmate.OpenLog(ctx, path)
	}

	n := NewNode(Config{MaxRetries: 3, RetryBackoff: time.Millisecond}, q, ctrl, nil)
	require.NoError(t, q.Enqueue(context.Background(), task("job-3", writeSample(t))))
	runNode(t, n)

	require.Eventually(t, finished(rec), 5*time.Second, 10*time.Millisecond)

	types := rec.Types()
	assert.Equal(t, logmate.EventError, types[0])
	assert.Equal(t, logmate.EventStart, types[1])
	assert.Equal(t, logmate.EventComplete, types[len(types)-1])

	for _, ev := range rec.Events()[1:] {
		assert.Equal(t, 1, ev.Attempt)
	}
}

func TestNode_RejectsIncompatibleTask(t *testing.T) {
	t.Parallel()

	q := queue.NewMemoryQueue()
	rec := notify.NewRecorder()
	n := NewNode(Config{MaxRetries: 3}, q, logmate.NewController(rec), nil)

	tk := task("job-4", writeSample(t))
	tk.Version = "v9.0.0"
	require.NoError(t, q.Enqueue(context.Background(), tk))
	runNode(t, n)

	require.Eventually(t, finished(rec), 5*time.Second, 10*time.Millisecond)

	events := rec.Events()
	require.Len(t, events, 1)
	assert.True(t, events[0].Final)
	assert.Contains(t, events[0].Message, "incompatible")
}

func TestNode_TracksJobStatus(t *testing.T) {
	t.Parallel()

	jobs, err := store.NewJobStore(storage.NewMemoryBackend())
	require.NoError(t, err)

	rec := notify.NewRecorder()
	q := queue.NewMemoryQueue()
	n := NewNode(Config{Concurrency: 2, MaxRetries: 1, RetryBackoff: time.Millisecond}, q,
		logmate.NewController(store.NewTracker(jobs, rec)), nil)

	good := writeSample(t)
	missing := filepath.Join(t.TempDir(), "missing.log")
	for id, path := range map[string]string{"ok": good, "bad": missing} {
		_, err := jobs.Create(protocol.Job{ID: id, FilePath: path})
		require.NoError(t, err)
		require.NoError(t, q.Enqueue(context.Background(), task(id, path)))
	}
	runNode(t, n)

	require.Eventually(t, func() bool {
		ok, _ := jobs.Get("ok")
		bad, _ := jobs.Get("bad")
		return ok.Status.Terminal() && bad.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)

	ok, err := jobs.Get("ok")
	require.NoError(t, err)
	assert.Equal(t, protocol.JobStatusCompleted, ok.Status)
	require.NotNil(t, ok.Result)
	assert.Equal(t, 2, ok.Result.ParsedLines)

	bad, err := jobs.Get("bad")
	require.NoError(t, err)
	assert.Equal(t, protocol.JobStatusFailed, bad.Status)
	assert.Contains(t, bad.Error, "after 2 attempts")
}

func TestNode_StopsWhenQueueCloses(t *testing.T) {
	t.Parallel()

	q := queue.NewMemoryQueue()
	n := NewNode(Config{Concurrency: 3}, q, logmate.NewController(nil), nil)

	done := make(chan error, 1)
	go func() { done <- n.Start(context.Background()) }()

	require.NoError(t, q.Close())
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after queue close")
	}
}

func TestNode_ShutdownReturnsWaitingTask(t *testing.T) {
	t.Parallel()

	q := queue.NewMemoryQueue()
	n := NewNode(Config{}, q, logmate.NewController(nil), nil)

	tk := task("job-5", writeSample(t))
	tk.NotBefore = time.Now().Add(time.Hour)
	require.NoError(t, q.Enqueue(context.Background(), tk))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = n.Start(ctx)
	}()

	require.Eventually(t, func() bool {
		l, _ := q.Len(context.Background())
		return l == 0
	}, 5*time.Second, 10*time.Millisecond)
	cancel()
	<-done

	l, err := q.Len(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, l)
}

func TestConfig_Backoff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		base    time.Duration
		attempt int
		want    time.Duration
	}{
		{base: time.Second, attempt: 0, want: time.Second},
		{base: time.Second, attempt: 1, want: 2 * time.Second},
		{base: time.Second, attempt: 2, want: 4 * time.Second},
		{base: 0, attempt: 2, want: 0},
	}

	for _, tt := range tests {
		got := Config{RetryBackoff: tt.base}.backoff(tt.attempt)
		if got != tt.want {
			t.Errorf("backoff(%v, %d) = %v, want %v", tt.base, tt.attempt, got, tt.want)
		}
	}
}

func TestNewNode_Defaults(t *testing.T) {
	t.Parallel()

	n := NewNode(Config{MaxRetries: -1}, queue.NewMemoryQueue(), logmate.NewController(nil), nil)

	if n.ID() == "" {
		t.Error("expected generated worker id")
	}
	if n.config.Concurrency != 1 {
		t.Errorf("Concurrency = %d, want 1", n.config.Concurrency)
	}
	if n.config.MaxRetries != 0 {
		t.Errorf("MaxRetries = %d, want 0", n.config.MaxRetries)
	}
}
