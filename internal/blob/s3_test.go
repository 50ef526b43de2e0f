package blob_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkg.jsn.cam/logmate/internal/blob"
	"pkg.jsn.cam/logmate/internal/config"
	"pkg.jsn.cam/logmate/pkg/logmate"
)

// fakeS3 serves path-style PUT and GET requests from memory.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodPut:
		data, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		f.objects[r.URL.Path] = data
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		data, ok := f.objects[r.URL.Path]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		_, _ = w.Write(data)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeS3) object(path string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.objects[path]
}

func newStore(t *testing.T) (*blob.S3, *fakeS3) {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(dir, "credentials"))

	fake := &fakeS3{objects: map[string][]byte{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	store, err := blob.NewS3(context.Background(), config.BlobConfig{
		Bucket:    "logs",
		Prefix:    "uploads/",
		Region:    "us-east-1",
		Endpoint:  srv.URL,
		PathStyle: true,
		Timeout:   5 * time.Second,
	})
	require.NoError(t, err)
	return store, fake
}

func TestS3_PutAndOpen(t *testing.T) {
	store, fake := newStore(t)
	ctx := context.Background()

	body := []byte("line one\nline two\n")
	uri, err := store.Put(ctx, "abc-access.log", bytes.NewReader(body), int64(len(body)))
	require.NoError(t, err)
	assert.Equal(t, "s3://logs/uploads/abc-access.log", uri)
	assert.Equal(t, body, fake.object("/logs/uploads/abc-access.log"))

	rc, err := store.Open(ctx, uri)
	require.NoError(t, err)
	defer rc.Close()

	lines, err := logmate.ReadLines(rc)
	require.NoError(t, err)
	assert.Equal(t, []string{"line one", "line two"}, lines)
}

func TestS3_OpenGzip(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, err := zw.Write([]byte("compressed\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	uri, err := store.Put(ctx, "access.log.gz", bytes.NewReader(gz.Bytes()), int64(gz.Len()))
	require.NoError(t, err)

	rc, err := store.Open(ctx, uri)
	require.NoError(t, err)
	defer rc.Close()

	lines, err := logmate.ReadLines(rc)
	require.NoError(t, err)
	assert.Equal(t, []string{"compressed"}, lines)
}

func TestS3_OpenMissing(t *testing.T) {
	store, _ := newStore(t)

	_, err := store.Open(context.Background(), "s3://logs/uploads/missing.log")
	require.ErrorIs(t, err, logmate.ErrFileNotFound)
	assert.True(t, logmate.IsRetryable(&logmate.RetryableError{Cause: err}))
}

func TestParseURI(t *testing.T) {
	t.Parallel()

	tests := []struct {
		uri        string
		wantBucket string
		wantKey    string
		wantOK     bool
	}{
		{uri: "s3://logs/uploads/a.log", wantBucket: "logs", wantKey: "uploads/a.log", wantOK: true},
		{uri: "s3://logs/a", wantBucket: "logs", wantKey: "a", wantOK: true},
		{uri: "s3://logs", wantOK: false},
		{uri: "s3:///a.log", wantOK: false},
		{uri: "/var/log/a.log", wantOK: false},
	}

	for _, tt := range tests {
		bucket, key, ok := blob.ParseURI(tt.uri)
		if ok != tt.wantOK || bucket != tt.wantBucket || key != tt.wantKey {
			t.Errorf("ParseURI(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.uri, bucket, key, ok, tt.wantBucket, tt.wantKey, tt.wantOK)
		}
	}
}

func TestOpener_Routes(t *testing.T) {
	t.Parallel()

	var got string
	local := func(_ context.Context, path string) (io.ReadCloser, error) {
		got = path
		return io.NopCloser(strings.NewReader("")), nil
	}

	open := blob.Opener(nil, local)

	rc, err := open(context.Background(), "/tmp/a.log")
	require.NoError(t, err)
	rc.Close()
	assert.Equal(t, "/tmp/a.log", got)

	_, err = open(context.Background(), "s3://logs/a.log")
	require.ErrorIs(t, err, blob.ErrNoStore)
}
