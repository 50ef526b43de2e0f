package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkg.jsn.cam/logmate/pkg/logmate"
	"pkg.jsn.cam/logmate/pkg/logmate/protocol"
)

// run executes the CLI with a quiet config file and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cfgPath := filepath.Join(t.TempDir(), "logmate.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("logging:\n  level: error\n"), 0o644))

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))

	err := cmd.Execute()
	return stdout.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "logmate "+protocol.LogmateVersion+"\n", out)
}

func TestGenerateThenAnalyze(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, "generate", "--out", dir, "--lines", "200", "--seed", "7", "-q")
	require.NoError(t, err)
	assert.Contains(t, out, "200 lines")

	path := filepath.Join(dir, "access-001.log")
	out, err = run(t, "analyze", "-q", "--format", "json", path)
	require.NoError(t, err)

	var got struct {
		File   string         `json:"file"`
		Result logmate.Result `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, path, got.File)
	assert.Equal(t, 200, got.Result.LineCount)
	assert.Equal(t, 200, got.Result.ParsedLines)
	assert.LessOrEqual(t, len(got.Result.TopPaths), 3)
}

func TestAnalyze_MissingFile(t *testing.T) {
	_, err := run(t, "analyze", "-q", filepath.Join(t.TempDir(), "missing.log"))
	require.ErrorIs(t, err, logmate.ErrFileNotFound)
}

func TestGenerate_NeedsTarget(t *testing.T) {
	_, err := run(t, "generate", "--out", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "set --lines or --size")
}

func TestWorker_NeedsRedis(t *testing.T) {
	_, err := run(t, "worker")
	require.ErrorIs(t, err, errWorkerNeedsRedis)
}

func TestGenerateOptions_SizeRange(t *testing.T) {
	tests := []struct {
		name    string
		opts    generateOptions
		lo, hi  int64
		wantErr string
	}{
		{name: "none", opts: generateOptions{}},
		{name: "fixed", opts: generateOptions{size: "1KB"}, lo: 1000, hi: 1000},
		{name: "range", opts: generateOptions{size: "1KB", maxSize: "2KB"}, lo: 1000, hi: 2000},
		{name: "max only", opts: generateOptions{maxSize: "2KB"}, wantErr: "--max-size needs --size"},
		{name: "inverted", opts: generateOptions{size: "2KB", maxSize: "1KB"}, wantErr: "below --size"},
		{name: "bad size", opts: generateOptions{size: "lots"}, wantErr: "invalid --size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lo, hi, err := tt.opts.sizeRange()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.lo, lo)
			assert.Equal(t, tt.hi, hi)
		})
	}
}

func TestLocalURL(t *testing.T) {
	assert.Equal(t, "http://localhost:8000", localURL(":8000"))
	assert.Equal(t, "http://10.0.0.5:9000", localURL("10.0.0.5:9000"))
}
