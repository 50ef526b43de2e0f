package logmate_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkg.jsn.cam/logmate/pkg/logmate"
)

func TestOpenLog_Compressed(t *testing.T) {
	t.Parallel()

	plain := strings.Join(genLines(12), "\n") + "\n"

	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	_, err := gw.Write([]byte(plain))
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	var zs bytes.Buffer
	zw, err := zstd.NewWriter(&zs)
	require.NoError(t, err)
	_, err = zw.Write([]byte(plain))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	dir := t.TempDir()
	files := map[string][]byte{
		"access.log":     []byte(plain),
		"access.log.gz":  gz.Bytes(),
		"access.log.zst": zs.Bytes(),
	}

	for name, data := range files {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, data, 0o644))

			rc, err := logmate.OpenLog(context.Background(), path)
			require.NoError(t, err)
			defer rc.Close()

			lines, err := logmate.ReadLines(rc)
			require.NoError(t, err)
			assert.Equal(t, genLines(12), lines)
		})
	}
}

func TestOpenLog_Missing(t *testing.T) {
	t.Parallel()

	_, err := logmate.OpenLog(context.Background(), filepath.Join(t.TempDir(), "missing.log"))
	require.ErrorIs(t, err, logmate.ErrFileNotFound)
}

func TestOpenLog_CorruptGzip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.log.gz")
	require.NoError(t, os.WriteFile(path, []byte("not gzip"), 0o644))

	_, err := logmate.OpenLog(context.Background(), path)
	assert.Error(t, err)
}

func TestReadLines(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 200*1024)
	lines, err := logmate.ReadLines(strings.NewReader("a\r\n\nb\n" + long))
	require.NoError(t, err)

	// Blank lines are kept; they count as lines and fail to parse.
	assert.Equal(t, []string{"a", "", "b", long}, lines)
}

func TestReadLines_TooLong(t *testing.T) {
	t.Parallel()

	_, err := logmate.ReadLines(strings.NewReader(strings.Repeat("y", 2<<20)))
	assert.Error(t, err)
}
