package logmate

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// maxLineSize bounds a single log line; user agents can be long.
const maxLineSize = 1 << 20

// Opener opens a log file for reading.
type Opener func(ctx context.Context, path string) (io.ReadCloser, error)

// OpenLog opens the local file path, transparently decompressing .gz and
// .zst files.
func OpenLog(_ context.Context, path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	return Decompress(path, f)
}

// Decompress wraps rc in a decoder chosen by the extension of name. Closing
// the result closes rc.
func Decompress(name string, rc io.ReadCloser) (io.ReadCloser, error) {
	switch {
	case strings.HasSuffix(name, ".gz"):
		zr, err := gzip.NewReader(rc)
		if err != nil {
			rc.Close()
			return nil, fmt.Errorf("open gzip stream: %w", err)
		}
		return &stackedReader{Reader: zr, closers: []io.Closer{zr, rc}}, nil

	case strings.HasSuffix(name, ".zst"):
		zr, err := zstd.NewReader(rc)
		if err != nil {
			rc.Close()
			return nil, fmt.Errorf("open zstd stream: %w", err)
		}
		return &stackedReader{Reader: zr, closers: []io.Closer{zstdCloser{zr}, rc}}, nil

	default:
		return rc, nil
	}
}

// ReadLines reads every line of r. Trailing newlines are stripped.
func ReadLines(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read lines: %w", err)
	}
	return lines, nil
}

type stackedReader struct {
	io.Reader
	closers []io.Closer
}

func (s *stackedReader) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// zstd.Decoder.Close has no error result.
type zstdCloser struct{ d *zstd.Decoder }

func (z zstdCloser) Close() error {
	z.d.Close()
	return nil
}
