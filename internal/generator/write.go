package generator

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
)

// Target says when to stop writing. The first limit reached wins; zero
// limits are ignored.
type Target struct {
	Lines int64
	Bytes int64
}

// Stats describes a written file.
type Stats struct {
	Path  string
	Lines int64
	Bytes int64
}

// progressEvery is how many lines are written between progress callbacks.
const progressEvery = 4096

// WriteFile creates path and fills it from gen until target is met.
// onProgress, if set, is called periodically with the bytes written so far.
func WriteFile(ctx context.Context, path string, gen Generator, seed uint64, target Target, onProgress func(bytes int64)) (Stats, error) {
	if target.Lines <= 0 && target.Bytes <= 0 {
		return Stats{}, fmt.Errorf("generator: target needs a line or byte limit")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Stats{}, fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return Stats{}, fmt.Errorf("create output: %w", err)
	}
	defer f.Close()

	gen.Init(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))

	cw := &countingWriter{w: bufio.NewWriterSize(f, 1<<16)}
	stats := Stats{Path: path}

	for {
		if target.Lines > 0 && stats.Lines >= target.Lines {
			break
		}
		if target.Bytes > 0 && cw.n >= target.Bytes {
			break
		}
		if stats.Lines%progressEvery == 0 {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			if onProgress != nil {
				onProgress(cw.n)
			}
		}

		if err := gen.WriteLine(cw); err != nil {
			return stats, fmt.Errorf("write line: %w", err)
		}
		stats.Lines++
	}

	if err := cw.w.Flush(); err != nil {
		return stats, fmt.Errorf("flush output: %w", err)
	}
	if err := f.Close(); err != nil {
		return stats, fmt.Errorf("close output: %w", err)
	}

	stats.Bytes = cw.n
	if onProgress != nil {
		onProgress(cw.n)
	}
	return stats, nil
}

type countingWriter struct {
	w *bufio.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

var _ io.Writer = (*countingWriter)(nil)
