package logmate

import (
	"context"
	"time"

	zlog "github.com/rs/zerolog/log"
)

// DefaultChunkCount is the number of progress units a job is split into.
const DefaultChunkCount = 5

// Span is a half-open range [Start, End) of line indexes.
type Span struct {
	Start int
	End   int
}

// ChunkProgress is passed to the chunk callback after a chunk is folded.
type ChunkProgress struct {
	Index      int // 1-based
	Total      int
	Processed  int
	TotalLines int
}

// ChunkFunc observes each completed chunk. A non-nil error stops the run.
type ChunkFunc func(ChunkProgress) error

// PlanChunks splits totalLines lines into exactly min(chunkCount, totalLines)
// contiguous spans. Every span but the last has totalLines/chunkCount lines
// (at least one); the last absorbs the remainder.
func PlanChunks(totalLines, chunkCount int) []Span {
	if totalLines <= 0 {
		return nil
	}
	if chunkCount <= 0 {
		chunkCount = DefaultChunkCount
	}

	chunkSize := max(1, totalLines/chunkCount)
	n := min(chunkCount, totalLines)

	spans := make([]Span, n)
	for i := range spans {
		spans[i] = Span{Start: i * chunkSize, End: (i + 1) * chunkSize}
	}
	spans[n-1].End = totalLines

	return spans
}

// RunOptions tunes RunChunks.
type RunOptions struct {
	ChunkCount int
	// Delay pauses before each chunk, pacing progress for observers.
	Delay time.Duration
}

// RunChunks parses and folds lines chunk by chunk, calling onChunk after each
// chunk in order. The returned aggregator is fresh for every call and fully
// drained on success.
func RunChunks(ctx context.Context, lines []string, opts RunOptions, onChunk ChunkFunc) (*Aggregator, error) {
	agg := NewAggregator(len(lines))
	spans := PlanChunks(len(lines), opts.ChunkCount)

	for i, span := range spans {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if opts.Delay > 0 {
			if err := sleep(ctx, opts.Delay); err != nil {
				return nil, err
			}
		}

		for _, line := range lines[span.Start:span.End] {
			rec, err := ParseLine(line)
			if err != nil {
				agg.Skip()
				zlog.Debug().Err(err).Str("line", line).Msg("failed to parse line")
				continue
			}
			agg.Fold(rec)
		}

		if err := agg.Advance(span.End); err != nil {
			return nil, err
		}

		if onChunk != nil {
			snap := agg.Snapshot()
			err := onChunk(ChunkProgress{
				Index:      i + 1,
				Total:      len(spans),
				Processed:  snap.Processed,
				TotalLines: snap.Total,
			})
			if err != nil {
				return nil, err
			}
		}
	}

	return agg, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
