package main

import (
	"context"
	"io"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"pkg.jsn.cam/logmate/pkg/logmate"
)

// progress draws a line-count bar from job events.
type progress struct {
	out   io.Writer
	quiet bool
	bar   *progressbar.ProgressBar
}

func newProgress(out io.Writer, quiet bool) *progress {
	return &progress{out: out, quiet: quiet}
}

func (p *progress) handle(ev logmate.Event) {
	if p.quiet {
		return
	}

	switch ev.Type {
	case logmate.EventStart:
		p.close()
		if ev.TotalLines == 0 {
			return
		}
		p.bar = progressbar.NewOptions(ev.TotalLines,
			progressbar.OptionSetWriter(p.out),
			progressbar.OptionSetDescription(ev.FileName),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(30),
			progressbar.OptionClearOnFinish(),
		)
	case logmate.EventChunk:
		if p.bar != nil {
			_ = p.bar.Set(ev.ProcessedCount)
		}
	case logmate.EventComplete:
		if p.bar != nil {
			_ = p.bar.Finish()
			p.bar = nil
		}
	case logmate.EventError:
		p.close()
		if ev.Final {
			color.New(color.FgRed).Fprintf(p.out, "%s: %s\n", ev.FileName, ev.Message)
			return
		}
		color.New(color.FgYellow).Fprintf(p.out, "%s: attempt %d failed: %s\n", ev.FileName, ev.Attempt+1, ev.Message)
	}
}

func (p *progress) close() {
	if p.bar != nil {
		_ = p.bar.Exit()
		p.bar = nil
	}
}

// notifier adapts p for a local Controller.
func (p *progress) notifier() logmate.Notifier {
	return logmate.NotifierFunc(func(_ context.Context, _ string, ev logmate.Event) error {
		p.handle(ev)
		return nil
	})
}
