package backup

import (
	"context"
	"io"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// ProgressWriter forwards writes and feeds the byte count into an mpb bar.
// A nil bar turns it into a plain pass-through for non-interactive runs.
type ProgressWriter struct {
	w   io.Writer
	bar *mpb.Bar
}

func NewProgressWriter(w io.Writer, bar *mpb.Bar) *ProgressWriter {
	return &ProgressWriter{w: w, bar: bar}
}

func (pw *ProgressWriter) Write(p []byte) (int, error) {
	n, err := pw.w.Write(p)
	if n > 0 && pw.bar != nil {
		pw.bar.IncrBy(n)
	}
	return n, err
}

func NewProgressContainer() *mpb.Progress {
	return mpb.New(mpb.WithWidth(64))
}

// addDumpBar creates an indeterminate byte counter for one database dump.
// The dump size is unknown up front, so the bar counts instead of filling.
func addDumpBar(p *mpb.Progress, database string) *mpb.Bar {
	if p == nil {
		return nil
	}
	return p.AddBar(0,
		mpb.PrependDecorators(
			decor.Name(database, decor.WC{W: len(database) + 1}),
			decor.CountersKibiByte("% .2f / % .2f"),
		),
		mpb.AppendDecorators(
			decor.OnComplete(decor.Name(" dumping"), " done"),
		),
	)
}

// withProgress wraps a dump function so the raw dump bytes drive a bar, and
// the bar completes when the dump returns.
func withProgress(p *mpb.Progress, dump dumpFunc) dumpFunc {
	if p == nil {
		return dump
	}
	return func(ctx context.Context, database string, w io.Writer) error {
		bar := addDumpBar(p, database)
		err := dump(ctx, database, NewProgressWriter(w, bar))
		bar.SetTotal(bar.Current(), true)
		return err
	}
}
