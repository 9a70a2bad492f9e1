package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
)

type Logger struct {
	inner *slog.Logger
	color bool
}

type Config struct {
	Writer  io.Writer
	JSON    bool
	NoColor bool
	Level   slog.Level
}

func New(cfg Config) *Logger {
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level: cfg.Level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{
					Key:   a.Key,
					Value: slog.StringValue(a.Value.Time().Format("2006/01/02 15:04:05")),
				}
			}
			return a
		},
	}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(cfg.Writer, opts)
	} else {
		handler = &textHandler{
			Handler: slog.NewTextHandler(cfg.Writer, opts),
			w:       cfg.Writer,
			noColor: cfg.NoColor,
		}
	}

	return &Logger{
		inner: slog.New(handler),
		color: !cfg.NoColor && !cfg.JSON,
	}
}

func (l *Logger) Info(msg string, args ...any) {
	l.inner.Info(msg, args...)
}

func (l *Logger) Error(msg string, args ...any) {
	l.inner.Error(msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.inner.Warn(msg, args...)
}

func (l *Logger) Debug(msg string, args ...any) {
	l.inner.Debug(msg, args...)
}

func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		inner: l.inner.With(args...),
		color: l.color,
	}
}

type ctxKey struct{}

// IntoContext stores l in ctx for retrieval deeper in the call tree.
func IntoContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored in ctx, or a default text logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok && l != nil {
		return l
	}
	return New(Config{})
}

type textHandler struct {
	slog.Handler
	w       io.Writer
	noColor bool
	attrs   []slog.Attr
}

func (h *textHandler) Handle(ctx context.Context, r slog.Record) error {
	if !h.Handler.Enabled(ctx, r.Level) {
		return nil
	}

	level := r.Level.String()
	cLevel := level
	cKey := ""
	cReset := ""

	if !h.noColor {
		cReset = colorReset
		cKey = colorBlue
		switch r.Level {
		case slog.LevelInfo:
			cLevel = colorGreen + level + colorReset
		case slog.LevelWarn:
			cLevel = colorYellow + level + colorReset
		case slog.LevelError:
			cLevel = colorRed + level + colorReset
		case slog.LevelDebug:
			cLevel = colorCyan + level + colorReset
		}
	}

	attrs := ""
	appendAttr := func(a slog.Attr) bool {
		attrs += fmt.Sprintf(" %s%s%s=%v", cKey, a.Key, cReset, a.Value.Any())
		return true
	}
	for _, a := range h.attrs {
		appendAttr(a)
	}
	r.Attrs(appendAttr)

	_, err := fmt.Fprintf(h.w, "%s [%s] %s%s\n",
		r.Time.Format("2006/01/02 15:04:05"),
		cLevel,
		r.Message,
		attrs,
	)

	return err
}

func (h *textHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &textHandler{
		Handler: h.Handler.WithAttrs(attrs),
		w:       h.w,
		noColor: h.noColor,
		attrs:   merged,
	}
}
