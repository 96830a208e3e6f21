// Package logging builds the clog-backed slog loggers used across memstore
// and carries them through contexts. Output goes to stderr unless told
// otherwise, since stdout is reserved for protocol responses.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/m-mizutani/clog"
)

var levels = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"":        slog.LevelInfo,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// ParseLevel maps a case-insensitive level name to a slog.Level. The boolean
// is false for unknown names, which fall back to info.
func ParseLevel(name string) (slog.Level, bool) {
	lvl, ok := levels[strings.ToLower(name)]
	if !ok {
		return slog.LevelInfo, false
	}
	return lvl, true
}

// New returns a logger writing human-readable lines to w at the given level.
// A nil w means stderr.
func New(level string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	lvl, _ := ParseLevel(level)
	return slog.New(clog.New(
		clog.WithWriter(w),
		clog.WithLevel(lvl),
		clog.WithTimeFmt("15:04:05.000"),
		clog.WithSource(false),
		clog.WithAttrHook(clog.GoerrHook),
	))
}

var process atomic.Pointer[slog.Logger]

// Default returns the process logger, an info-level stderr logger until
// SetDefault replaces it.
func Default() *slog.Logger {
	if l := process.Load(); l != nil {
		return l
	}
	process.CompareAndSwap(nil, New("info", nil))
	return process.Load()
}

// SetDefault replaces the process logger. nil restores the stock one.
func SetDefault(l *slog.Logger) {
	process.Store(l)
}

type ctxKey struct{}

// With attaches l to ctx.
func With(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From returns the logger attached to ctx, or Default.
func From(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return Default()
}
