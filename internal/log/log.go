// Package log wraps charmbracelet/log with the small set of conveniences
// ddcutil needs: a package-level default logger, writing to stderr, that
// every logging function in this package uses, and WithSink/FromContext,
// which bind a logger with its own writer to a context. Nothing in the
// module logs through FromContext, so trace output is not redirected per
// call or per goroutine.
package log

import (
	"context"
	"io"
	"os"

	charmlog "github.com/charmbracelet/log"
)

var std = charmlog.NewWithOptions(os.Stderr, charmlog.Options{
	ReportTimestamp: false,
})

// SetLevel adjusts the verbosity of the default logger. It is the target of
// DDCUTIL_DEBUG_LIBINIT / DDCUTIL_DEBUG_PARSE; the --verbose CLI flag does
// not change the log level.
func SetLevel(level charmlog.Level) {
	std.SetLevel(level)
}

// Quiet temporarily raises the level to Warn and returns a function that
// restores the previous level. Used by the async scan coordinator (component
// H) so that a fan-out of probes does not interleave verbose per-probe trace
// across goroutines; restoring is the caller's responsibility via defer so
// the suppression never leaks past the scan that requested it.
func Quiet() (restore func()) {
	prev := std.GetLevel()
	if prev < charmlog.WarnLevel {
		std.SetLevel(charmlog.WarnLevel)
	}
	return func() { std.SetLevel(prev) }
}

func Debug(msg string, kv ...any)  { std.Debug(msg, kv...) }
func Debugf(f string, a ...any)    { std.Debugf(f, a...) }
func Info(msg string, kv ...any)   { std.Info(msg, kv...) }
func Infof(f string, a ...any)     { std.Infof(f, a...) }
func Warn(msg string, kv ...any)   { std.Warn(msg, kv...) }
func Warnf(f string, a ...any)     { std.Warnf(f, a...) }
func Error(msg string, kv ...any)  { std.Error(msg, kv...) }
func Errorf(f string, a ...any)    { std.Errorf(f, a...) }

type sinkKey struct{}

// WithSink returns a context carrying a logger that writes to w instead of
// the process-wide default, at the default logger's current level. The
// package-level Debug/Info/Warn/Error functions always write to the default
// logger; only code that calls FromContext on the returned context writes
// to w.
func WithSink(ctx context.Context, w io.Writer) context.Context {
	l := charmlog.NewWithOptions(w, charmlog.Options{ReportTimestamp: false})
	l.SetLevel(std.GetLevel())
	return context.WithValue(ctx, sinkKey{}, l)
}

// FromContext returns the logger bound to ctx by WithSink, or the default
// logger if none was bound.
func FromContext(ctx context.Context) *charmlog.Logger {
	if l, ok := ctx.Value(sinkKey{}).(*charmlog.Logger); ok {
		return l
	}
	return std
}
