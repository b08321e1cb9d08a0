package rendersystem

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler discards every record and reports every level as disabled.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(nopHandler{}))
}

// SetLogger sets the logger used by render systems created without
// WithLogger. By default nothing is logged. Pass nil to restore that.
//
// Levels used:
//   - slog.LevelDebug: swapchain rebuilds, skipped frames, pool growth
//   - slog.LevelInfo: device selection and swapchain creation
//   - slog.LevelWarn: recoverable failures such as a failed rebuild
//   - slog.LevelError: API misuse, returned as errors wrapping ErrProgramming
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	loggerPtr.Store(l)
}

// Logger returns the package logger.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
