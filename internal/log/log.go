// Package log provides a package-level structured logger used throughout
// the disk core, mirroring the zap-backed global logger kraken wires into
// every subsystem.
package log

import (
	"go.uber.org/zap"
)

var _log = mustNewProduction()

func mustNewProduction() *zap.SugaredLogger {
	l, err := zap.NewProduction()
	if err != nil {
		// Fall back to a no-op logger rather than panicking at import time.
		return zap.NewNop().Sugar()
	}
	return l.Sugar()
}

// SetLogger overrides the global logger, for example with NopLogger to
// discard all output.
func SetLogger(l *zap.SugaredLogger) {
	_log = l
}

// NopLogger returns a logger which discards all output.
func NopLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

// With returns a child logger annotated with the given key/value pairs.
func With(args ...interface{}) *zap.SugaredLogger {
	return _log.With(args...)
}

// Infof logs a formatted message at info level.
func Infof(format string, args ...interface{}) {
	_log.Infof(format, args...)
}

// Errorf logs a formatted message at error level.
func Errorf(format string, args ...interface{}) {
	_log.Errorf(format, args...)
}
