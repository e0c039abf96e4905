// Package logging holds the process-wide structured logger. cmd wires a
// concrete *zap.SugaredLogger in at startup; everything else calls
// Logger() so library code never constructs its own.
package logging

import "go.uber.org/zap"

var global *zap.SugaredLogger

// Init sets the process-wide logger. Called once from cmd before any
// command runs.
func Init(l *zap.SugaredLogger) { global = l }

// Logger returns the process-wide logger, falling back to a no-op logger
// if Init was never called (unit tests, library callers that don't care).
func Logger() *zap.SugaredLogger {
	if global == nil {
		return zap.NewNop().Sugar()
	}
	return global
}
