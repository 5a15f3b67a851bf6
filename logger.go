// Package hishel provides an RFC 9111 compliant HTTP caching core: a header
// model and Cache-Control parser, a pluggable storage layer, pure spec
// helper functions, and a state machine driving the caching decision for
// each request. It is independent of any particular HTTP client library.
package hishel

import (
	"log/slog"
	"sync"
)

var (
	logger     *slog.Logger
	loggerOnce sync.Once
)

// SetLogger sets a custom slog.Logger instance to be used by the hishel
// package. If not set, the default slog logger is used.
func SetLogger(l *slog.Logger) {
	logger = l
}

// GetLogger returns the configured logger, or the default slog logger if
// none has been set.
func GetLogger() *slog.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = slog.Default()
		}
	})
	return logger
}
