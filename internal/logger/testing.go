package logger

import (
	"io"
	"log/slog"
	"time"
)

// NewSlogLogger returns a Logger writing JSON lines to w at the given level.
// A nil writer discards output. Intended for tests and tools.
func NewSlogLogger(w io.Writer, level LogLevel, tz *time.Location) Logger {
	if w == nil {
		w = io.Discard
	}
	return &moduleLogger{
		logger: slog.New(newJSONHandler(w, tz)),
		level:  parseLogLevel(string(level)),
	}
}

// NewDiscard returns a Logger that drops everything
func NewDiscard() Logger {
	return NewSlogLogger(io.Discard, LogLevelError, time.UTC)
}
