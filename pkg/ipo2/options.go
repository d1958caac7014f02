package ipo2

import (
	"io"
	"log/slog"
)

// Progress describes the engine state after a factor has been processed.
type Progress struct {
	Factor    string // factor just added
	Index     int    // 1-based position of Factor
	Total     int    // number of factors
	Rows      int    // test cases built so far
	Targets   int    // combinations targeted while adding Factor
	Leftover  int    // combinations carried to the next factor
	Completed bool   // true on the final report
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for per-factor debug output.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithProgress registers a callback invoked after every factor.
func WithProgress(fn func(Progress)) Option {
	return func(e *Engine) {
		e.progress = fn
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
