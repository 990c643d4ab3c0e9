// Package testutil provides utilities for testing.
package testutil

import (
	"io"
	"log/slog"
)

// NewTestLogger creates a debug-level text logger writing to w.
// If w is nil, output is discarded.
func NewTestLogger(w io.Writer) *slog.Logger {
	if w == nil {
		w = io.Discard
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// DiscardLogger returns a logger that discards all output.
func DiscardLogger() *slog.Logger {
	return NewTestLogger(nil)
}
