// Package logging wires github.com/joeycumines/logiface to
// github.com/joeycumines/izerolog (github.com/rs/zerolog underneath), and
// gives the rest of this module a single concrete Logger type to pass
// around instead of repeating the generic instantiation everywhere.
package logging

import (
	"io"

	"github.com/joeycumines/izerolog"
	"github.com/joeycumines/logiface"
	"github.com/rs/zerolog"
)

// Logger is the concrete logiface.Logger instantiation used throughout this
// module.
type Logger = logiface.Logger[*izerolog.Event]

// Level re-exports logiface.Level so callers need not import logiface
// directly for the common case.
type Level = logiface.Level

// Re-exported syslog levels, so callers configuring New need not import
// logiface directly.
const (
	LevelDisabled      = logiface.LevelDisabled
	LevelCritical      = logiface.LevelCritical
	LevelError         = logiface.LevelError
	LevelWarning       = logiface.LevelWarning
	LevelNotice        = logiface.LevelNotice
	LevelInformational = logiface.LevelInformational
	LevelDebug         = logiface.LevelDebug
)

// New constructs a Logger writing JSON lines to w at the given level, using
// zerolog as the underlying writer.
func New(w io.Writer, level Level) *Logger {
	zl := zerolog.New(w).With().Timestamp().Logger()
	return izerolog.L.New(
		izerolog.L.WithZerolog(zl),
		izerolog.L.WithLevel(level),
	)
}

// NewNop constructs a Logger that discards everything, for tests and for
// embedding contexts that configure their own logging.
func NewNop() *Logger {
	return New(io.Discard, logiface.LevelDisabled)
}
