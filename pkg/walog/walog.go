// Package walog wires github.com/rs/zerolog the way the teacher's
// pkg/duallog does: a full structured log to stdout, and a second,
// operator-facing logger for the handful of lines (login, reconnect) a
// caller wants to see regardless of verbosity.
package walog

import (
	"os"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

var milestoneLogger zerolog.Logger

// Setup configures the global zerolog logger to write structured output to
// stdout at the given level, and a separate stderr logger for Milestone
// events.
func Setup(level zerolog.Level) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zlog.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(level)

	milestoneLogger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// Milestone logs a user-visible session milestone (login, reconnect,
// logout) to the stderr logger only; the global stdout logger does not
// receive it.
func Milestone() *zerolog.Event {
	return milestoneLogger.Info()
}

// Trace is a shorthand for wire-level detail: the transport's dial address,
// nodes ignored or left unhandled by the session.
func Trace() *zerolog.Event {
	return zlog.Trace()
}

// Debug is session-lifecycle detail: state transitions, queue flushes.
func Debug() *zerolog.Event {
	return zlog.Debug()
}

// Info is a user-visible but non-milestone event.
func Info() *zerolog.Event {
	return zlog.Info()
}

// Warn is a recoverable error: requeued media, a dropped encrypted message.
func Warn() *zerolog.Event {
	return zlog.Warn()
}

// Error is a fatal stream failure.
func Error() *zerolog.Event {
	return zlog.Error()
}
