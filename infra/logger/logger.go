package logger

import corelogger "github.com/kilianp07/fuelops/core/logger"

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger discards everything.
type NopLogger = corelogger.NopLogger

// New returns a Logger for the given component. The output format follows
// APP_ENV and the level follows LOG_LEVEL.
func New(component string) Logger {
	return NewZerologLogger(component)
}
