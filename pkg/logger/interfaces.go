package logger

import (
	"io"

	"github.com/rs/zerolog"
)

// Logger is the logging surface handed to components. It mirrors the
// zerolog event API so call sites keep the fluent field style.
type Logger interface {
	Trace() *zerolog.Event
	Debug() *zerolog.Event
	Info() *zerolog.Event
	Warn() *zerolog.Event
	Error() *zerolog.Event
	Fatal() *zerolog.Event
	With() zerolog.Context
	WithComponent(component string) zerolog.Logger
	SetLevel(level zerolog.Level)
	SetDebug(debug bool)
}

type loggerAdapter struct {
	logger zerolog.Logger
}

// New wraps a zerolog.Logger in the Logger interface.
func New(logger zerolog.Logger) Logger {
	return &loggerAdapter{logger: logger}
}

// NewGlobal returns a Logger backed by the package-global logger.
func NewGlobal() Logger {
	return &loggerAdapter{logger: globalLogger}
}

func (l *loggerAdapter) Trace() *zerolog.Event { return l.logger.Trace() }
func (l *loggerAdapter) Debug() *zerolog.Event { return l.logger.Debug() }
func (l *loggerAdapter) Info() *zerolog.Event  { return l.logger.Info() }
func (l *loggerAdapter) Warn() *zerolog.Event  { return l.logger.Warn() }
func (l *loggerAdapter) Error() *zerolog.Event { return l.logger.Error() }
func (l *loggerAdapter) Fatal() *zerolog.Event { return l.logger.Fatal() }
func (l *loggerAdapter) With() zerolog.Context { return l.logger.With() }
func (l *loggerAdapter) WithComponent(component string) zerolog.Logger {
	return l.logger.With().Str("component", component).Logger()
}
func (l *loggerAdapter) SetLevel(level zerolog.Level) { l.logger = l.logger.Level(level) }
func (l *loggerAdapter) SetDebug(debug bool) {
	if debug {
		l.SetLevel(zerolog.DebugLevel)
	} else {
		l.SetLevel(zerolog.InfoLevel)
	}
}

// NewTestLogger creates a no-op logger for testing that discards all output.
func NewTestLogger() Logger {
	nop := zerolog.New(io.Discard).Level(zerolog.Disabled)
	return &loggerAdapter{logger: nop}
}
