package logger

import (
	"io"
	"os"
	"syscall"
	"time"

	"codeberg.org/mutker/sysmon/internal/errors"
	"github.com/rs/zerolog"
)

var log = zerolog.Nop()

type LogLevel int8

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

type LogEvent struct {
	*zerolog.Event
}

func (e *LogEvent) Msg(msg string) {
	e.Event.Msg(msg)
}

func (e *LogEvent) Send() {
	e.Event.Send()
}

// Init initializes the logger with the given level name ("debug", "info",
// "warning" or "error").
func Init(level string, isService bool) {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}

	if isService {
		output.TimeFormat = ""
		output.FormatTimestamp = func(_ interface{}) string {
			return ""
		}
	}

	initWithWriter(output, level)
}

// InitWithWriter initializes a plain JSON logger writing to w.
func InitWithWriter(w io.Writer, level string) {
	initWithWriter(w, level)
}

func initWithWriter(w io.Writer, level string) {
	log = zerolog.New(w).With().Timestamp().Logger()
	SetLogLevel(ParseLevel(level))
}

// ParseLevel maps a configured level name to a LogLevel, defaulting to
// InfoLevel for unknown names.
func ParseLevel(level string) LogLevel {
	switch level {
	case "debug":
		return DebugLevel
	case "warning", "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// SetLogLevel sets the global log level
func SetLogLevel(level LogLevel) {
	zerolog.SetGlobalLevel(zerolog.Level(level))
}

// IsService checks if the application is running as a service
func IsService() bool {
	if _, err := os.Stdin.Stat(); err != nil {
		return true
	}
	if os.Getenv("SERVICE_NAME") != "" || os.Getenv("INVOCATION_ID") != "" {
		return true
	}
	if os.Getppid() == 1 {
		return true
	}

	return syscall.Getpgrp() == syscall.Getpid()
}

// With returns a Logger that tags every event with the given component.
func With(component string) Logger {
	return &scoped{log: log.With().Str("component", component).Logger()}
}

// Debug logs a debug message
func Debug() *LogEvent {
	return &LogEvent{log.Debug()}
}

// Info logs an info message
func Info() *LogEvent {
	return &LogEvent{log.Info()}
}

// Warn logs a warning message
func Warn() *LogEvent {
	return &LogEvent{log.Warn()}
}

// Error logs an error message
func Error() *LogEvent {
	return &LogEvent{log.Error()}
}

// ErrorWithCode logs an error message with a specific error code
func ErrorWithCode(err errors.Error) *LogEvent {
	return withCode(log.Error(), err)
}

// Fatal logs a fatal message and exits the program
func Fatal() *LogEvent {
	return &LogEvent{log.Fatal()}
}

// FatalWithCode logs a fatal message with a specific error code and exits the program
func FatalWithCode(err errors.Error) *LogEvent {
	return withCode(log.Fatal(), err)
}

func withCode(e *zerolog.Event, err errors.Error) *LogEvent {
	return &LogEvent{e.
		Str("error_code", string(err.Code())).
		Str("error_message", err.Error()).
		AnErr("error", err.Unwrap())}
}

type scoped struct {
	log zerolog.Logger
}

func (s *scoped) Debug() *LogEvent { return &LogEvent{s.log.Debug()} }
func (s *scoped) Info() *LogEvent  { return &LogEvent{s.log.Info()} }
func (s *scoped) Warn() *LogEvent  { return &LogEvent{s.log.Warn()} }
func (s *scoped) Error() *LogEvent { return &LogEvent{s.log.Error()} }

func (s *scoped) ErrorWithCode(err errors.Error) *LogEvent {
	return withCode(s.log.Error(), err)
}

func (s *scoped) With(key, value string) Logger {
	return &scoped{log: s.log.With().Str(key, value).Logger()}
}
