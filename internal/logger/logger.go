package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	defaultLogger zerolog.Logger
	once          sync.Once
)

// Init initializes the default logger writing JSON to stdout.
// It ensures that the logger is initialized only once.
func Init(level string) {
	once.Do(func() {
		lvl, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil || level == "" {
			lvl = zerolog.InfoLevel
		}
		zerolog.TimeFieldFormat = time.RFC3339
		defaultLogger = zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()
	})
}

// Get returns the initialized default logger. A pointer is returned because
// zerolog's level methods have pointer receivers.
func Get() *zerolog.Logger {
	Init("")
	return &defaultLogger
}

// Info logs an informational message with alternating key/value args.
func Info(msg string, args ...any) {
	withFields(Get().Info(), args).Msg(msg)
}

// Warn logs a warning message with alternating key/value args.
func Warn(msg string, args ...any) {
	withFields(Get().Warn(), args).Msg(msg)
}

// Error logs an error message with alternating key/value args.
func Error(msg string, err error, args ...any) {
	withFields(Get().Error().Err(err), args).Msg(msg)
}

// Debug logs a debug message with alternating key/value args.
func Debug(msg string, args ...any) {
	withFields(Get().Debug(), args).Msg(msg)
}

func withFields(e *zerolog.Event, args []any) *zerolog.Event {
	for i := 0; i+1 < len(args); i += 2 {
		e = e.Interface(fmt.Sprint(args[i]), args[i+1])
	}
	return e
}
