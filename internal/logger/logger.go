package logger

import (
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	defaultLogger zerolog.Logger
	once          sync.Once
)

// Init initializes the default logger writing console output to stderr.
// It ensures that the logger is initialized only once.
func Init() {
	once.Do(func() {
		out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
		defaultLogger = zerolog.New(out).Level(zerolog.InfoLevel).With().Timestamp().Logger()
	})
}

// SetDebug lowers the log level to debug.
func SetDebug() {
	Init()
	defaultLogger = defaultLogger.Level(zerolog.DebugLevel)
}

// Get returns the initialized default logger. A pointer is returned so
// the level methods, which have pointer receivers, are callable on it.
func Get() *zerolog.Logger {
	Init()
	return &defaultLogger
}

// Info logs an informational message with alternating key/value args.
func Info(msg string, args ...any) {
	Get().Info().Fields(args).Msg(msg)
}

// Warn logs a warning message with alternating key/value args.
func Warn(msg string, args ...any) {
	Get().Warn().Fields(args).Msg(msg)
}

// Error logs an error message using the default logger.
func Error(msg string, err error, args ...any) {
	Get().Error().Err(err).Fields(args).Msg(msg)
}

// Debug logs a debug message with alternating key/value args.
func Debug(msg string, args ...any) {
	Get().Debug().Fields(args).Msg(msg)
}
