package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger so services share one constructor and field set
type Logger struct {
	zerolog.Logger
}

// New creates a logger tagged with the service name. Development and test
// runs get human-readable console output at debug level; production logs JSON
// at info level. YOOZAK_LOG_LEVEL overrides the level.
func New(serviceName string, environment string) *Logger {
	var output io.Writer = os.Stdout
	level := zerolog.DebugLevel

	switch environment {
	case "development", "test":
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	case "production":
		level = zerolog.InfoLevel
	}

	if v := strings.TrimSpace(os.Getenv("YOOZAK_LOG_LEVEL")); v != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(v)); err == nil {
			level = parsed
		}
	}

	l := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("env", environment).
		Logger()

	return &Logger{Logger: l}
}

// Nop returns a logger that discards everything. Handy in tests.
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

// AtLeast returns a copy that drops events below level
func (l *Logger) AtLeast(level zerolog.Level) *Logger {
	if l.GetLevel() >= level {
		return l
	}
	return &Logger{Logger: l.Logger.Level(level)}
}

// WithComponent returns a logger with the component name attached
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Logger: l.Logger.With().Str("component", component).Logger()}
}
