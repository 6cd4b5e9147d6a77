package log

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	msErrors "github.com/YuminosukeSato/mathscore/pkg/errors"
)

// Options configures the process-wide logger.
type Options struct {
	Level  string    // debug, info, warn, error
	Format string    // json or console
	Output io.Writer // defaults to os.Stderr
}

// SetupLogger installs a zerolog provider built from opts as the process-wide
// provider and routes library warnings into it.
func SetupLogger(opts Options) (LoggerProvider, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	if strings.EqualFold(opts.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	zerolog.ErrorStackMarshaler = MarshalStack
	provider := NewZerologProvider(level, out)
	SetProvider(provider)

	warnLogger := provider.GetLoggerWithName("warnings")
	msErrors.SetZerologWarnFunc(func(w error) {
		warnLogger.Warn(w.Error(), ErrorTypeKey, fmt.Sprintf("%T", w))
	})
	return provider, nil
}

// ParseLevel converts a level name into a Level.
func ParseLevel(level string) (Level, error) {
	switch strings.ToLower(level) {
	case "info", "":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("invalid log level: %s", level)
	}
}
