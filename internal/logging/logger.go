// Package logging builds the charmbracelet logger used behind slog. It is
// configured from environment variables.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// LoggerCloser wraps a logger and provides a Close method for cleanup
type LoggerCloser struct {
	*log.Logger
	closer io.Closer
}

// Close closes the underlying writer if it's closeable
func (lc *LoggerCloser) Close() error {
	if lc.closer != nil {
		return lc.closer.Close()
	}
	return nil
}

// Level maps NCVAL_LOG_LEVEL to a log level. debug forces debug output.
func Level(debug bool) log.Level {
	if debug {
		return log.DebugLevel
	}
	switch os.Getenv("NCVAL_LOG_LEVEL") {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// NewLoggerWithWriter creates a new logger with the provided writer
func NewLoggerWithWriter(w io.Writer, debug bool) *LoggerCloser {
	lg := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		ReportCaller:    debug,
		Level:           Level(debug),
	})

	prefix := os.Getenv("NCVAL_LOG_PREFIX")
	if prefix == "" {
		prefix = "ncval"
	}

	var closer io.Closer
	if c, ok := w.(io.Closer); ok && w != os.Stderr {
		closer = c
	}

	return &LoggerCloser{
		Logger: lg.WithPrefix(prefix),
		closer: closer,
	}
}

// NewLogger creates a new logger based on environment variables
// NCVAL_LOG_LEVEL: debug, info, warn, error (default: info)
// NCVAL_LOG_PREFIX: prefix for log messages (default: "ncval")
// NCVAL_LOG_TO_FILE: when set to "1", logs to a timestamped file instead of stderr
func NewLogger(debug bool) *LoggerCloser {
	output := io.Writer(os.Stderr)

	if os.Getenv("NCVAL_LOG_TO_FILE") == "1" {
		timestamp := time.Now().Format("20060102-150405")
		logFile := fmt.Sprintf("ncval-%s.log", timestamp)

		f, err := os.OpenFile(logFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err == nil {
			output = f
		}
		// If file creation fails, fall back to stderr
	}

	return NewLoggerWithWriter(output, debug)
}

// IsDebug returns true if debug logging is enabled
func IsDebug() bool {
	return os.Getenv("NCVAL_LOG_LEVEL") == "debug"
}
