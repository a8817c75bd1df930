package log

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"ncval/internal/logging"
)

var (
	initOnce    sync.Once
	initialized atomic.Bool
	logger      *logging.LoggerCloser
)

// Setup installs the charmbracelet logger as the slog default. Only the first
// call has an effect.
func Setup(debug bool) {
	initOnce.Do(func() {
		logger = logging.NewLogger(debug || logging.IsDebug())
		slog.SetDefault(slog.New(logger.Logger))
		initialized.Store(true)
	})
}

// Close flushes and closes the log file, if any.
func Close() error {
	if logger == nil {
		return nil
	}
	return logger.Close()
}

func Initialized() bool {
	return initialized.Load()
}

func RecoverPanic(name string, cleanup func()) {
	if r := recover(); r != nil {
		if Initialized() {
			slog.Error(fmt.Sprintf("Panic in %s", name),
				"panic", r,
				"stack", string(debug.Stack()))
		}
		if cleanup != nil {
			cleanup()
		}
	}
}
