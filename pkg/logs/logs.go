// Package logs is the structured logging wrapper every package
// outside tko reaches for: a package-level default logger, initialized
// once from Config, with Infof/Warnf/Errorf free functions. The tko
// package itself never imports this — its contract carries no logging.
package logs

import (
	"fmt"
	"io"
	"os"
	"sync"

	sidlog "github.com/siddontang/go-log/log"
)

// Config controls where and how verbosely the process logs.
type Config struct {
	Level    string `toml:"level"`     // debug, info, warn, error; default info
	Filename string `toml:"file_name"` // empty means stderr
}

var (
	mu      sync.Mutex
	writer  io.Writer = os.Stderr
	initted bool
)

// Initialize configures the package-level logger from cfg. It is safe
// to call more than once; each call rebuilds the logger with cfg's
// level, and replaces the writer only when cfg names a file (otherwise
// the previous writer is kept).
func Initialize(cfg *Config) error {
	mu.Lock()
	defer mu.Unlock()

	if cfg != nil && cfg.Filename != "" {
		f, err := os.OpenFile(cfg.Filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		writer = f
	}

	handler, err := sidlog.NewStreamHandler(writer)
	if err != nil {
		return fmt.Errorf("create log handler: %w", err)
	}

	logger := sidlog.New(handler, sidlog.Ltime|sidlog.Lfile|sidlog.Llevel)
	if cfg != nil && cfg.Level != "" {
		logger.SetLevelByName(cfg.Level)
	}
	sidlog.SetDefaultLogger(logger)
	initted = true

	return nil
}

// Writer returns the destination the default logger currently writes
// to, so other loggers in the process can share the same sink.
func Writer() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return writer
}

func ensureDefault() {
	mu.Lock()
	already := initted
	mu.Unlock()
	if !already {
		_ = Initialize(nil)
	}
}

// Infof logs at info level.
func Infof(format string, args ...interface{}) {
	ensureDefault()
	sidlog.Infof(format, args...)
}

// Warnf logs at warn level.
func Warnf(format string, args ...interface{}) {
	ensureDefault()
	sidlog.Warnf(format, args...)
}

// Errorf logs at error level.
func Errorf(format string, args ...interface{}) {
	ensureDefault()
	sidlog.Errorf(format, args...)
}

// Info logs a single info message.
func Info(args ...interface{}) {
	ensureDefault()
	sidlog.Info(args...)
}

// Error logs a single error message.
func Error(args ...interface{}) {
	ensureDefault()
	sidlog.Error(args...)
}

// Warn logs a single warning message.
func Warn(args ...interface{}) {
	ensureDefault()
	sidlog.Warn(args...)
}
