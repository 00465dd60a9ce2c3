// Package logger provides the kernel's process-wide structured logger.
//
// Every subsystem logs through the package-level functions here rather than
// "log" or "fmt" directly, so that a single call to Initialize controls the
// format (structured JSON vs. human console) and level for the whole
// process, including goroutines spawned deep inside the hostcall runtime.
package logger

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync/atomic"

	"github.com/go-logr/logr"

	"github.com/stacklok/toolhive-core/env"
	"github.com/stacklok/toolhive-core/logging"
)

var singleton atomic.Pointer[slog.Logger]

func init() {
	singleton.Store(logging.New(logging.WithOutput(os.Stderr)))
}

// Get returns the current process-wide logger.
func Get() *slog.Logger {
	return singleton.Load()
}

// unstructuredLogsWithEnv reports whether UNSTRUCTURED_LOGS opts into the
// human console encoder rather than structured JSON. Defaults to true so a
// bare `vkernel serve` run on a terminal is readable without extra flags.
func unstructuredLogsWithEnv(r env.Reader) bool {
	v := r.Getenv("UNSTRUCTURED_LOGS")
	if v == "" {
		return true
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return true
	}
	return b
}

// Initialize configures the singleton logger from the process environment.
func Initialize() {
	InitializeWithEnv(env.OSReader{})
}

// InitializeWithEnv configures the singleton logger using env as the source
// of UNSTRUCTURED_LOGS, allowing tests to inject a mock reader.
func InitializeWithEnv(r env.Reader) {
	opts := []logging.Option{logging.WithOutput(os.Stderr)}
	if unstructuredLogsWithEnv(r) {
		opts = append(opts, logging.WithUnstructured())
	}
	singleton.Store(logging.New(opts...))
}

// NewLogr adapts the singleton logger into a logr.Logger, for components of
// the sandbox engine (wazero) that take a logr-shaped logging interface.
func NewLogr() logr.Logger {
	return logr.FromSlogHandler(Get().Handler())
}

// Debug logs at debug level.
func Debug(msg string) { Get().Debug(msg) }

// Debugf logs a formatted message at debug level.
func Debugf(format string, args ...any) { Get().Debug(sprintf(format, args...)) }

// Debugw logs a message with key/value pairs at debug level.
func Debugw(msg string, kv ...any) { Get().Debug(msg, kv...) }

// Info logs at info level.
func Info(msg string) { Get().Info(msg) }

// Infof logs a formatted message at info level.
func Infof(format string, args ...any) { Get().Info(sprintf(format, args...)) }

// Infow logs a message with key/value pairs at info level.
func Infow(msg string, kv ...any) { Get().Info(msg, kv...) }

// Warn logs at warn level.
func Warn(msg string) { Get().Warn(msg) }

// Warnf logs a formatted message at warn level.
func Warnf(format string, args ...any) { Get().Warn(sprintf(format, args...)) }

// Warnw logs a message with key/value pairs at warn level.
func Warnw(msg string, kv ...any) { Get().Warn(msg, kv...) }

// Error logs at error level.
func Error(msg string) { Get().Error(msg) }

// Errorf logs a formatted message at error level.
func Errorf(format string, args ...any) { Get().Error(sprintf(format, args...)) }

// Errorw logs a message with key/value pairs at error level.
func Errorw(msg string, kv ...any) { Get().Error(msg, kv...) }

// DPanic logs at error level in production; callers that want to crash hard
// during development should use Panic instead.
func DPanic(msg string) { Get().Error(msg) }

// DPanicf logs a formatted message the way DPanic does.
func DPanicf(format string, args ...any) { Get().Error(sprintf(format, args...)) }

// DPanicw logs a message with key/value pairs the way DPanic does.
func DPanicw(msg string, kv ...any) { Get().Error(msg, kv...) }

// Panic logs at error level and then panics with msg.
func Panic(msg string) {
	Get().Error(msg)
	panic(msg)
}

// Panicf logs a formatted message and then panics with it.
func Panicf(format string, args ...any) {
	msg := sprintf(format, args...)
	Get().Error(msg)
	panic(msg)
}

// Panicw logs a message with key/value pairs and then panics with msg.
func Panicw(msg string, kv ...any) {
	Get().Error(msg, kv...)
	panic(msg)
}

func sprintf(format string, args ...any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
