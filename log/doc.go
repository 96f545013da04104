// Package log provides a simple, leveled logging interface shared by every
// memobase-go component.
//
// # Log Levels
//
// Five levels, in order of increasing severity: LogLevelDebug,
// LogLevelInfo, LogLevelWarn, LogLevelError, LogLevelNone (disables all
// output).
//
// # Logger Interface
//
// Logger exposes Debug, Info, Warn and Error. Components log a Warn on a
// recoverable failure (an unparseable organize response, a failed lock
// renewal) and an Error on a permanent one (an LLM completion that
// exhausted its retries, a background worker that stops after too many
// consecutive errors).
//
// # Example
//
//	logger := log.NewDefaultLogger(log.LogLevelInfo)
//	logger.Info("flushing buffer for project=%s user=%s", projectID, userID)
//	logger.Warn("lock acquisition for user=%s retried %d times", userID, n)
//
// # Implementations
//
// DefaultLogger wraps the standard library's log package and needs no
// extra dependency. GologLogger wraps github.com/kataras/golog for
// structured, leveled, colorized output:
//
//	glogger := golog.New()
//	logger := log.NewGologLogger(glogger)
//	logger.SetLevel(log.LogLevelDebug)
//
// NoOpLogger discards everything and is useful in tests that don't care
// about log output.
//
// # Package-level logger
//
// SetDefaultLogger/GetDefaultLogger/SetLogLevel manage a package-level
// logger for callers that don't want to thread a Logger value through
// every constructor.
package log
