// Package logging provides the structured application-wide logger, adapted
// from the teacher's pkg/logging: a log/slog-backed leveled logger with a
// subsystem tag and an audit-event helper, minus the TUI channel and
// controller-runtime bridging that don't apply to a standalone CLI.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Level is the severity of a log entry.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var defaultLogger *slog.Logger

// Init configures the package-level logger. Call once at process startup;
// until then, the logger set up by the package's init writes INFO and above
// to stderr.
func Init(level Level, output io.Writer) {
	handler := slog.NewTextHandler(output, &slog.HandlerOptions{Level: level.slogLevel()})
	defaultLogger = slog.New(handler)
}

func init() {
	// A usable default so libraries that log before main calls Init (e.g.
	// in tests) don't panic on a nil logger.
	Init(LevelInfo, os.Stderr)
}

func logInternal(level Level, subsystem string, err error, format string, args ...any) {
	if defaultLogger == nil || !defaultLogger.Enabled(context.Background(), level.slogLevel()) {
		return
	}
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	attrs := []slog.Attr{slog.String("subsystem", subsystem)}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	defaultLogger.LogAttrs(context.Background(), level.slogLevel(), msg, attrs...)
}

func Debug(subsystem, format string, args ...any) { logInternal(LevelDebug, subsystem, nil, format, args...) }
func Info(subsystem, format string, args ...any)  { logInternal(LevelInfo, subsystem, nil, format, args...) }
func Warn(subsystem, format string, args ...any)  { logInternal(LevelWarn, subsystem, nil, format, args...) }
func Error(subsystem string, err error, format string, args ...any) {
	logInternal(LevelError, subsystem, err, format, args...)
}

// AuditEvent is a structured record of a security-sensitive action (auth
// application, rule mutation) for downstream audit collection.
type AuditEvent struct {
	Action    string
	Outcome   string // "success" or "failure"
	Target    string
	Details   string
	Error     string
}

// Audit logs an AuditEvent at INFO level with an [AUDIT] prefix so log
// aggregators can filter on it independent of subsystem.
func Audit(event AuditEvent) {
	parts := make([]string, 0, 5)
	parts = append(parts, "action="+event.Action)
	parts = append(parts, "outcome="+event.Outcome)
	if event.Target != "" {
		parts = append(parts, "target="+event.Target)
	}
	if event.Details != "" {
		parts = append(parts, "details="+event.Details)
	}
	if event.Error != "" {
		parts = append(parts, "error="+event.Error)
	}
	logInternal(LevelInfo, "AUDIT", nil, "[AUDIT] %s", strings.Join(parts, " "))
}
