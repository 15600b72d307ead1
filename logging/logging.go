// Package logging configures the application's zerolog loggers.
//
// Two loggers are produced. The application logger writes to a colored console and, when file
// logging is enabled, to a rotating app.log and (at DEBUG level only) to debug.log, which receives
// nothing but DEBUG records. The audit logger records one REQUEST and one RESPONSE line per HTTP
// request into a rotating audit.log. Components derive child loggers with a "component" field
// instead of creating loggers of their own.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/user/layered-api-go/apperror"
	"github.com/user/layered-api-go/config"
)

const timeFormat = "2006-01-02 15:04:05"

// Loggers bundles the configured loggers together with the files they own.
type Loggers struct {
	App   zerolog.Logger
	Audit zerolog.Logger

	closers []io.Closer
}

// Nop returns loggers that discard everything. Used by tests and commands that do not serve.
func Nop() *Loggers {
	return &Loggers{App: zerolog.Nop(), Audit: zerolog.Nop()}
}

// Setup builds the application and audit loggers from the logging section of the configuration.
// The returned Loggers must be closed on shutdown to flush and release log files.
func Setup(cfg config.LoggingConfig, appName string) (*Loggers, error) {
	level, err := ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: timeFormat}
	appWriters := []io.Writer{console}
	auditWriters := []io.Writer{console}
	l := &Loggers{}

	if cfg.LogToFile {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return nil, apperror.NewConfigError(fmt.Sprintf("failed to create log directory %s", cfg.LogDir), err)
		}

		open := func(name string) (io.Writer, error) {
			w, err := newRotatingWriter(filepath.Join(cfg.LogDir, name), cfg)
			if err != nil {
				_ = l.Close()
				return nil, err
			}
			l.closers = append(l.closers, w)
			return plainText(w), nil
		}

		appFile, err := open("app.log")
		if err != nil {
			return nil, err
		}
		auditFile, err := open("audit.log")
		if err != nil {
			return nil, err
		}
		appWriters = append(appWriters, appFile)
		auditWriters = append(auditWriters, auditFile)

		// debug.log only exists when the process actually runs at DEBUG level.
		if level == zerolog.DebugLevel {
			debugFile, err := open("debug.log")
			if err != nil {
				return nil, err
			}
			appWriters = append(appWriters, exactLevelWriter{w: debugFile, level: zerolog.DebugLevel})
		}
	}

	appCtx := zerolog.New(zerolog.MultiLevelWriter(appWriters...)).
		Level(level).
		With().
		Timestamp().
		Str("app", appName)
	if cfg.DetailedLogs {
		appCtx = appCtx.Caller()
	}
	l.App = appCtx.Logger()

	l.Audit = zerolog.New(zerolog.MultiLevelWriter(auditWriters...)).
		Level(zerolog.InfoLevel).
		With().
		Timestamp().
		Str("component", "audit").
		Logger()

	return l, nil
}

// Close flushes and closes every log file opened by Setup.
func (l *Loggers) Close() error {
	var firstErr error
	for _, c := range l.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.closers = nil
	return firstErr
}

// Component returns a child of the application logger tagged with the component name.
func (l *Loggers) Component(name string) zerolog.Logger {
	return l.App.With().Str("component", name).Logger()
}

// ParseLevel maps the configured level names (DEBUG, INFO, WARNING, ERROR, CRITICAL) to zerolog levels.
func ParseLevel(name string) (zerolog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return zerolog.DebugLevel, nil
	case "INFO", "":
		return zerolog.InfoLevel, nil
	case "WARNING", "WARN":
		return zerolog.WarnLevel, nil
	case "ERROR":
		return zerolog.ErrorLevel, nil
	case "CRITICAL", "FATAL":
		return zerolog.FatalLevel, nil
	default:
		return zerolog.NoLevel, apperror.NewConfigError(fmt.Sprintf("unknown log level %q", name), nil)
	}
}

// plainText renders JSON events as uncolored human readable lines for log files.
func plainText(w io.Writer) io.Writer {
	return zerolog.ConsoleWriter{Out: w, NoColor: true, TimeFormat: timeFormat}
}

// exactLevelWriter passes through only events of a single level.
type exactLevelWriter struct {
	w     io.Writer
	level zerolog.Level
}

func (e exactLevelWriter) Write(p []byte) (int, error) {
	return e.w.Write(p)
}

func (e exactLevelWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level != e.level {
		return len(p), nil
	}
	return e.w.Write(p)
}
