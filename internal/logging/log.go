// Package logging provides the small structured-logging interface used
// throughout the tracer and replayer: leveled, chainable via With, and
// backed by a compact single-line text formatter.
package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/itchyny/timefmt-go"
)

// Level is the severity of a log record.
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

func (l Level) String() string {
	switch l {
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a string into a Level, defaulting to Warn.
func ParseLevel(s string) Level {
	switch strings.ToUpper(s) {
	case "ERROR":
		return LevelError
	case "WARN", "WARNING":
		return LevelWarn
	case "INFO":
		return LevelInfo
	case "DEBUG":
		return LevelDebug
	default:
		return LevelWarn
	}
}

// Logger is the interface used by every package in this module for
// structured logging.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)

	// With returns a child logger augmented with the given fields.
	With(fields map[string]any) Logger
}

// timestampPattern is a strftime-style pattern rendered via
// itchyny/timefmt-go: an ISO-8601 timestamp with second precision and a
// numeric zone offset.
const timestampPattern = "%Y-%m-%dT%H:%M:%S%z"

type textFormatter struct {
	includeTimestamp bool
}

func newTextFormatter() *textFormatter { return &textFormatter{includeTimestamp: true} }

func (f *textFormatter) format(level Level, msg string, fields map[string]any, now func() (string, error)) []byte {
	var b strings.Builder
	b.Grow(128)

	b.WriteByte('[')
	b.WriteString(level.String())
	b.WriteString("] ")

	if f.includeTimestamp {
		if ts, err := now(); err == nil {
			b.WriteString(ts)
			b.WriteByte(' ')
		}
	}

	b.WriteString(msg)

	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteByte(' ')
			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(safeSprint(fields[k]))
		}
	}

	b.WriteByte('\n')
	return []byte(b.String())
}

func safeSprint(v any) string {
	switch t := v.(type) {
	case string:
		if strings.IndexFunc(t, func(r rune) bool { return r <= ' ' }) >= 0 {
			return fmt.Sprintf("%q", t)
		}
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}

type defaultLogger struct {
	out        io.Writer
	level      Level
	formatter  *textFormatter
	baseFields map[string]any
	mu         *sync.Mutex
	nowFn      func() (string, error)
}

// New creates a logger at the given level, writing to w (os.Stderr if
// w is nil).
func New(level Level, w io.Writer) Logger {
	if w == nil {
		w = os.Stderr
	}
	return &defaultLogger{
		out:        w,
		level:      level,
		formatter:  newTextFormatter(),
		baseFields: map[string]any{},
		mu:         &sync.Mutex{},
		nowFn:      nowTimestamp,
	}
}

func nowTimestamp() (string, error) {
	return timefmt.Format(time.Now(), timestampPattern), nil
}

// noop discards everything; used as the default logger for library
// embedders that never configured one.
type noop struct{}

func (noop) Debugf(string, ...any)      {}
func (noop) Infof(string, ...any)       {}
func (noop) Warnf(string, ...any)       {}
func (noop) Errorf(string, ...any)      {}
func (noop) With(map[string]any) Logger { return noop{} }

// Noop returns a logger that discards all output.
func Noop() Logger { return noop{} }

func (l *defaultLogger) With(fields map[string]any) Logger {
	if len(fields) == 0 {
		return l
	}
	merged := make(map[string]any, len(l.baseFields)+len(fields))
	for k, v := range l.baseFields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &defaultLogger{
		out:        l.out,
		level:      l.level,
		formatter:  l.formatter,
		baseFields: merged,
		mu:         l.mu,
		nowFn:      l.nowFn,
	}
}

func (l *defaultLogger) Debugf(format string, args ...any) { l.logf(LevelDebug, format, args...) }
func (l *defaultLogger) Infof(format string, args ...any)  { l.logf(LevelInfo, format, args...) }
func (l *defaultLogger) Warnf(format string, args ...any)  { l.logf(LevelWarn, format, args...) }
func (l *defaultLogger) Errorf(format string, args ...any) { l.logf(LevelError, format, args...) }

func (l *defaultLogger) logf(level Level, format string, args ...any) {
	if level > l.level {
		return
	}
	msg := fmt.Sprintf(format, args...)

	fields := make(map[string]any, len(l.baseFields))
	for k, v := range l.baseFields {
		fields[k] = v
	}

	line := l.formatter.format(level, msg, fields, l.nowFn)

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.out.Write(line)
}
