package logging

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level is the severity of a log entry.
type Level int8

const (
	// LevelDebug is the most verbose level.
	LevelDebug Level = iota
	// LevelInfo is for informational messages.
	LevelInfo
	// LevelWarn is for warning messages.
	LevelWarn
	// LevelError is for error messages.
	LevelError
)

var levelNames = [...]string{
	LevelDebug: "debug",
	LevelInfo:  "info",
	LevelWarn:  "warn",
	LevelError: "error",
}

// String returns the lowercase level name.
func (l Level) String() string {
	if l < LevelDebug || int(l) >= len(levelNames) {
		return "unknown"
	}
	return levelNames[l]
}

// Parse errors.
var (
	ErrUnknownLevel  = errors.New("unknown log level")
	ErrUnknownFormat = errors.New("unknown log format")
)

// ParseLevel parses a level name. The empty string is LevelInfo.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("%w: %q", ErrUnknownLevel, s)
}

// Format is the encoding of log entries.
type Format int8

const (
	// FormatText writes one human-readable line per entry.
	FormatText Format = iota
	// FormatJSON writes one JSON object per line.
	FormatJSON
)

// ParseFormat parses a format name. The empty string is FormatText.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	}
	return FormatText, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Logger is the interface for structured logging.
type Logger interface {
	// Debug logs a debug message with optional key-value pairs.
	Debug(msg string, keysAndValues ...interface{})
	// Info logs an info message with optional key-value pairs.
	Info(msg string, keysAndValues ...interface{})
	// Warn logs a warning message with optional key-value pairs.
	Warn(msg string, keysAndValues ...interface{})
	// Error logs an error message with optional key-value pairs.
	Error(msg string, keysAndValues ...interface{})
	// Enabled reports whether entries at level are written.
	Enabled(level Level) bool
	// WithIndex returns a logger that tags entries with an index attribute.
	WithIndex(attribute string) Logger
	// WithFields returns a logger that adds the pairs to every entry.
	WithFields(keysAndValues ...interface{}) Logger
}

// Config holds the logger configuration.
type Config struct {
	Level  string
	Format string
	// Output is "stdout", "stderr" or a file path opened for appending.
	Output string
}

// field is one key-value pair of an entry.
type field struct {
	key   string
	value interface{}
}

// sink is the destination shared by a logger and every logger derived
// from it.
type sink struct {
	mu  sync.Mutex
	w   io.Writer
	buf []byte
}

type logger struct {
	level  Level
	format Format
	out    *sink
	index  string
	fields []field
}

// New creates a Logger from cfg. Unknown levels, unknown formats and
// unwritable output files are errors.
func New(cfg Config) (Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	format, err := ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}

	var w io.Writer
	switch cfg.Output {
	case "", "stdout":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log output: %w", err)
		}
		w = f
	}
	return newLogger(level, format, w), nil
}

// NewWithWriter creates a Logger writing to w. cfg.Output is ignored and
// unknown levels or formats fall back to info and text.
func NewWithWriter(cfg Config, w io.Writer) Logger {
	level, _ := ParseLevel(cfg.Level)
	format, _ := ParseFormat(cfg.Format)
	return newLogger(level, format, w)
}

func newLogger(level Level, format Format, w io.Writer) *logger {
	return &logger{level: level, format: format, out: &sink{w: w}}
}

// NewNop creates a logger that discards everything.
func NewNop() Logger {
	return nopLogger{}
}

func (l *logger) Debug(msg string, keysAndValues ...interface{}) {
	l.log(LevelDebug, msg, keysAndValues)
}

func (l *logger) Info(msg string, keysAndValues ...interface{}) {
	l.log(LevelInfo, msg, keysAndValues)
}

func (l *logger) Warn(msg string, keysAndValues ...interface{}) {
	l.log(LevelWarn, msg, keysAndValues)
}

func (l *logger) Error(msg string, keysAndValues ...interface{}) {
	l.log(LevelError, msg, keysAndValues)
}

func (l *logger) Enabled(level Level) bool {
	return level >= l.level
}

func (l *logger) WithIndex(attribute string) Logger {
	child := *l
	child.index = attribute
	return &child
}

func (l *logger) WithFields(keysAndValues ...interface{}) Logger {
	child := *l
	child.fields = appendPairs(append([]field(nil), l.fields...), keysAndValues)
	return &child
}

// appendPairs adds key-value pairs to fields. A key already present keeps
// its position and takes the new value. A trailing key without a value is
// dropped.
func appendPairs(fields []field, keysAndValues []interface{}) []field {
outer:
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		value := keysAndValues[i+1]
		if err, ok := value.(error); ok {
			value = err.Error()
		}
		for j := range fields {
			if fields[j].key == key {
				fields[j].value = value
				continue outer
			}
		}
		fields = append(fields, field{key: key, value: value})
	}
	return fields
}

func (l *logger) log(level Level, msg string, keysAndValues []interface{}) {
	if !l.Enabled(level) {
		return
	}

	fields := l.fields
	if len(keysAndValues) > 0 {
		fields = appendPairs(append([]field(nil), l.fields...), keysAndValues)
	}
	ts := time.Now().UTC().Format(time.RFC3339)

	l.out.mu.Lock()
	defer l.out.mu.Unlock()

	b := l.out.buf[:0]
	if l.format == FormatJSON {
		b = appendJSON(b, ts, level, msg, l.index, fields)
	} else {
		b = appendText(b, ts, level, msg, l.index, fields)
	}
	b = append(b, '\n')
	_, _ = l.out.w.Write(b)
	l.out.buf = b
}

// appendText renders an entry as
//
//	2026-02-18T10:30:00Z [info] msg index=cn key=value
func appendText(b []byte, ts string, level Level, msg, index string, fields []field) []byte {
	b = fmt.Appendf(b, "%s [%s] %s", ts, level, msg)
	if index != "" {
		b = append(b, " index="...)
		b = append(b, index...)
	}
	for _, f := range fields {
		b = fmt.Appendf(b, " %s=%v", f.key, f.value)
	}
	return b
}

// appendJSON renders an entry as one JSON object with a stable key order.
func appendJSON(b []byte, ts string, level Level, msg, index string, fields []field) []byte {
	b = append(b, '{')
	b = appendJSONPair(b, "ts", ts)
	b = append(b, ',')
	b = appendJSONPair(b, "level", level.String())
	b = append(b, ',')
	b = appendJSONPair(b, "msg", msg)
	if index != "" {
		b = append(b, ',')
		b = appendJSONPair(b, "index", index)
	}
	for _, f := range fields {
		switch f.key {
		case "ts", "level", "msg", "index":
			continue
		}
		b = append(b, ',')
		b = appendJSONPair(b, f.key, f.value)
	}
	return append(b, '}')
}

func appendJSONPair(b []byte, key string, value interface{}) []byte {
	k, _ := json.Marshal(key)
	v, err := json.Marshal(value)
	if err != nil {
		v, _ = json.Marshal(fmt.Sprint(value))
	}
	b = append(b, k...)
	b = append(b, ':')
	return append(b, v...)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{})       {}
func (nopLogger) Info(string, ...interface{})        {}
func (nopLogger) Warn(string, ...interface{})        {}
func (nopLogger) Error(string, ...interface{})       {}
func (nopLogger) Enabled(Level) bool                 { return false }
func (n nopLogger) WithIndex(string) Logger          { return n }
func (n nopLogger) WithFields(...interface{}) Logger { return n }
