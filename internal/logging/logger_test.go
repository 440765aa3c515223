package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestLogger(buf *bytes.Buffer, level, format string) Logger {
	return NewWithWriter(Config{Level: level, Format: format}, buf)
}

func decodeEntry(t *testing.T, data []byte) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("Failed to parse JSON output %q: %v", data, err)
	}
	return entry
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"info", LevelInfo, false},
		{"", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"WARNING", LevelWarn, false},
		{"error", LevelError, false},
		{"trace", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownLevel) {
					t.Fatalf("ParseLevel(%q) error = %v, want ErrUnknownLevel", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLevel(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLevelString(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "debug"},
		{LevelInfo, "info"},
		{LevelWarn, "warn"},
		{LevelError, "error"},
		{Level(99), "unknown"},
		{Level(-1), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("JSON"); err != nil || f != FormatJSON {
		t.Errorf("ParseFormat(JSON) = %v, %v", f, err)
	}
	if f, err := ParseFormat(""); err != nil || f != FormatText {
		t.Errorf("ParseFormat(\"\") = %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("ParseFormat(xml) error = %v, want ErrUnknownFormat", err)
	}
}

func TestLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf, "debug", "json")

	l.Info("index opened", "path", "/tmp/cn.xdbm", "pages", 42)

	out := buf.String()
	if !strings.HasPrefix(out, `{"ts":`) || !strings.HasSuffix(out, "}\n") {
		t.Fatalf("unexpected JSON framing: %q", out)
	}
	if !strings.Contains(out, `"level":"info","msg":"index opened","path":"/tmp/cn.xdbm","pages":42}`) {
		t.Errorf("keys out of order: %s", out)
	}

	entry := decodeEntry(t, buf.Bytes())
	if entry["pages"] != float64(42) {
		t.Errorf("pages = %v, want 42", entry["pages"])
	}
}

func TestLoggerText(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf, "debug", "text").WithIndex("cn").WithFields("zeta", 1)

	l.Info("synced", "alpha", 2)

	if !strings.Contains(buf.String(), "[info] synced index=cn zeta=1 alpha=2\n") {
		t.Errorf("unexpected text output: %q", buf.String())
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf, "warn", "text")

	l.Debug("debug message")
	l.Info("info message")
	l.Warn("warn message")
	l.Error("error message")

	out := buf.String()
	for _, filtered := range []string{"debug message", "info message"} {
		if strings.Contains(out, filtered) {
			t.Errorf("%q should be filtered", filtered)
		}
	}
	for _, kept := range []string{"warn message", "error message"} {
		if !strings.Contains(out, kept) {
			t.Errorf("%q should be present", kept)
		}
	}

	if l.Enabled(LevelInfo) {
		t.Error("Enabled(LevelInfo) = true at warn level")
	}
	if !l.Enabled(LevelError) {
		t.Error("Enabled(LevelError) = false at warn level")
	}
}

func TestLoggerWithIndex(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf, "debug", "json")

	l.WithIndex("uid").Error("sync failed", "error", errors.New("disk full"))

	entry := decodeEntry(t, buf.Bytes())
	if entry["index"] != "uid" {
		t.Errorf("index = %v, want uid", entry["index"])
	}
	if entry["error"] != "disk full" {
		t.Errorf("error = %v, want the error message", entry["error"])
	}
}

func TestLoggerFieldOverride(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf, "debug", "text").WithFields("pairs", 1, "path", "a")

	l.Info("dropped", "pairs", 3, "dangling")

	out := buf.String()
	if !strings.Contains(out, "dropped pairs=3 path=a\n") {
		t.Errorf("unexpected text output: %q", out)
	}
}

func TestLoggerReservedKeys(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf, "debug", "json")

	l.Info("real", "msg", "shadow", "level", "bogus")

	entry := decodeEntry(t, buf.Bytes())
	if entry["msg"] != "real" || entry["level"] != "info" {
		t.Errorf("reserved keys overwritten: %v", entry)
	}
}

func TestLoggerChildIsolation(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf, "debug", "json")
	child := l.WithFields("child_field", "value")

	l.Info("parent message")
	if _, ok := decodeEntry(t, buf.Bytes())["child_field"]; ok {
		t.Error("parent logger should not have the child's fields")
	}

	buf.Reset()
	child.Info("child message")
	if got := decodeEntry(t, buf.Bytes())["child_field"]; got != "value" {
		t.Errorf("child_field = %v, want value", got)
	}
}

func TestNewLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.log")
	l, err := New(Config{Level: "debug", Format: "json", Output: path})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	l.Debug("written to file")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if decodeEntry(t, data)["msg"] != "written to file" {
		t.Errorf("unexpected log file contents: %s", data)
	}
}

func TestNewLoggerErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"level", Config{Level: "trace"}, ErrUnknownLevel},
		{"format", Config{Format: "xml"}, ErrUnknownFormat},
		{"output", Config{Output: filepath.Join(t.TempDir(), "missing", "index.log")}, os.ErrNotExist},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); !errors.Is(err, tt.want) {
				t.Errorf("New() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNopLogger(t *testing.T) {
	l := NewNop()

	// These should not panic
	l.Debug("test")
	l.Info("test")
	l.Warn("test")
	l.Error("test")

	if l.Enabled(LevelError) {
		t.Error("nop logger should not be enabled")
	}
	if l.WithIndex("uid") == nil || l.WithFields("key", "value") == nil {
		t.Error("derived nop loggers should not be nil")
	}
}

func TestLoggerAllLevels(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf, "debug", "json")

	tests := []struct {
		logFunc func(string, ...interface{})
		level   string
	}{
		{l.Debug, "debug"},
		{l.Info, "info"},
		{l.Warn, "warn"},
		{l.Error, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			buf.Reset()
			tt.logFunc("test message")

			if got := decodeEntry(t, buf.Bytes())["level"]; got != tt.level {
				t.Errorf("level = %v, want %s", got, tt.level)
			}
		})
	}
}
