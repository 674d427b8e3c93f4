package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestVerbosityGating(t *testing.T) {
	var buf bytes.Buffer
	Initialize(LevelQuiet, &buf)

	Info("info message")
	Debug("debug message")
	if buf.Len() != 0 {
		t.Errorf("quiet level should suppress info/debug, got %q", buf.String())
	}

	Warn("warn message")
	if !strings.Contains(buf.String(), "warn message") {
		t.Errorf("warn should always be visible, got %q", buf.String())
	}
}

func TestInfoLevel(t *testing.T) {
	var buf bytes.Buffer
	Initialize(LevelInfo, &buf)

	Info("batch started", "files", 3)
	if !strings.Contains(buf.String(), "batch started") {
		t.Errorf("expected info output, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), "files=3") {
		t.Errorf("expected structured attr, got %q", buf.String())
	}

	buf.Reset()
	Debug("should not appear")
	if buf.Len() != 0 {
		t.Errorf("debug should be suppressed at info level, got %q", buf.String())
	}
}

func TestLevelPredicates(t *testing.T) {
	var buf bytes.Buffer
	Initialize(LevelDebug, &buf)

	if !IsInfo() || !IsDebug() {
		t.Error("debug level should enable info and debug predicates")
	}
	if IsTrace() {
		t.Error("debug level should not enable trace")
	}
	if Verbosity() != LevelDebug {
		t.Errorf("Verbosity() = %d, want %d", Verbosity(), LevelDebug)
	}
}
