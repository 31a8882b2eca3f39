package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelWarn, Output: &buf})

	l.Debug("debug message")
	l.Info("info message")
	l.Warn("warn message")
	l.Error("error message")

	out := buf.String()
	if strings.Contains(out, "debug message") {
		t.Error("debug message should be suppressed at warn level")
	}
	if strings.Contains(out, "info message") {
		t.Error("info message should be suppressed at warn level")
	}
	if !strings.Contains(out, "warn message") {
		t.Error("warn message missing")
	}
	if !strings.Contains(out, "error message") {
		t.Error("error message missing")
	}
}

func TestSetLevelDynamic(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelInfo, Output: &buf})

	l.Debug("before")
	l.SetLevel(LevelDebug)
	l.Debug("after")

	out := buf.String()
	if strings.Contains(out, "before") {
		t.Error("debug suppressed before SetLevel, but found in output")
	}
	if !strings.Contains(out, "after") {
		t.Error("debug after SetLevel missing")
	}
}

func TestWithComponentHeader(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelInfo, Output: &buf})

	l.WithComponent("engine").Info("cycle complete", "tick", 3)

	out := buf.String()
	if !strings.Contains(out, "engine: cycle complete") {
		t.Errorf("component header missing: %q", out)
	}
	if !strings.Contains(out, "tick=3") {
		t.Errorf("attribute missing: %q", out)
	}
	if strings.Contains(out, "component=") {
		t.Errorf("component should be promoted, not rendered as attr: %q", out)
	}
}

func TestQuotedAttrValues(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelInfo, Output: &buf})

	l.Info("msg", "err", "store unavailable")

	if !strings.Contains(buf.String(), `err="store unavailable"`) {
		t.Errorf("expected quoted value: %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"info", LevelInfo, false},
		{"", LevelInfo, false},
		{"WARN", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}

	for _, tc := range cases {
		got, err := ParseLevel(tc.in)
		if tc.wantErr != (err != nil) {
			t.Errorf("ParseLevel(%q) err = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestJSONHandler(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelInfo, Output: &buf, JSON: true})

	l.Info("hello", "k", "v")

	out := buf.String()
	if !strings.Contains(out, `"msg":"hello"`) || !strings.Contains(out, `"k":"v"`) {
		t.Errorf("unexpected JSON output: %q", out)
	}
}
