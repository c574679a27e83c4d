package logger

import (
	"bytes"
	"strings"
	"testing"
)

func newTestLogger(buf *bytes.Buffer, level LogLevel) *Logger {
	return New(Config{Level: level, Output: buf})
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := newTestLogger(&buf, WARN)

	log.Debugf("debug %d", 1)
	log.Infof("info %d", 2)
	log.Warnf("warn %d", 3)
	log.Errorf("error %d", 4)

	out := buf.String()
	if strings.Contains(out, "debug 1") || strings.Contains(out, "info 2") {
		t.Errorf("Messages below WARN should be dropped, got:\n%s", out)
	}
	if !strings.Contains(out, "[WARN] warn 3") || !strings.Contains(out, "[ERROR] error 4") {
		t.Errorf("Expected WARN and ERROR lines, got:\n%s", out)
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	log := newTestLogger(&buf, DEBUG).With("store").With("codec")

	log.Info("loaded")
	if !strings.Contains(buf.String(), "(store/codec) loaded") {
		t.Errorf("Expected nested component tag, got %q", buf.String())
	}
}

func TestMessageWithoutArgsIsNotFormatted(t *testing.T) {
	var buf bytes.Buffer
	newTestLogger(&buf, DEBUG).Info("100% done")

	if !strings.Contains(buf.String(), "100% done") {
		t.Errorf("Expected literal message, got %q", buf.String())
	}
}

func TestFatalCallsExit(t *testing.T) {
	var buf bytes.Buffer
	log := newTestLogger(&buf, INFO)
	code := -1
	log.exit = func(c int) { code = c }

	log.Fatalf("giving up")
	if code != 1 {
		t.Errorf("Expected exit code 1, got %d", code)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   DEBUG,
		" Info ":  INFO,
		"warning": WARN,
		"ERROR":   ERROR,
	}
	for in, want := range cases {
		got, ok := ParseLevel(in)
		if !ok || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, ok, want)
		}
	}
	if _, ok := ParseLevel("loud"); ok {
		t.Error("Expected unknown level to be rejected")
	}
}

func TestSetOutputSharedWithChildren(t *testing.T) {
	var first, second bytes.Buffer
	parent := newTestLogger(&first, INFO)
	child := parent.With("matcher")

	parent.SetOutput(&second)
	child.Info("hello")

	if first.Len() != 0 || !strings.Contains(second.String(), "hello") {
		t.Error("Component loggers should follow the parent's output")
	}
}
