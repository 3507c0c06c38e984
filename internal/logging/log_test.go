package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(LevelWarn, &buf)

	l.Debugf("should not appear")
	l.Infof("should not appear either")
	l.Warnf("warning: %d", 1)
	l.Errorf("error: %s", "boom")

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Fatalf("expected debug/info to be filtered, got %q", out)
	}
	if !strings.Contains(out, "[WARN]") || !strings.Contains(out, "warning: 1") {
		t.Fatalf("expected warn line, got %q", out)
	}
	if !strings.Contains(out, "[ERROR]") || !strings.Contains(out, "error: boom") {
		t.Fatalf("expected error line, got %q", out)
	}
}

func TestWithMergesFields(t *testing.T) {
	var buf bytes.Buffer
	base := New(LevelDebug, &buf)
	child := base.With(map[string]any{"module": "tracer"})
	grandchild := child.With(map[string]any{"call": "c1"})

	grandchild.Infof("hello")

	out := buf.String()
	if !strings.Contains(out, "module=tracer") || !strings.Contains(out, "call=c1") {
		t.Fatalf("expected merged fields, got %q", out)
	}

	// base logger is unaffected by children built from it.
	buf.Reset()
	base.Infof("plain")
	out = buf.String()
	if strings.Contains(out, "module=") {
		t.Fatalf("expected base logger fields to stay empty, got %q", out)
	}
}

func TestSafeSprintQuotesWhitespace(t *testing.T) {
	var buf bytes.Buffer
	l := New(LevelDebug, &buf)
	l = l.With(map[string]any{"path": "lib.foo bar"})
	l.Infof("x")
	if !strings.Contains(buf.String(), `path="lib.foo bar"`) {
		t.Fatalf("expected quoted field with embedded space, got %q", buf.String())
	}
}

func TestNoopDiscardsEverything(t *testing.T) {
	n := Noop()
	n.Debugf("x")
	n.Infof("x")
	n.Warnf("x")
	n.Errorf("x")
	n.With(map[string]any{"a": 1}).Errorf("y")
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug": LevelDebug,
		"INFO":  LevelInfo,
		"Warn":  LevelWarn,
		"error": LevelError,
		"":      LevelWarn,
		"huh":   LevelWarn,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
