package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogger_FormatsKeyValues(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo(&buf, "test")

	l.Info("document processed", "job", "abc", "confidence", 91.5, "dangling")

	out := buf.String()
	assert.Contains(t, out, "[test] ")
	assert.Contains(t, out, "[INFO] document processed job=abc confidence=91.5")
	assert.NotContains(t, out, "dangling")
}

func TestLogger_DebugGated(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo(&buf, "test")
	l.SetDebug(false)

	l.Debug("hidden")
	assert.Empty(t, buf.String())

	child := l.Named("child")
	l.SetDebug(true)
	child.Debug("shown", "k", 1)
	assert.Contains(t, buf.String(), "[child] ")
	assert.Contains(t, buf.String(), "[DEBUG] shown k=1")
}

func TestNop(t *testing.T) {
	var s Sink = Nop()
	s.Info("x")
	s.Error("y", "k", "v")
}
