package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelWarn, Output: &buf})

	logger.Debug("should not appear")
	logger.Info("should not appear either")
	logger.Warn("this one should")
	logger.Error("and this one")

	out := buf.String()
	assert.NotContains(t, out, "should not appear")
	assert.Contains(t, out, "[WARN] this one should")
	assert.Contains(t, out, "[ERROR] and this one")
}

func TestPrintfFormatsLikeInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Output: &buf})
	logger.Printf("heap %d registered", 3)
	assert.True(t, strings.Contains(buf.String(), "[INFO] heap 3 registered"))
}

func TestDefaultLoggerIsSingleton(t *testing.T) {
	a := Default()
	b := Default()
	assert.Same(t, a, b)
}

func TestSetDefaultReplacesSingleton(t *testing.T) {
	var buf bytes.Buffer
	custom := NewLogger(&Config{Level: LevelDebug, Output: &buf})
	prev := Default()
	SetDefault(custom)
	defer SetDefault(prev)

	Info("routed through custom logger")
	assert.Contains(t, buf.String(), "routed through custom logger")
}
