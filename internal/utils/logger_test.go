package utils

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLoggerWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(zapcore.AddSync(&buf), "debug")

	logger.Info("submission resolved", map[string]interface{}{
		"session_id": "abc",
		"phase":      "succeeded",
	})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "submission resolved", entry["message"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "abc", entry["session_id"])
	assert.Equal(t, "succeeded", entry["phase"])
	assert.Contains(t, entry["caller"], "logger_test.go")
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(zapcore.AddSync(&buf), "warn")

	logger.Infof("hidden %d", 1)
	logger.Debug("hidden", nil)
	assert.Empty(t, buf.String())

	logger.Warn("shown", map[string]interface{}{"n": 2})
	assert.True(t, strings.Contains(buf.String(), `"n":2`))
}
