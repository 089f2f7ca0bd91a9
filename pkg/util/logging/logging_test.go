package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in    string
		want  slog.Level
		known bool
	}{
		{in: "debug", want: slog.LevelDebug, known: true},
		{in: "WARN", want: slog.LevelWarn, known: true},
		{in: "error", want: slog.LevelError, known: true},
		{in: "", want: slog.LevelInfo, known: false},
		{in: "verbose", want: slog.LevelInfo, known: false},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, known := ParseLevel(tc.in)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.known, known)
		})
	}
}

func TestNew(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	var buf bytes.Buffer
	logger := New(&buf, "node-1", "warn")
	logger.Info("dropped")
	logger.Warn("kept", "task_id", "t1")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "kept", record["msg"])
	assert.Equal(t, "node-1", record["node_id"])
	assert.Equal(t, "t1", record["task_id"])
}

func TestNew_EnvOverride(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")

	var buf bytes.Buffer
	New(&buf, "node-1", "error").Debug("visible")
	assert.Contains(t, buf.String(), `"msg":"visible"`)
}
