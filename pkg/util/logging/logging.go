package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var logLevelMapping = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// ParseLevel maps a level name to a slog level. Unknown names give info.
func ParseLevel(name string) (slog.Level, bool) {
	level, ok := logLevelMapping[strings.ToLower(name)]
	if !ok {
		return slog.LevelInfo, false
	}
	return level, true
}

// New builds the JSON logger every component logs through. LOG_LEVEL, when
// set to a known level, overrides level.
func New(w io.Writer, nodeID string, level string) *slog.Logger {
	logLevel, _ := ParseLevel(level)
	if env, ok := ParseLevel(os.Getenv("LOG_LEVEL")); ok {
		logLevel = env
	}

	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	})).With("node_id", nodeID)
}

// InitDefault installs the logger as slog's default. Logs go to stderr so
// command output on stdout stays clean.
func InitDefault(nodeID string, level string) {
	slog.SetDefault(New(os.Stderr, nodeID, level))
}
