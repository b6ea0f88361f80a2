package log

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARNING"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestInitFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "authlite.log")
	cfg := DefaultConfig()
	cfg.FilePath = path
	cfg.Level = "debug"
	require.NoError(t, Init(cfg))

	Debug("hello from the test", "attempt", "abc123")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "hello from the test"))
	assert.True(t, strings.Contains(string(data), "abc123"))
}

func TestLoggerNeverNil(t *testing.T) {
	assert.NotNil(t, Logger())
}
