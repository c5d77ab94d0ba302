package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chartplotterhat/internal/config"
)

func TestEventLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	logger, closeLog := New("shutdown_monitor", config.Log{File: path})

	logger.Infow("Detected shutdown signal, powering off..", "user", "pi")
	logger.Debug("not written at info level")
	require.NoError(t, closeLog())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "shutdown_monitor", entry["logger"])
	assert.Equal(t, "Detected shutdown signal, powering off..", entry["msg"])
	assert.Equal(t, "pi", entry["user"])
	assert.Contains(t, entry, "ts")
}

func TestDebugLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	logger, closeLog := New("spitool", config.Log{File: path, Debug: true})

	logger.Debugw("exchange", "addr", 4)
	require.NoError(t, closeLog())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"level":"debug"`)
}

func TestConsoleOnly(t *testing.T) {
	logger, closeLog := New("spitool", config.Log{})
	logger.Info("console only")
	assert.NoError(t, closeLog())
}

func TestEventLogAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	for _, msg := range []string{"first run", "second run"} {
		logger, closeLog := New("shutdown_monitor", config.Log{File: path})
		logger.Info(msg)
		require.NoError(t, closeLog())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "first run")
	assert.Contains(t, lines[1], "second run")
}
