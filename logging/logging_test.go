package logging_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/warp/leave-engine/logging"
)

func TestNew_JSONToFile(t *testing.T) {
	// GIVEN: a json logger writing into a nested directory
	path := filepath.Join(t.TempDir(), "logs", "leave.log")
	logger, err := logging.New(logging.Config{Level: "debug", OutputPath: path, Format: "json"})
	require.NoError(t, err)

	// WHEN
	logger.Named("award").Info("financial year started")
	require.NoError(t, logger.Sync())

	// THEN
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(raw))), &entry))
	assert.Equal(t, "financial year started", entry["msg"])
	assert.Equal(t, "award", entry["logger"])
	assert.Contains(t, entry, "timestamp")
}

func TestNew_LevelFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leave.log")
	logger, err := logging.New(logging.Config{Level: "WARN", OutputPath: path, Format: "console"})
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("kept")
	require.NoError(t, logger.Sync())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "dropped")
	assert.Contains(t, string(raw), "kept")
}

func TestNew_UnknownLevelDefaultsToInfo(t *testing.T) {
	logger, err := logging.New(logging.Config{Level: "loud", OutputPath: "stderr"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
}
