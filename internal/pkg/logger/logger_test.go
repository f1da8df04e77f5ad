package logger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsolatedLoggerRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "turns.log")
	l := NewIsolatedLogger(path)

	l.Info("ENGINE", "turn resolved", map[string]interface{}{"turn": 1})
	l.Warn("REPLAY", "stale replay", nil)
	l.Info("ENGINE", "turn resolved", map[string]interface{}{"turn": 2})
	require.NoError(t, l.Sync())

	all, err := l.GetLogs("", "", 10, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "ENGINE", all[0].Module, "newest first")
	assert.Equal(t, float64(2), all[0].Details["turn"])

	warn, err := l.GetLogs("WARN", "", 10, 0)
	require.NoError(t, err)
	require.Len(t, warn, 1)
	assert.Equal(t, "REPLAY", warn[0].Module)

	engine, err := l.GetLogs("", "ENGINE", 1, 1)
	require.NoError(t, err)
	require.Len(t, engine, 1)
	assert.Equal(t, float64(1), engine[0].Details["turn"])

	byID, err := l.GetLogById(all[1].Id)
	require.NoError(t, err)
	assert.Equal(t, "stale replay", byID.Message)

	_, err = l.GetLogById("missing")
	assert.Error(t, err)
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.Error("ENGINE", "ignored", map[string]interface{}{"error": "x"})

	logs, err := l.GetLogs("", "", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, logs)
}
