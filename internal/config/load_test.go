package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Empty(t, cfg.Database.Path)
	assert.Equal(t, 30, cfg.Session.LearningHorizonMinutes)
	assert.Equal(t, 30, cfg.Session.WaitThresholdSeconds)
	assert.Equal(t, 3, cfg.Session.StoreTimeoutSeconds)
	assert.Equal(t, 5, cfg.Session.UndoWindowSeconds)
	assert.Equal(t, "gemini-2.0-flash", cfg.LLM.ModelName)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("RECITE_SERVER_PORT", "9090")
	t.Setenv("RECITE_SERVER_LOG_LEVEL", "debug")
	t.Setenv("RECITE_DATABASE_PATH", "/tmp/recite-test.db")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, "/tmp/recite-test.db", cfg.Database.Path)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("RECITE_SERVER_PORT", "0")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsInvalidLogLevel(t *testing.T) {
	t.Setenv("RECITE_SERVER_LOG_LEVEL", "loud")

	_, err := Load()
	assert.Error(t, err)
}
