package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/battlecore/internal/config"
)

func TestNewLogger_JSON(t *testing.T) {
	cfg := config.LoggingConfig{Level: "info", Format: "json"}
	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	assert.NotNil(t, logger)
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
}

func TestNewLogger_Console(t *testing.T) {
	cfg := config.LoggingConfig{Level: "debug", Format: "console"}
	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	_, err := NewLogger(config.LoggingConfig{Level: "trace", Format: "json"})
	assert.Error(t, err)
}

func TestNewLogger_InvalidFormat(t *testing.T) {
	_, err := NewLogger(config.LoggingConfig{Level: "info", Format: "xml"})
	assert.Error(t, err)
}

func TestNewLogger_AllLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		_, err := NewLogger(config.LoggingConfig{Level: level, Format: "json"})
		assert.NoError(t, err, "level %q", level)
	}
}

func TestForBattle_AddsIdentifiers(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ForBattle(zap.New(core), "b-1", "kini_nui").Info("round resolved")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "battle", entry.LoggerName)
	fields := entry.ContextMap()
	assert.Equal(t, "b-1", fields["battle_id"])
	assert.Equal(t, "kini_nui", fields["encounter_id"])
}

func TestForBattle_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() { ForBattle(nil, "b", "e").Info("dropped") })
}
