package logging

import (
	"testing"

	"github.com/terrencegiggy/content-pipeline/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_DefaultsToInfoJSON(t *testing.T) {
	log, err := New(config.LoggingConfig{})
	require.NoError(t, err)
	assert.NotNil(t, log)
	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestNew_DebugLevelEnabled(t *testing.T) {
	log, err := New(config.LoggingConfig{Level: "debug"})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestNew_ConsoleFormat(t *testing.T) {
	log, err := New(config.LoggingConfig{Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, log)
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "not-a-level"})
	assert.Error(t, err)
}

func TestScope_TagsComponent(t *testing.T) {
	log, err := New(config.LoggingConfig{})
	require.NoError(t, err)
	scoped := Scope(log, ComponentCrawler)
	assert.NotNil(t, scoped)
}
