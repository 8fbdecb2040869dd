package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = []string{
	"PORT", "LOG_LEVEL", "ENV", "ALLOWED_ORIGINS", "STATS_BACKEND", "STATS_PATH",
	"TURN_TIMEOUT", "HAND_SIZE", "MAX_PLAYERS", "LOW_HAND_PENALTY",
}

// clearEnv blanks every key for the test; Load treats empty as unset.
func clearEnv(t *testing.T) {
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "10000", c.Port)
	assert.Equal(t, "info", c.LogLevel)
	assert.False(t, c.Production)
	assert.Equal(t, []string{"*"}, c.AllowedOrigins)
	assert.Equal(t, "json", c.StatsBackend)
	assert.Equal(t, "./players.json", c.StatsPath)
	assert.Equal(t, 30*time.Second, c.TurnTimeout)
	assert.Equal(t, 7, c.HandSize)
	assert.Equal(t, 10, c.MaxPlayers)
	assert.Equal(t, 2, c.LowHandPenalty)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8080")
	t.Setenv("ENV", "production")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("STATS_BACKEND", "sqlite")
	t.Setenv("TURN_TIMEOUT", "0s")
	t.Setenv("MAX_PLAYERS", "4")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "8080", c.Port)
	assert.True(t, c.Production)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.AllowedOrigins)
	assert.Equal(t, "./uno.db", c.StatsPath)
	assert.Zero(t, c.TurnTimeout)
	assert.Equal(t, 4, c.MaxPlayers)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"TURN_TIMEOUT", "soon"},
		{"TURN_TIMEOUT", "-5s"},
		{"HAND_SIZE", "seven"},
		{"HAND_SIZE", "0"},
		{"MAX_PLAYERS", "11"},
		{"LOW_HAND_PENALTY", "-1"},
		{"STATS_BACKEND", "postgres"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			_, err := Load("")
			assert.ErrorContains(t, err, tt.key)
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("HAND_SIZE")
	t.Setenv("PORT", "9999")
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PORT=1234\nHAND_SIZE=5\n"), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9999", c.Port, "environment wins over the file")
	assert.Equal(t, 5, c.HandSize)

	_, err = Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}
