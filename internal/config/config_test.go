package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/demoforge/mirror/internal/auth"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SeedURL = "https://example.com/"
	require.NoError(t, cfg.Validate())

	assert.Equal(t, RenderAdaptive, cfg.RenderMode)
	assert.Equal(t, 3, cfg.MaxConcurrent)
	assert.Equal(t, 100, cfg.MinContentLength)
	assert.False(t, cfg.RespectRobots)
	assert.Equal(t, time.Minute, cfg.CheckpointInterval)
}

func TestValidateRequiresSeed(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.Validate())
}

func TestValidateClampsValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SeedURL = "https://example.com/"
	cfg.MaxConcurrent = 0
	cfg.PageTimeout = 10 * time.Millisecond
	cfg.RequestGap = -time.Second
	cfg.MinContentLength = -5
	cfg.HeartbeatInterval = 0

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.MaxConcurrent)
	assert.Equal(t, time.Second, cfg.PageTimeout)
	assert.Equal(t, time.Duration(0), cfg.RequestGap)
	assert.Equal(t, 0, cfg.MinContentLength)
	assert.Equal(t, time.Second, cfg.HeartbeatInterval)
}

func TestValidateRejectsBadAuth(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SeedURL = "https://example.com/"
	cfg.Auth = &auth.Credentials{Type: auth.TypeBearer}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid auth config")
}

func TestSaveLoadRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SeedURL = "https://example.com/"
	cfg.MaxPages = 42
	cfg.Resume = true
	cfg.Auth = &auth.Credentials{Type: auth.TypeBearer, Token: "tok"}

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/", loaded.SeedURL)
	assert.Equal(t, 42, loaded.MaxPages)
	assert.True(t, loaded.Resume)
	require.NotNil(t, loaded.Auth)
	assert.Equal(t, auth.TypeBearer, loaded.Auth.Type)

	// Fields absent from the file keep their defaults.
	assert.Equal(t, RenderAdaptive, loaded.RenderMode)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
