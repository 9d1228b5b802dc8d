package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))
	require.NoError(t, cfg.Validate())

	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, 15, cfg.Engine.AttemptTimeoutSeconds)
	assert.Equal(t, 300, cfg.Engine.SafetyMarginSeconds)
	assert.Equal(t, 3600, cfg.Engine.RetentionSeconds)
	assert.Equal(t, 10, cfg.Remote.RequestTimeoutSeconds)
	assert.False(t, cfg.Log.JSON)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cadence.toml")
	content := `
[server]
port = 9000

[engine]
retention_seconds = 120

[remote]
credential_token = "tok_test"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 120, cfg.Engine.RetentionSeconds)
	assert.Equal(t, "tok_test", cfg.Remote.CredentialToken)
	// Unspecified values keep their defaults
	assert.Equal(t, 15, cfg.Engine.AttemptTimeoutSeconds)
}

func TestLoadFromFileRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cadence.toml")
	require.NoError(t, os.WriteFile(path, []byte("[engine]\nretention_seconds = -5\n"), 0o644))

	_, err := LoadFromFile(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		v := viper.New()
		SetDefaults(v)
		var cfg Config
		require.NoError(t, v.Unmarshal(&cfg))
		return &cfg
	}

	cfg := base()
	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Engine.AttemptTimeoutSeconds = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Remote.RatePerSecond = -1
	assert.Error(t, cfg.Validate())

	assert.NoError(t, base().Validate())
}

func TestWriteDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "cadence.toml")

	require.NoError(t, WriteDefault(path))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultServerPort, cfg.Server.Port)

	// Never overwrites an existing file
	assert.Error(t, WriteDefault(path))
}

func TestDurationHelpers(t *testing.T) {
	ec := EngineConfig{AttemptTimeoutSeconds: 15, SafetyMarginSeconds: 300, RetentionSeconds: 3600}
	assert.Equal(t, "15s", ec.AttemptTimeout().String())
	assert.Equal(t, "5m0s", ec.SafetyMargin().String())
	assert.Equal(t, "1h0m0s", ec.Retention().String())
}
