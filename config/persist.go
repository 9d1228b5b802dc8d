package config

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/voidreach/cadence/errors"
)

// WriteDefault writes a starter config file with all defaults to path,
// creating parent directories as needed. Refuses to overwrite an existing
// file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return errors.Newf("config file already exists: %s", path)
	}

	defaults := map[string]interface{}{
		"server": map[string]interface{}{
			"host": "127.0.0.1",
			"port": DefaultServerPort,
		},
		"engine": map[string]interface{}{
			"attempt_timeout_seconds": 15,
			"safety_margin_seconds":   300,
			"retention_seconds":       3600,
		},
		"remote": map[string]interface{}{
			"request_timeout_seconds": 10,
			"rate_per_second":         5.0,
			"rate_burst":              10,
			"credential_token":        "",
			"allow_private_targets":   false,
		},
		"log": map[string]interface{}{
			"json": false,
		},
	}

	data, err := toml.Marshal(defaults)
	if err != nil {
		return errors.Wrap(err, "failed to marshal default config")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create config directory for %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write config file %s", path)
	}
	return nil
}
