package config

import "github.com/voidreach/cadence/errors"

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.Newf("server.port must be in (0, 65535], got %d", c.Server.Port)
	}

	if c.Engine.AttemptTimeoutSeconds <= 0 {
		return errors.Newf("engine.attempt_timeout_seconds must be > 0, got %d", c.Engine.AttemptTimeoutSeconds)
	}
	if c.Engine.SafetyMarginSeconds < 0 {
		return errors.Newf("engine.safety_margin_seconds must be >= 0, got %d", c.Engine.SafetyMarginSeconds)
	}
	if c.Engine.RetentionSeconds <= 0 {
		return errors.Newf("engine.retention_seconds must be > 0, got %d", c.Engine.RetentionSeconds)
	}

	if c.Remote.RequestTimeoutSeconds <= 0 {
		return errors.Newf("remote.request_timeout_seconds must be > 0, got %d", c.Remote.RequestTimeoutSeconds)
	}
	if c.Remote.RatePerSecond <= 0 {
		return errors.Newf("remote.rate_per_second must be > 0, got %f", c.Remote.RatePerSecond)
	}
	if c.Remote.RateBurst < 1 {
		return errors.Newf("remote.rate_burst must be >= 1, got %d", c.Remote.RateBurst)
	}

	return nil
}
