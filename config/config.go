// Package config owns the cadence daemon configuration: viper-backed
// loading, defaults, validation, TOML persistence and file watching.
package config

import "time"

// Config represents the cadence daemon configuration
type Config struct {
	Server ServerConfig `mapstructure:"server" toml:"server"`
	Engine EngineConfig `mapstructure:"engine" toml:"engine"`
	Remote RemoteConfig `mapstructure:"remote" toml:"remote"`
	Log    LogConfig    `mapstructure:"log" toml:"log"`
}

// ServerConfig configures the HTTP/WebSocket surface
type ServerConfig struct {
	Host string `mapstructure:"host" toml:"host"`
	Port int    `mapstructure:"port" toml:"port"`
}

// EngineConfig configures the session scheduler's timing knobs
type EngineConfig struct {
	AttemptTimeoutSeconds int `mapstructure:"attempt_timeout_seconds" toml:"attempt_timeout_seconds"` // bound on a single action attempt (default: 15)
	SafetyMarginSeconds   int `mapstructure:"safety_margin_seconds" toml:"safety_margin_seconds"`     // added to targetCount*interval for the safety deadline (default: 300)
	RetentionSeconds      int `mapstructure:"retention_seconds" toml:"retention_seconds"`             // how long finished sessions stay queryable (default: 3600)
}

// RemoteConfig configures the outbound resolver and action executor
type RemoteConfig struct {
	RequestTimeoutSeconds int     `mapstructure:"request_timeout_seconds" toml:"request_timeout_seconds"` // outbound HTTP timeout (default: 10)
	RatePerSecond         float64 `mapstructure:"rate_per_second" toml:"rate_per_second"`                 // global outbound attempt rate (default: 5)
	RateBurst             int     `mapstructure:"rate_burst" toml:"rate_burst"`                           // burst allowance (default: 10)
	CredentialToken       string  `mapstructure:"credential_token" toml:"credential_token"`               // bearer token attached to action attempts
	AllowPrivateTargets   bool    `mapstructure:"allow_private_targets" toml:"allow_private_targets"`     // disable the private-IP guard (local testing only)
}

// LogConfig configures logging output
type LogConfig struct {
	JSON bool `mapstructure:"json" toml:"json"`
}

// Default server port (above the privileged range, easy to remember)
const DefaultServerPort = 8377

// AttemptTimeout returns the configured attempt timeout as a duration
func (c *EngineConfig) AttemptTimeout() time.Duration {
	return time.Duration(c.AttemptTimeoutSeconds) * time.Second
}

// SafetyMargin returns the configured safety margin as a duration
func (c *EngineConfig) SafetyMargin() time.Duration {
	return time.Duration(c.SafetyMarginSeconds) * time.Second
}

// Retention returns the configured retention window as a duration
func (c *EngineConfig) Retention() time.Duration {
	return time.Duration(c.RetentionSeconds) * time.Second
}

// RequestTimeout returns the configured outbound request timeout as a duration
func (c *RemoteConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}
