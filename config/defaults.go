package config

import "github.com/spf13/viper"

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", DefaultServerPort)

	// Engine defaults
	v.SetDefault("engine.attempt_timeout_seconds", 15) // bound on one action attempt
	v.SetDefault("engine.safety_margin_seconds", 300)  // backstop past the estimated completion
	v.SetDefault("engine.retention_seconds", 3600)     // finished sessions stay queryable for an hour

	// Remote defaults
	v.SetDefault("remote.request_timeout_seconds", 10)
	v.SetDefault("remote.rate_per_second", 5.0) // global outbound attempt rate across all sessions
	v.SetDefault("remote.rate_burst", 10)
	v.SetDefault("remote.credential_token", "")
	v.SetDefault("remote.allow_private_targets", false)

	// Log defaults
	v.SetDefault("log.json", false)
}
