package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/voidreach/cadence/config"
	"github.com/voidreach/cadence/logger"
	"github.com/voidreach/cadence/remote"
	"github.com/voidreach/cadence/server"
	"github.com/voidreach/cadence/session"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the cadence daemon",
	Long: `Run the cadence daemon in the foreground.

The daemon will:
- Start the session engine (one scheduling goroutine per active session)
- Serve the HTTP API and the WebSocket lifecycle event stream
- Watch the config file and log when a reload is picked up
- Run until interrupted (Ctrl+C), draining in-flight work on shutdown`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")

		var cfg *config.Config
		var err error
		if configPath != "" {
			cfg, err = config.LoadFromFile(configPath)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if err := logger.Initialize(cfg.Log.JSON); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer logger.Sync()
		log := logger.Logger

		resolver := remote.NewResolver(cfg.Remote.RequestTimeout(), cfg.Remote.AllowPrivateTargets, log)
		executor := remote.NewExecutor(remote.ExecutorConfig{
			RequestTimeout: cfg.Remote.RequestTimeout(),
			RatePerSecond:  cfg.Remote.RatePerSecond,
			RateBurst:      cfg.Remote.RateBurst,
			Token:          cfg.Remote.CredentialToken,
			AllowPrivate:   cfg.Remote.AllowPrivateTargets,
		}, log)

		engineCfg := session.DefaultConfig()
		engineCfg.AttemptTimeout = cfg.Engine.AttemptTimeout()
		engineCfg.SafetyMargin = cfg.Engine.SafetyMargin()
		engineCfg.Retention = cfg.Engine.Retention()

		engine := session.NewEngine(session.NewStore(), resolver, executor, engineCfg, log)
		srv := server.NewServer(engine, cfg.Server.Host, cfg.Server.Port, log)

		if configPath != "" {
			watcher, err := config.NewWatcher(configPath, log)
			if err != nil {
				log.Warnw("Config watcher unavailable", "error", err)
			} else {
				watcher.OnReload(func(updated *config.Config) {
					// Timing knobs apply to sessions started after the reload;
					// running sessions keep the schedule they were created with.
					engine.SetTimings(
						updated.Engine.AttemptTimeout(),
						updated.Engine.SafetyMargin(),
						updated.Engine.Retention())
					log.Infow("Engine timings updated from config",
						"attempt_timeout_seconds", updated.Engine.AttemptTimeoutSeconds,
						"safety_margin_seconds", updated.Engine.SafetyMarginSeconds,
						"retention_seconds", updated.Engine.RetentionSeconds)
				})
				watcher.Start()
				defer watcher.Stop()
			}
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		log.Infow("Cadence daemon started",
			"host", cfg.Server.Host,
			"port", cfg.Server.Port,
			"attempt_timeout", engineCfg.AttemptTimeout,
			"safety_margin", engineCfg.SafetyMargin,
			"retention", engineCfg.Retention)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

		select {
		case sig := <-sigChan:
			log.Infow("Shutting down", "signal", sig.String())
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		}

		// Stop accepting requests first, then stop the scheduling goroutines.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warnw("HTTP server shutdown error", "error", err)
		}
		engine.Shutdown()

		log.Infow("Cadence daemon stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("config", "", "Path to a TOML config file (default: search ./cadence.toml then ~/.config/cadence/)")
}
