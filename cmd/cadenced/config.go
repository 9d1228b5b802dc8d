package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/voidreach/cadence/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the daemon configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Long:  `Write a cadence.toml populated with the default settings. Refuses to overwrite an existing file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("path")
		if path == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("failed to determine home directory: %w", err)
			}
			path = filepath.Join(home, ".config", "cadence", "cadence.toml")
		}

		if err := config.WriteDefault(path); err != nil {
			return err
		}

		fmt.Printf("Wrote default config to %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  `Load configuration the way the daemon would (files plus CADENCE_* environment variables) and print the result as TOML.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		out, err := toml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to render config: %w", err)
		}

		fmt.Print(string(out))
		return nil
	},
}

func init() {
	configInitCmd.Flags().String("path", "", "Destination file (default: ~/.config/cadence/cadence.toml)")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}
