// cadenced is the cadence daemon: it schedules repeating-action sessions
// against remote targets and serves their lifecycle over HTTP and WebSocket.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/voidreach/cadence/logger"
)

var rootCmd = &cobra.Command{
	Use:   "cadenced",
	Short: "Cadence - repeating-action session daemon",
	Long: `Cadence schedules repeating-action sessions: each session performs a
remote action at a fixed interval until a target count of successful
attempts is reached, then settles into a terminal state.

Available commands:
  serve    - Run the daemon in the foreground
  config   - Manage the daemon configuration file
  version  - Show version information

Examples:
  cadenced serve                 # Start with config from the default locations
  cadenced serve --config ./cadence.toml
  cadenced config init           # Write a default config file`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetCount("verbose")
		if verbose > 0 {
			return logger.SetVerbose()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
