package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "arena-timer",
		Short: "Arena countdown timer driven over WebSocket",
		Long: `arena-timer keeps one WebSocket (optionally Socket.IO) connection to
the arena control server and applies its timer_update events to a local
countdown. A small HTTP API reports connection state and accepts
connect and disconnect commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		runCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
