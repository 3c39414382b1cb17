// Package commands implements the gwlbtunctl CLI commands.
package commands

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	// httpClient talks to the daemon's debug HTTP server (/flows, /healthz).
	httpClient = &http.Client{Timeout: 5 * time.Second}

	// serverAddr is the daemon's metrics/debug HTTP address (host:port).
	serverAddr string

	// outputFormat controls the output format for all commands (table, json or yaml).
	outputFormat string
)

// rootCmd is the top-level cobra command for gwlbtunctl.
var rootCmd = &cobra.Command{
	Use:   "gwlbtunctl",
	Short: "CLI client for the gwlbtund Geneve endpoint daemon",
	Long:  "gwlbtunctl queries a running gwlbtund daemon's debug HTTP server to inspect tracked flows and liveness.",
	// Silence cobra's built-in usage/error printing so we control it.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", "localhost:9090",
		"gwlbtund debug HTTP address (host:port)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "table",
		"output format: table, json, yaml")

	rootCmd.AddCommand(flowCmd())
	rootCmd.AddCommand(healthCmd())
	rootCmd.AddCommand(versionCmd())
}

// Execute runs the root command and exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
