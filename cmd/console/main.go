// Command console runs the dispatch board engine against the call-center API.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "console",
	Short: "Live dispatch board for the call-center operator console",
	Long: `console keeps calls, team leads and categories in sync with the
call-center API and serves the board, call history and dashboard as JSON.

Configuration is read from the environment (APP_PORT, UPSTREAM_BASE_URL,
UPSTREAM_TOKEN, PUSH_MODE, ...).`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(boardCmd)
	rootCmd.AddCommand(callsCmd)
}
