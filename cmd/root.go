package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

// Version is set by main from build-time ldflags.
var Version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "askdb",
	Short: "Ask questions about a SQL database in plain language",
	Long: `askdb turns natural-language questions into a single read-only SELECT,
checks it against a deny-by-default policy and runs it with bounded rows and time.

Configuration is read from --config, $ASKDB_CONFIG or ./config.yaml, and every
setting can be overridden with environment variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute(version string) error {
	Version = version
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default $ASKDB_CONFIG or config.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(schemaCmd)
}
