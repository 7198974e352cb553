// Command portalctl administers the supplies portal: password hashes,
// worksheet import and export, forecasts and the audit trail.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// options holds the persistent flag values shared by every command.
type options struct {
	envFile string
	json    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "portalctl",
		Short:         "Administer the supplies portal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.envFile == "" {
				_ = godotenv.Load()
				return nil
			}
			if err := godotenv.Load(opts.envFile); err != nil {
				return fmt.Errorf("load %s: %w", opts.envFile, err)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "environment file to load (default: .env when present)")
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "output as JSON")

	root.AddCommand(newHashPasswordCmd())
	root.AddCommand(newGenSecretCmd())
	root.AddCommand(newUsersCmd(opts))
	root.AddCommand(newWorksheetsCmd(opts))
	root.AddCommand(newForecastCmd(opts))
	root.AddCommand(newAuditCmd(opts))
	return root
}
