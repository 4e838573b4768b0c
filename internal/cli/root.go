// Package cli holds the invledger command tree.
package cli

import (
	"os"

	"invledger/pkg/config"

	"github.com/spf13/cobra"
)

var RootCmd = &cobra.Command{
	Use:   "invledger",
	Short: "Reconcile inventory screenshots against an item catalog",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ll, err := cmd.Flags().GetString("log-level")
		if err != nil {
			return err
		}
		if _, err := config.ParseLevel(ll); err != nil {
			return err
		}
		// stdout carries command output, so logs go to stderr.
		config.SetupLogging(os.Stderr, ll)
		return nil
	},
	SilenceUsage: true,
}

func init() {
	ll := os.Getenv("LOG_LEVEL")
	if ll == "" {
		ll = "INFO"
	}
	RootCmd.PersistentFlags().String("log-level", ll, "The logging level for the command")
}

// loadConfig reads the environment, then lets an explicit --catalog win.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if f := cmd.Flags().Lookup("catalog"); f != nil && f.Changed {
		cfg.CatalogPath = f.Value.String()
	}
	return cfg, nil
}
