package main

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/modelmux/modelmux/pkg/cli"
	"github.com/modelmux/modelmux/pkg/config"
	"github.com/modelmux/modelmux/pkg/routing"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load and validate a configuration file without starting the gateway.

The command applies defaults and environment overrides the same way run
does, checks every field, builds the routing table, and prints a summary
of the accounts and models the gateway would serve.

Examples:
  # Validate the default config
  modelmux validate

  # Validate a specific file
  modelmux validate --config /etc/modelmux/config.yaml`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		var verr config.ValidationError
		if errors.As(err, &verr) {
			fmt.Printf("✗ Configuration invalid (%d errors)\n", len(verr.Errors))
			for _, fieldErr := range verr.Errors {
				fmt.Printf("  - %s\n", fieldErr)
			}
			return cli.NewConfigError("", "validation failed")
		}
		return cli.NewConfigError("", err.Error())
	}

	table, err := config.BuildTable(cfg)
	if err != nil {
		return cli.NewConfigError("accounts", err.Error())
	}

	fmt.Println("✓ Configuration valid")
	fmt.Printf("  Listen address: %s\n", cfg.Server.ListenAddress)
	fmt.Printf("  Accounts: %d\n", len(table.Accounts()))

	models := table.Models()
	sort.Strings(models)
	for _, model := range models {
		accounts := table.AccountsFor(model)
		fmt.Printf("  Model %s: %d account(s), protocol %s\n",
			model, len(accounts), routing.ClassifyProtocol(model))
	}
	return nil
}
