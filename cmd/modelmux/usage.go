package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/modelmux/modelmux/pkg/cli"
	"github.com/modelmux/modelmux/pkg/config"
	"github.com/modelmux/modelmux/pkg/usage"
)

var usageFlags struct {
	since     time.Duration
	byAccount bool
	format    string
}

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Summarize recorded token usage",
	Long: `Query the usage ledger and print per-model (or per-account) token totals.

Examples:
  # Totals per model over the last 24 hours
  modelmux usage --since 24h

  # Totals per account over the last week
  modelmux usage --since 168h --by-account

  # Machine-readable output
  modelmux usage --format json`,
	RunE: showUsage,
}

func init() {
	rootCmd.AddCommand(usageCmd)

	usageCmd.Flags().DurationVar(&usageFlags.since, "since", 24*time.Hour, "report window")
	usageCmd.Flags().BoolVar(&usageFlags.byAccount, "by-account", false, "group totals by account instead of model")
	usageCmd.Flags().StringVar(&usageFlags.format, "format", "text", "output format: text, json")
}

// usageRow is one line of the report.
type usageRow struct {
	Key              string `json:"key"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
}

func showUsage(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	if !cfg.Usage.IsEnabled() {
		return cli.NewConfigError("usage.enabled", "usage recording is disabled")
	}

	ledger, err := usage.Open(&usage.Config{Path: cfg.Usage.SQLitePath})
	if err != nil {
		return cli.NewCommandError("usage", err)
	}
	defer ledger.Close()

	ctx := context.Background()
	since := time.Now().Add(-usageFlags.since)

	totals, err := ledger.ModelTotals(ctx, since)
	if usageFlags.byAccount {
		totals, err = ledger.AccountTotals(ctx, since)
	}
	if err != nil {
		return cli.NewCommandError("usage", err)
	}

	rows := make([]usageRow, 0, len(totals))
	for key, u := range totals {
		rows = append(rows, usageRow{
			Key:              key,
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			TotalTokens:      u.Total(),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].TotalTokens > rows[j].TotalTokens })

	if usageFlags.format == string(cli.FormatJSON) {
		formatter := cli.NewFormatter(cli.FormatJSON)
		return formatter.FormatTo(os.Stdout, rows)
	}

	if len(rows) == 0 {
		fmt.Printf("No usage recorded since %s\n", since.Format(time.RFC3339))
		return nil
	}
	group := "model"
	if usageFlags.byAccount {
		group = "account"
	}
	fmt.Printf("Token usage by %s since %s\n\n", group, since.Format(time.RFC3339))
	fmt.Printf("%-40s %12s %12s %12s\n", group, "prompt", "completion", "total")
	for _, row := range rows {
		fmt.Printf("%-40s %12d %12d %12d\n",
			row.Key, row.PromptTokens, row.CompletionTokens, row.TotalTokens)
	}
	return nil
}
