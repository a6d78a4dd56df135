package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "modelmux",
	Short: "Modelmux - multi-dialect LLM gateway",
	Long: `Modelmux is a gateway that multiplexes LLM inference traffic across
backend accounts and model deployments.

It accepts requests in three client dialects and translates them to the
wire protocol of the deployment each request resolves to:
  - OpenAI chat completions (POST /v1/chat/completions)
  - Claude messages (POST /v1/messages)
  - Gemini generateContent (POST /v1beta/models/<model>:generateContent)

Requests are balanced across accounts and deployment URLs, unknown model
names fall back along per-family alias chains, and backend credentials
are exchanged and cached per account.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
