package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/modelmux/modelmux/pkg/cli"
	"github.com/modelmux/modelmux/pkg/config"
	"github.com/modelmux/modelmux/pkg/gateway"
	"github.com/modelmux/modelmux/pkg/telemetry/logging"
	"github.com/modelmux/modelmux/pkg/telemetry/metrics"
	"github.com/modelmux/modelmux/pkg/usage"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
	noWatch       bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the modelmux gateway",
	Long: `Start the gateway with the specified configuration.

The server listens on the configured address and serves the three client
dialects, routing each request to a backend deployment and translating
between wire protocols.

Examples:
  # Start with default config
  modelmux run

  # Start with custom config
  modelmux run --config /etc/modelmux/config.yaml

  # Override listen address
  modelmux run --listen 0.0.0.0:8080

  # Validate config without starting the server
  modelmux run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
	runCmd.Flags().BoolVar(&runFlags.noWatch, "no-watch", false, "disable configuration hot reload")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := logging.Setup(cfg.Telemetry.Logging.Level, cfg.Telemetry.Logging.Format, nil)
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	fmt.Printf("Modelmux v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	table, err := config.BuildTable(cfg)
	if err != nil {
		return cli.NewConfigError("accounts", err.Error())
	}
	fmt.Printf("✓ Routing table built (%d accounts, %d models)\n",
		len(table.Accounts()), len(table.Models()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Usage ledger and retention scheduler
	var ledger *usage.Ledger
	if cfg.Usage.IsEnabled() {
		ledger, err = usage.Open(&usage.Config{Path: cfg.Usage.SQLitePath})
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		defer ledger.Close()

		scheduler := usage.NewScheduler(ledger, cfg.Usage.PruneSchedule, cfg.Usage.RetentionDays)
		if err := scheduler.Start(ctx); err != nil {
			slog.Warn("failed to start usage retention scheduler", "error", err)
		} else {
			defer scheduler.Stop()
		}
		fmt.Printf("✓ Usage ledger opened (%s)\n", cfg.Usage.SQLitePath)
	}

	// Prometheus metrics
	var collector *metrics.Collector
	if cfg.Telemetry.Metrics.IsEnabled() {
		collector = metrics.NewCollector(prometheus.NewRegistry())
	}

	gw := gateway.New(cfg, table, ledger, collector)
	srv := gateway.NewServer(cfg, gw)

	// Configuration hot reload: rebuild the routing table on file change.
	// A bad edit is logged and the previous table stays in effect.
	if !runFlags.noWatch {
		watcher, err := config.NewWatcher(cfgFile, logger)
		if err != nil {
			slog.Warn("config watcher unavailable, hot reload disabled", "error", err)
		} else {
			go func() {
				werr := watcher.Watch(ctx, func() error {
					newCfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
					if err != nil {
						return err
					}
					newTable, err := config.BuildTable(newCfg)
					if err != nil {
						return err
					}
					gw.SwapTable(newTable)
					return nil
				})
				if werr != nil {
					slog.Warn("config watcher stopped", "error", werr)
				}
			}()
			fmt.Println("✓ Configuration hot reload enabled")
		}
	}

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(ctx); err != nil {
			errChan <- err
		}
		close(errChan)
	}()

	fmt.Println()
	fmt.Printf("✓ Gateway listening on %s\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Health endpoint: http://%s/healthz\n", cfg.Server.ListenAddress)
	if collector != nil {
		fmt.Printf("✓ Metrics endpoint: http://%s%s\n", cfg.Server.ListenAddress, cfg.Telemetry.Metrics.Path)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	sigChan := cli.ShutdownSignal()

	select {
	case err := <-errChan:
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		return nil
	case sig := <-sigChan:
		fmt.Printf("\nReceived signal %s, shutting down gracefully...\n", sig)
		cancel()
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("shutdown failed", "error", err)
			return cli.NewCommandError("run", err)
		}
		fmt.Println("✓ Gateway stopped")
		return nil
	}
}
