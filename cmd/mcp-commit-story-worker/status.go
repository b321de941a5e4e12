package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/wiggitywhitney/mcp-commit-story-sub001/internal/config"
	"github.com/wiggitywhitney/mcp-commit-story-sub001/internal/telemetry"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the resolved telemetry and journal configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := telemetry.Resolve(config.TelemetryDocument(), os.Getenv)
			if err != nil {
				return err
			}

			bold := color.New(color.Bold)
			bold.Println("mcp-commit-story-worker status")
			fmt.Printf("  journal path:        %s\n", config.JournalPath())
			fmt.Printf("  lookback window:     %.1fh\n", config.LookbackHours())
			fmt.Printf("  service name:        %s\n", cfg.ServiceName)
			fmt.Printf("  console exporter:    enabled=%t\n", cfg.Console.Enabled)
			fmt.Printf("  otlp exporter:       enabled=%t endpoint=%s protocol=%s\n", cfg.OTLP.Enabled, cfg.OTLP.Endpoint, cfg.OTLP.Protocol)
			fmt.Printf("  prometheus exporter: enabled=%t port=%d\n", cfg.Prometheus.Enabled, cfg.Prometheus.Port)
			return nil
		},
	}
}
