package main

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "portalsync",
	Short: "Sync calendar events from the academic portal",
	Long: `portalsync pulls calendar events from the academic portal, keeps a
per-month JSON store of them, enriches newly discovered events with detail
calls and announces them to a webhook.

Commands:
  run       Run the daemon (scheduler + HTTP API)
  sync      Run one synchronization pass now
  expire    Run the expiry reconciliation pass now
  add       Add a manual event to the store
  events    List stored events for a period
  version   Display version information

Portal credentials are read from the PORTAL_USERNAME and PORTAL_PASSWORD
environment variables.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default ~/.config/portalsync/config.yaml)")
}
