package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"portalsync/internal/job"
)

var syncForceResync bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one synchronization pass now",
	Long: `Run a single synchronization pass against the portal and exit.

Examples:
  portalsync sync            # Announce only events not seen before
  portalsync sync --resync   # Re-enrich and re-announce everything fetched`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncForceResync, "resync", false, "Treat every fetched event as new")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}

	res := a.registry.Get("sync").Run(context.Background(), job.RunOptions{ForceResync: syncForceResync})
	fmt.Println(res.Message)
	if !res.Success {
		return fmt.Errorf("sync did not complete")
	}
	return nil
}
