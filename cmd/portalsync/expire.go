package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"portalsync/internal/job"
)

var expireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Run the expiry reconciliation pass now",
	Long: `Flag stored events whose window has closed, announce the expiry and
persist the mark. Makes no portal calls.

Example:
  portalsync expire`,
	RunE: runExpire,
}

func init() {
	rootCmd.AddCommand(expireCmd)
}

func runExpire(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}

	res := a.registry.Get("expiry").Run(context.Background(), job.RunOptions{})
	fmt.Println(res.Message)
	if !res.Success {
		return fmt.Errorf("expiry pass did not complete")
	}
	return nil
}
