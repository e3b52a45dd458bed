package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"portalsync/internal/engine"
)

var (
	addTitle       string
	addDescription string
	addType        string
	addCourse      string
	addLocation    string
	addStart       string
	addEnd         string
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a manual event to the store",
	Long: `Add an operator-entered event to the current period's store and
announce it. Times accept RFC 3339 or unix seconds.

Examples:
  portalsync add --title "Plantão de dúvidas" \
    --start 2026-03-20T19:00:00-03:00 --end 2026-03-20T21:00:00-03:00 \
    --location https://meet.example/xyz`,
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringVar(&addTitle, "title", "", "Event title (required)")
	addCmd.Flags().StringVar(&addDescription, "description", "", "Event description")
	addCmd.Flags().StringVar(&addType, "type", "", "Event type (e.g. Live)")
	addCmd.Flags().StringVar(&addCourse, "course", "", "Course name")
	addCmd.Flags().StringVar(&addLocation, "location", "", "Location or stream URL")
	addCmd.Flags().StringVar(&addStart, "start", "", "Event start, RFC 3339 or unix seconds (required)")
	addCmd.Flags().StringVar(&addEnd, "end", "", "Event end, RFC 3339 or unix seconds (required)")
	addCmd.MarkFlagRequired("title")
	addCmd.MarkFlagRequired("start")
	addCmd.MarkFlagRequired("end")
	rootCmd.AddCommand(addCmd)
}

// parseWhen accepts RFC 3339 timestamps or raw unix seconds.
func parseWhen(raw string) (int64, error) {
	if ts, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return ts, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q, want RFC 3339 or unix seconds", raw)
	}
	return t.Unix(), nil
}

func runAdd(cmd *cobra.Command, args []string) error {
	opens, err := parseWhen(addStart)
	if err != nil {
		return err
	}
	closes, err := parseWhen(addEnd)
	if err != nil {
		return err
	}

	a, err := newApp(false)
	if err != nil {
		return err
	}

	ev, err := a.engine.AddManualEvent(context.Background(), engine.ManualEventInput{
		Title:       addTitle,
		Description: addDescription,
		Type:        addType,
		Course:      addCourse,
		Location:    addLocation,
		OpensAt:     opens,
		ClosesAt:    closes,
	})
	if err != nil {
		if ev.ID != "" {
			fmt.Printf("Event %s stored, but: %v\n", ev.ID, err)
			return nil
		}
		return err
	}

	fmt.Printf("Event %s added\n", ev.ID)
	return nil
}
