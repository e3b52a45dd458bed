package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"portalsync/internal/store"
)

var (
	eventsPeriod  string
	eventsJSONOut bool
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List stored events for a period",
	Long: `List the events stored for a period. Defaults to the current month.

Examples:
  portalsync events
  portalsync events --period 03_2026
  portalsync events --json`,
	RunE: runEvents,
}

func init() {
	eventsCmd.Flags().StringVar(&eventsPeriod, "period", "", "Period to list, MM_YYYY")
	eventsCmd.Flags().BoolVar(&eventsJSONOut, "json", false, "Output as JSON")
	rootCmd.AddCommand(eventsCmd)
}

func runEvents(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}

	var period *store.Period
	if eventsPeriod != "" {
		p, err := store.ParsePeriod(eventsPeriod)
		if err != nil {
			return err
		}
		period = &p
	}

	events, p, err := a.engine.ListEvents(period)
	if err != nil {
		return err
	}

	if eventsJSONOut {
		data, err := json.MarshalIndent(events, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	if len(events) == 0 {
		fmt.Printf("No events stored for %s.\n", p)
		return nil
	}

	fmt.Printf("Events for %s:\n", p)
	for _, ev := range events {
		when := "no window"
		if ev.OpensAt != 0 {
			when = time.Unix(ev.OpensAt, 0).Format("2006-01-02 15:04")
		}
		flags := ""
		if ev.Manual {
			flags += " [manual]"
		}
		if ev.ClosedMarked {
			flags += " [closed]"
		}
		fmt.Printf("  %-24s %-16s %s%s\n", ev.ID, when, ev.Title, flags)
	}
	return nil
}
