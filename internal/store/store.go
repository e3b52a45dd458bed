// Package store persists synced events as one JSON file per calendar month.
//
// The file is a plain JSON array of event records so it can be inspected and
// repaired by hand. Saves are atomic (temp file + rename) so a failed write
// never corrupts the previous state.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"portalsync/internal/event"
)

// Period is the partition key for the store: one calendar month.
type Period struct {
	Year  int
	Month time.Month
}

// PeriodOf returns the period containing the given instant.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// String renders the period as "MM_YYYY", matching the store file names.
func (p Period) String() string {
	return fmt.Sprintf("%02d_%04d", int(p.Month), p.Year)
}

// ParsePeriod parses the "MM_YYYY" form used by file names, the API and the
// CLI.
func ParsePeriod(raw string) (Period, error) {
	parts := strings.SplitN(raw, "_", 2)
	if len(parts) != 2 {
		return Period{}, fmt.Errorf("period must look like MM_YYYY, got %q", raw)
	}
	month, err := strconv.Atoi(parts[0])
	if err != nil || month < 1 || month > 12 {
		return Period{}, fmt.Errorf("invalid month in period %q", raw)
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil || year < 1 {
		return Period{}, fmt.Errorf("invalid year in period %q", raw)
	}
	return Period{Year: year, Month: time.Month(month)}, nil
}

// Bounds returns the first instant of the period and the first instant of the
// next period, in the given location.
func (p Period) Bounds(loc *time.Location) (time.Time, time.Time) {
	start := time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 1, 0)
}

// Days returns the start-of-day instants for every day in the period.
func (p Period) Days(loc *time.Location) []time.Time {
	start, end := p.Bounds(loc)
	var days []time.Time
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// Store reads and writes per-period event files under a data directory.
type Store struct {
	dir string
	log zerolog.Logger
}

// New creates a store rooted at dir. The directory is created on first save.
func New(dir string, log zerolog.Logger) *Store {
	return &Store{dir: dir, log: log.With().Str("component", "store").Logger()}
}

func (s *Store) path(p Period) string {
	return filepath.Join(s.dir, fmt.Sprintf("events_%s.json", p))
}

// Load returns the events stored for the period. A missing file is an empty
// period, not an error.
func (s *Store) Load(p Period) ([]event.Event, error) {
	data, err := os.ReadFile(s.path(p))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", s.path(p), err)
	}

	var events []event.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path(p), err)
	}
	return events, nil
}

// Save overwrites the period file with the given events. The write goes to a
// temp file in the same directory and is renamed into place, so a failure
// leaves the previous file intact.
func (s *Store) Save(p Period, events []event.Event) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	if events == nil {
		events = []event.Event{}
	}
	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal events: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".events-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path(p)); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}

	s.log.Debug().Str("period", p.String()).Int("events", len(events)).Msg("store saved")
	return nil
}

// UpsertByID loads the period, replaces stored records whose id matches one
// of the updated events, appends the rest, and saves. Events without an id
// are skipped; they cannot be keyed.
func (s *Store) UpsertByID(p Period, updated []event.Event) error {
	existing, err := s.Load(p)
	if err != nil {
		return err
	}

	index := make(map[string]int, len(existing))
	for i, ev := range existing {
		if ev.ID != "" {
			index[ev.ID] = i
		}
	}

	for _, ev := range updated {
		if ev.ID == "" {
			s.log.Warn().Str("title", ev.Title).Msg("skipping upsert of event without id")
			continue
		}
		if i, ok := index[ev.ID]; ok {
			existing[i] = ev
		} else {
			index[ev.ID] = len(existing)
			existing = append(existing, ev)
		}
	}

	return s.Save(p, existing)
}
