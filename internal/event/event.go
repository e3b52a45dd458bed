// Package event defines the calendar event record synced from the portal
// and the dedup/merge rules applied to it.
//
// Records arrive as loosely-shaped JSON from the portal. The known fields
// below are typed; everything else is kept verbatim in Extra so that fields
// added by later pipeline stages (enrichment detail, announce metadata)
// survive every load/save cycle untouched.
package event

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultModule is the portal module used to route detail calls when the
// upstream record does not name one.
const DefaultModule = "conteudosexternos"

// ManualModule marks operator-entered events. Manual ids are namespaced so a
// scrape batch can never collide with them.
const ManualModule = "manual_events"

// Event is one calendar record, fetched from the portal or entered manually.
type Event struct {
	ID     string `json:"id,omitempty"`
	Type   string `json:"type,omitempty"`
	Module string `json:"module,omitempty"`
	// The portal carries the title under "content"; some endpoints use
	// "name" instead.
	Title       string `json:"content,omitempty"`
	Description string `json:"description,omitempty"`
	OpensAt     int64  `json:"timeopen,omitempty"`
	ClosesAt    int64  `json:"timeclose,omitempty"`
	Location    string `json:"local,omitempty"`
	Course      string `json:"course_name,omitempty"`
	Manual      bool   `json:"is_manual,omitempty"`

	// Announce metadata, written back after a successful notification so
	// re-runs stay idempotent.
	AnnounceChannel string `json:"announce_channel,omitempty"`
	AnnounceMessage string `json:"announce_message,omitempty"`
	AnnouncedAt     int64  `json:"announced_at,omitempty"`

	// ClosedMarked is set once the expiry pass has flagged the event.
	ClosedMarked bool `json:"closed_marked,omitempty"`

	// Extra holds upstream fields we do not model. They round-trip exactly.
	Extra map[string]json.RawMessage `json:"-"`
}

// knownKeys are the JSON keys owned by the typed fields above.
var knownKeys = []string{
	"id", "type", "module", "content", "description",
	"timeopen", "timeclose", "local", "course_name", "is_manual",
	"announce_channel", "announce_message", "announced_at", "closed_marked",
}

// UnmarshalJSON decodes the typed fields tolerantly (the portal emits ids and
// timestamps as strings or numbers depending on the endpoint) and stashes
// every unknown key into Extra.
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	e.ID = flexString(raw["id"])
	e.Type = flexString(raw["type"])
	e.Module = flexString(raw["module"])
	e.Title = flexString(raw["content"])
	if e.Title == "" {
		// "name" stays in Extra so the original key round-trips.
		e.Title = flexString(raw["name"])
	}
	e.Description = flexString(raw["description"])
	e.OpensAt = flexInt64(raw["timeopen"])
	e.ClosesAt = flexInt64(raw["timeclose"])
	e.Location = flexString(raw["local"])
	e.Course = flexString(raw["course_name"])
	e.Manual = flexBool(raw["is_manual"])
	e.AnnounceChannel = flexString(raw["announce_channel"])
	e.AnnounceMessage = flexString(raw["announce_message"])
	e.AnnouncedAt = flexInt64(raw["announced_at"])
	e.ClosedMarked = flexBool(raw["closed_marked"])

	for _, k := range knownKeys {
		delete(raw, k)
	}
	if len(raw) > 0 {
		e.Extra = raw
	} else {
		e.Extra = nil
	}
	return nil
}

// MarshalJSON emits the typed fields plus every Extra key. Typed fields win
// on collision so enrichment cannot be shadowed by a stale raw copy.
func (e Event) MarshalJSON() ([]byte, error) {
	type plain Event
	b, err := json.Marshal(plain(e))
	if err != nil {
		return nil, err
	}

	if len(e.Extra) == 0 {
		return b, nil
	}

	var out map[string]json.RawMessage
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	for k, v := range e.Extra {
		if _, taken := out[k]; !taken {
			out[k] = v
		}
	}
	return json.Marshal(out)
}

// Completeness counts populated fields. It is the proxy used to decide which
// of two same-id records in a batch is the richer one.
func (e Event) Completeness() int {
	n := len(e.Extra)
	for _, s := range []string{
		e.ID, e.Type, e.Module, e.Title, e.Description, e.Location, e.Course,
		e.AnnounceChannel, e.AnnounceMessage,
	} {
		if s != "" {
			n++
		}
	}
	for _, v := range []int64{e.OpensAt, e.ClosesAt, e.AnnouncedAt} {
		if v != 0 {
			n++
		}
	}
	if e.Manual {
		n++
	}
	if e.ClosedMarked {
		n++
	}
	return n
}

// MergeDetail overlays the detail record onto the base record. Detail fields
// take precedence; the id is never fabricated or replaced by enrichment.
func MergeDetail(base, detail Event) Event {
	merged := base
	if detail.Type != "" {
		merged.Type = detail.Type
	}
	if detail.Module != "" {
		merged.Module = detail.Module
	}
	if detail.Title != "" {
		merged.Title = detail.Title
	}
	if detail.Description != "" {
		merged.Description = detail.Description
	}
	if detail.OpensAt != 0 {
		merged.OpensAt = detail.OpensAt
	}
	if detail.ClosesAt != 0 {
		merged.ClosesAt = detail.ClosesAt
	}
	if detail.Location != "" {
		merged.Location = detail.Location
	}
	if detail.Course != "" {
		merged.Course = detail.Course
	}
	if len(detail.Extra) > 0 {
		if merged.Extra == nil {
			merged.Extra = make(map[string]json.RawMessage, len(detail.Extra))
		} else {
			// Copy so the base record's map is not mutated.
			copied := make(map[string]json.RawMessage, len(merged.Extra)+len(detail.Extra))
			for k, v := range merged.Extra {
				copied[k] = v
			}
			merged.Extra = copied
		}
		for k, v := range detail.Extra {
			merged.Extra[k] = v
		}
	}
	return merged
}

// Dedup collapses records sharing an id, keeping the record with strictly
// more populated fields. Records without an id pass through unmerged; the
// caller decides what to do with them.
func Dedup(events []Event) []Event {
	byID := make(map[string]int)
	out := make([]Event, 0, len(events))
	for _, ev := range events {
		if ev.ID == "" {
			out = append(out, ev)
			continue
		}
		if i, seen := byID[ev.ID]; seen {
			if ev.Completeness() > out[i].Completeness() {
				out[i] = ev
			}
			continue
		}
		byID[ev.ID] = len(out)
		out = append(out, ev)
	}
	return out
}

// NewManualID generates a namespaced id for an operator-entered event.
func NewManualID(now time.Time) string {
	return fmt.Sprintf("manual_%d_%s", now.Unix(), strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// IsVirtual reports whether the event's location is a URL, i.e. a streamed
// event rather than a physical one.
func (e Event) IsVirtual() bool {
	u, err := url.Parse(e.Location)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Expired reports whether the event's validity window closed before now.
func (e Event) Expired(now time.Time) bool {
	return e.ClosesAt > 0 && e.ClosesAt < now.Unix()
}

// Validate checks the invariants for manually constructed events.
func (e Event) Validate() error {
	if e.Title == "" {
		return fmt.Errorf("event title is required")
	}
	if e.OpensAt == 0 || e.ClosesAt == 0 {
		return fmt.Errorf("event window is required")
	}
	if e.OpensAt >= e.ClosesAt {
		return fmt.Errorf("event opens at %d which is not before close %d", e.OpensAt, e.ClosesAt)
	}
	return nil
}

func flexString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func flexInt64(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 0
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return int64(f)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return v
		}
	}
	return 0
}

func flexBool(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n != 0
	}
	return false
}
