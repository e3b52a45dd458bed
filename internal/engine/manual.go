package engine

import (
	"context"
	"fmt"

	"portalsync/internal/event"
	"portalsync/internal/store"
)

// ManualEventInput is an operator-entered event, from the CLI or the HTTP
// API. Times are unix seconds.
type ManualEventInput struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type,omitempty"`
	Course      string `json:"course,omitempty"`
	Location    string `json:"location,omitempty"`
	OpensAt     int64  `json:"opens_at"`
	ClosesAt    int64  `json:"closes_at"`
}

// AddManualEvent validates the input, stores it under a generated manual id
// in the current period and announces it. A failed announcement leaves the
// stored event in place and is reported to the caller.
func (e *Engine) AddManualEvent(ctx context.Context, in ManualEventInput) (event.Event, error) {
	now := e.now().In(e.loc)

	ev := event.Event{
		ID:          event.NewManualID(now),
		Type:        in.Type,
		Module:      event.ManualModule,
		Title:       in.Title,
		Description: in.Description,
		OpensAt:     in.OpensAt,
		ClosesAt:    in.ClosesAt,
		Location:    in.Location,
		Course:      in.Course,
		Manual:      true,
	}
	if err := ev.Validate(); err != nil {
		return event.Event{}, err
	}

	period := store.PeriodOf(now)
	if err := e.store.UpsertByID(period, []event.Event{ev}); err != nil {
		return event.Event{}, fmt.Errorf("store manual event: %w", err)
	}
	e.log.Info().Str("event_id", ev.ID).Str("period", period.String()).Msg("manual event stored")

	ann, err := e.sink.AnnounceEvent(ctx, ev)
	if err != nil {
		return ev, fmt.Errorf("manual event stored but announcement failed: %w", err)
	}
	if !ann.SentAt.IsZero() {
		ev.AnnounceChannel = ann.Channel
		ev.AnnounceMessage = ann.MessageID
		ev.AnnouncedAt = ann.SentAt.Unix()
		if err := e.store.UpsertByID(period, []event.Event{ev}); err != nil {
			e.log.Warn().Err(err).Str("event_id", ev.ID).Msg("announce receipt not persisted")
		}
	}
	return ev, nil
}

// ListEvents returns the stored events for the period containing now.
func (e *Engine) ListEvents(p *store.Period) ([]event.Event, store.Period, error) {
	period := store.PeriodOf(e.now().In(e.loc))
	if p != nil {
		period = *p
	}
	events, err := e.store.Load(period)
	return events, period, err
}
