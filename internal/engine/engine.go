// Package engine runs the synchronization pipeline: authenticate, fetch,
// reconcile against the store, enrich new records, announce them, and the
// separate expiry reconciliation pass.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"portalsync/internal/config"
	"portalsync/internal/event"
	"portalsync/internal/metrics"
	"portalsync/internal/notify"
	"portalsync/internal/portal"
	"portalsync/internal/store"
)

// Status is the in-memory record of the last run, served on /api/status.
type Status struct {
	LastRun    time.Time `json:"last_run"`
	LastResult string    `json:"last_result"`
	NewEvents  int       `json:"new_events"`
	Running    bool      `json:"running"`
}

// Engine owns the pipeline. One engine serves both the sync and expiry jobs;
// a shared run lock keeps them from touching the same period concurrently.
type Engine struct {
	cfg   *config.Config
	creds config.Credentials
	store *store.Store
	sink  notify.Sink
	loc   *time.Location
	log   zerolog.Logger

	// now is swapped in tests to pin the period.
	now func() time.Time

	runMu sync.Mutex

	statusMu sync.Mutex
	status   Status
}

// New builds an engine over the given store and sink.
func New(cfg *config.Config, creds config.Credentials, st *store.Store, sink notify.Sink, loc *time.Location, log zerolog.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		creds:  creds,
		store:  st,
		sink:   sink,
		loc:    loc,
		log:    log.With().Str("component", "engine").Logger(),
		now:    time.Now,
		status: Status{LastResult: "never"},
	}
}

// Status returns a copy of the last-run record.
func (e *Engine) Status() Status {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()
	return e.status
}

func (e *Engine) setRunning(running bool) {
	e.statusMu.Lock()
	e.status.Running = running
	e.statusMu.Unlock()
}

func (e *Engine) finishRun(result string, newEvents int) {
	e.statusMu.Lock()
	e.status = Status{
		LastRun:    e.now(),
		LastResult: result,
		NewEvents:  newEvents,
	}
	e.statusMu.Unlock()
	metrics.SyncRuns.WithLabelValues(result).Inc()
}

// Run executes one synchronization pass and reports success as a boolean.
// An overlapping trigger is skipped, not queued. forceResync treats every
// fetched event as new, re-running enrichment and announcements.
func (e *Engine) Run(ctx context.Context, forceResync bool) bool {
	if !e.runMu.TryLock() {
		e.log.Warn().Msg("sync already running, skipping trigger")
		metrics.SyncRuns.WithLabelValues("skipped").Inc()
		return false
	}
	defer e.runMu.Unlock()

	e.setRunning(true)
	defer e.setRunning(false)

	// The period is captured once here. A run that crosses midnight into a
	// new month keeps writing to the partition it started in.
	startedAt := e.now().In(e.loc)
	period := store.PeriodOf(startedAt)
	log := e.log.With().Str("period", period.String()).Logger()
	log.Info().Bool("force_resync", forceResync).Msg("sync run starting")

	session := portal.NewSession(e.cfg.Portal, e.log)
	defer session.Close()

	if !session.Login(ctx, e.creds.Username, e.creds.Password) {
		log.Error().Msg("sync aborted, portal login failed")
		if err := e.sink.AuthFailure(ctx, session.CredentialsRejected()); err != nil {
			log.Warn().Err(err).Msg("auth failure signal not delivered")
		}
		e.finishRun("failure", 0)
		return false
	}

	client, err := portal.NewClient(session, e.log)
	if err != nil {
		log.Error().Err(err).Msg("sync aborted, client setup failed")
		e.finishRun("failure", 0)
		return false
	}

	fetched, ok := e.fetch(ctx, client, period, startedAt, forceResync, log)
	if !ok {
		log.Error().Msg("sync aborted, every fetch strategy failed")
		e.finishRun("failure", 0)
		return false
	}

	fresh, ok := e.reconcile(period, fetched, forceResync, log)
	if !ok {
		e.finishRun("failure", 0)
		return false
	}

	enriched := e.enrich(ctx, client, period, fresh, log)
	e.announce(ctx, period, enriched, log)

	log.Info().Int("fetched", len(fetched)).Int("new", len(fresh)).Msg("sync run finished")
	metrics.NewEvents.Add(float64(len(fresh)))
	e.finishRun("success", len(fresh))
	return true
}

// fetch gathers the period's events. The panel call for today is the fast
// path; the month range runs when the fast path errors or on a forced
// resync, and a per-day scan covers for a range call that gives nothing.
// It succeeds if any strategy produced a response.
func (e *Engine) fetch(ctx context.Context, client *portal.Client, period store.Period, startedAt time.Time, forceResync bool, log zerolog.Logger) ([]event.Event, bool) {
	var collected []event.Event
	anySucceeded := false

	day, dayErr := client.FetchDayEvents(ctx, startedAt)
	if dayErr != nil {
		log.Warn().Err(dayErr).Msg("day fetch failed")
	} else {
		anySucceeded = true
		collected = append(collected, day...)
	}

	if dayErr == nil && !forceResync {
		return collected, anySucceeded
	}

	periodStart, periodEnd := period.Bounds(e.loc)
	ranged, err := client.FetchRangeEvents(ctx, periodStart, periodEnd.Add(-time.Second))
	if err != nil {
		log.Warn().Err(err).Msg("range fetch failed")
	} else {
		anySucceeded = true
		collected = append(collected, ranged...)
	}

	if err != nil || len(ranged) == 0 {
		days := period.Days(e.loc)
		log.Info().Int("days", len(days)).Msg("falling back to per-day scan")
		for i, d := range days {
			dayEvents, err := client.FetchDayEvents(ctx, d)
			if err != nil {
				// A bad day is skipped, the rest of the month still counts.
				log.Warn().Err(err).Str("day", d.Format("2006-01-02")).Msg("day scan call failed")
			} else {
				anySucceeded = true
				collected = append(collected, dayEvents...)
			}
			if i < len(days)-1 {
				if !e.sleep(ctx, e.cfg.Sync.DayScanDelay) {
					return collected, anySucceeded
				}
			}
		}
	}

	return collected, anySucceeded
}

// reconcile dedups the batch, merges it into the stored period and returns
// only the records the store had never seen. The whole union is persisted in
// one save; a failed save fails the run.
func (e *Engine) reconcile(period store.Period, fetched []event.Event, forceResync bool, log zerolog.Logger) ([]event.Event, bool) {
	deduped := event.Dedup(fetched)

	stored, err := e.store.Load(period)
	if err != nil {
		log.Error().Err(err).Msg("loading stored period failed")
		return nil, false
	}

	index := make(map[string]int, len(stored))
	for i, ev := range stored {
		if ev.ID != "" {
			index[ev.ID] = i
		}
	}

	union := make([]event.Event, len(stored))
	copy(union, stored)

	var fresh []event.Event
	for _, ev := range deduped {
		if ev.ID == "" {
			// Unkeyed records cannot be tracked across runs; persisting them
			// would duplicate them forever.
			log.Warn().Str("title", ev.Title).Msg("dropping fetched event without id")
			continue
		}

		i, known := index[ev.ID]
		if !known {
			index[ev.ID] = len(union)
			union = append(union, ev)
			fresh = append(fresh, ev)
			continue
		}

		if union[i].Manual {
			// Manual entries are operator-owned, a scrape never replaces them.
			continue
		}

		// Fetched data wins, but delivery state only lives in the store.
		ev.AnnounceChannel = union[i].AnnounceChannel
		ev.AnnounceMessage = union[i].AnnounceMessage
		ev.AnnouncedAt = union[i].AnnouncedAt
		ev.ClosedMarked = union[i].ClosedMarked
		union[i] = ev

		if forceResync {
			fresh = append(fresh, ev)
		}
	}

	if err := e.store.Save(period, union); err != nil {
		log.Error().Err(err).Msg("persisting merged period failed")
		return nil, false
	}

	return fresh, true
}

// enrich replaces each new record with its detail-call merge. Failures keep
// the base record; the run goes on.
func (e *Engine) enrich(ctx context.Context, client *portal.Client, period store.Period, fresh []event.Event, log zerolog.Logger) []event.Event {
	if len(fresh) == 0 {
		return nil
	}

	enriched := make([]event.Event, 0, len(fresh))
	for i, ev := range fresh {
		if ev.ID == "" || ev.Type == "" {
			log.Warn().Str("event_id", ev.ID).Str("title", ev.Title).Msg("skipping enrichment, id or type missing")
			metrics.EnrichFailures.Inc()
			enriched = append(enriched, ev)
			continue
		}

		detail, err := client.FetchEventDetail(ctx, ev.Type, ev.ID, ev.Module)
		if err != nil {
			log.Warn().Err(err).Str("event_id", ev.ID).Msg("detail call failed, keeping base record")
			metrics.EnrichFailures.Inc()
			enriched = append(enriched, ev)
		} else {
			enriched = append(enriched, event.MergeDetail(ev, detail))
		}

		if i < len(fresh)-1 {
			if !e.sleep(ctx, e.cfg.Sync.DetailDelay) {
				break
			}
		}
	}

	// The base records are already persisted, so a failed upsert only costs
	// the enrichment detail, not the events.
	if err := e.store.UpsertByID(period, enriched); err != nil {
		log.Error().Err(err).Msg("persisting enriched records failed")
	}
	return enriched
}

// announce posts each new record to the sink and writes the delivery receipt
// back to the store. Per-record failures are logged and skipped.
func (e *Engine) announce(ctx context.Context, period store.Period, fresh []event.Event, log zerolog.Logger) {
	if len(fresh) == 0 {
		return
	}

	var delivered []event.Event
	for _, ev := range fresh {
		ann, err := e.sink.AnnounceEvent(ctx, ev)
		if err != nil {
			log.Warn().Err(err).Str("event_id", ev.ID).Msg("announcement failed")
			metrics.AnnounceFailures.Inc()
			continue
		}
		if ann.SentAt.IsZero() {
			continue
		}
		ev.AnnounceChannel = ann.Channel
		ev.AnnounceMessage = ann.MessageID
		ev.AnnouncedAt = ann.SentAt.Unix()
		delivered = append(delivered, ev)
	}

	if len(delivered) == 0 {
		return
	}
	if err := e.store.UpsertByID(period, delivered); err != nil {
		log.Error().Err(err).Msg("persisting announce receipts failed")
	}
}

// CheckExpired flags announced events whose window has closed, posts the
// expiry notice and persists the mark. It makes no portal calls.
func (e *Engine) CheckExpired(ctx context.Context) bool {
	if !e.runMu.TryLock() {
		e.log.Warn().Msg("sync in progress, skipping expiry pass")
		return false
	}
	defer e.runMu.Unlock()

	now := e.now().In(e.loc)
	period := store.PeriodOf(now)
	log := e.log.With().Str("period", period.String()).Logger()

	events, err := e.store.Load(period)
	if err != nil {
		log.Error().Err(err).Msg("expiry pass could not load period")
		return false
	}

	var marked int
	for i, ev := range events {
		if ev.ClosedMarked || ev.AnnouncedAt == 0 || !ev.Expired(now) {
			continue
		}
		if err := e.sink.AnnounceExpiry(ctx, ev); err != nil {
			// Leave it unmarked so the next pass retries the notice.
			log.Warn().Err(err).Str("event_id", ev.ID).Msg("expiry notice failed")
			continue
		}
		events[i].ClosedMarked = true
		marked++
	}

	if marked == 0 {
		log.Debug().Msg("expiry pass found nothing to mark")
		return true
	}

	if err := e.store.Save(period, events); err != nil {
		log.Error().Err(err).Msg("persisting expiry marks failed")
		return false
	}

	metrics.ExpiredMarked.Add(float64(marked))
	log.Info().Int("marked", marked).Msg("expiry pass finished")
	return true
}

// sleep waits for d unless the context ends first.
func (e *Engine) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
