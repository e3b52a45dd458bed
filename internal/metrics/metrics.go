// Package metrics exposes the pipeline counters served on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncRuns counts sync runs by result ("success", "failure", "skipped").
	SyncRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portalsync",
		Name:      "sync_runs_total",
		Help:      "Synchronization runs by result.",
	}, []string{"result"})

	// NewEvents counts events first seen by a sync run.
	NewEvents = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "portalsync",
		Name:      "new_events_total",
		Help:      "Events discovered and persisted for the first time.",
	})

	// EnrichFailures counts detail calls that failed or were skipped.
	EnrichFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "portalsync",
		Name:      "enrich_failures_total",
		Help:      "Enrichment detail calls that failed or were skipped.",
	})

	// AnnounceFailures counts notifications the sink rejected.
	AnnounceFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "portalsync",
		Name:      "announce_failures_total",
		Help:      "Event announcements the sink rejected.",
	})

	// ExpiredMarked counts events flagged by the expiry pass.
	ExpiredMarked = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "portalsync",
		Name:      "expired_events_total",
		Help:      "Events marked closed by the expiry pass.",
	})
)
