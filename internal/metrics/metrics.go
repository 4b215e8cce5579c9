// ABOUTME: Prometheus collectors for sync, restore and conversion cache activity
// ABOUTME: Registered on the default registry; the CLI exposes them over HTTP

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PushAttempts counts individual remote writes by outcome.
	PushAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settings_push_attempts_total",
		Help: "Remote settings write attempts by result",
	}, []string{"result"})

	// PushOutcomes counts completed pushes (after retries) by final status.
	PushOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settings_push_outcomes_total",
		Help: "Settings pushes by final sync status",
	}, []string{"status"})

	// Retries counts backoff waits by error class.
	Retries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settings_retries_total",
		Help: "Retry waits scheduled by error class",
	}, []string{"class"})

	// Coalesced counts pushes answered by a newer snapshot's push.
	Coalesced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settings_push_coalesced_total",
		Help: "Pushes superseded by a newer local snapshot",
	})

	// Pulls counts remote reads by outcome.
	Pulls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settings_pulls_total",
		Help: "Remote settings reads by result",
	}, []string{"result"})

	// RestoreDecisions counts restore outcomes by decision.
	RestoreDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settings_restore_decisions_total",
		Help: "Restore runs by conflict-resolution decision",
	}, []string{"decision"})

	// CacheLookups counts conversion cache lookups by family and result.
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conversion_cache_lookups_total",
		Help: "Conversion cache lookups by family and hit/miss",
	}, []string{"family", "result"})

	// CacheEvictions counts LRU evictions by family.
	CacheEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conversion_cache_evictions_total",
		Help: "Entries evicted from the conversion cache",
	}, []string{"family"})

	// CacheEntries tracks the current entry count by family.
	CacheEntries = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "conversion_cache_entries",
		Help: "Entries currently held by the conversion cache",
	}, []string{"family"})
)
