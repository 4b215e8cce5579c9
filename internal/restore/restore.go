// ABOUTME: Restores a user's settings on a new device from the remote backup
// ABOUTME: Seeds locale-aware defaults when no backup exists and resolves local/remote conflicts

package restore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sestako/eunio-app-sub019/internal/metrics"
	"github.com/sestako/eunio-app-sub019/internal/settings"
	"github.com/sestako/eunio-app-sub019/internal/store"
	"github.com/sestako/eunio-app-sub019/internal/syncengine"
	"github.com/sestako/eunio-app-sub019/internal/syncerr"
)

const tracerName = "github.com/sestako/eunio-app-sub019/internal/restore"

// Decision records how a restore picked the snapshot it activated.
type Decision string

const (
	SeededDefaults Decision = "seeded_defaults" // no backup, no local copy
	AdoptedRemote  Decision = "adopted_remote"  // backup only
	KeptLocal      Decision = "kept_local"      // local strictly newer, or no backup
	RemoteWonTie   Decision = "remote_won_tie"  // equal timestamps
	RemoteNewer    Decision = "remote_newer"    // backup strictly newer
)

// Result is the outcome of a restore.
type Result struct {
	Settings settings.Aggregate
	Decision Decision
}

// Coordinator runs the restore flow. Restores are serialized.
type Coordinator struct {
	engine *syncengine.Engine
	local  store.Store
	locale settings.LocaleSource
	clock  settings.Clock
	logger *slog.Logger
	tracer trace.Tracer

	mu sync.Mutex
}

// Option customises a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the coordinator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// WithTracer sets the tracer for restore spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Coordinator) { c.tracer = t }
}

// New creates a Coordinator.
func New(engine *syncengine.Engine, local store.Store, locale settings.LocaleSource, clock settings.Clock, opts ...Option) *Coordinator {
	c := &Coordinator{
		engine: engine,
		local:  local,
		locale: locale,
		clock:  clock,
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "restore")
	return c
}

// NeedsRestore reports whether this device has not yet been restored for
// userID. Any error reading device state counts as needing a restore.
func (c *Coordinator) NeedsRestore(ctx context.Context, userID string) bool {
	active, err := c.local.GetActiveUser(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			c.logger.Warn("reading active user", "error", err)
		}
		return true
	}
	return active != userID
}

// RestoreOnNewDevice restores userID's settings and activates them. local is
// the on-device snapshot if the caller already has one; when nil the local
// store is consulted.
func (c *Coordinator) RestoreOnNewDevice(ctx context.Context, userID string, local *settings.Aggregate) (settings.Aggregate, error) {
	res, err := c.Restore(ctx, userID, local)
	return res.Settings, err
}

// Restore is RestoreOnNewDevice with the decision exposed.
//
// A local snapshot belonging to another user is refused. A pull failure
// aborts without seeding defaults, except for a backup that fails validation,
// which is treated as absent. When the seed (or a newer
// local snapshot) cannot be pushed, the Failed snapshot is kept locally and
// the user is still activated so the app keeps working offline.
func (c *Coordinator) Restore(ctx context.Context, userID string, local *settings.Aggregate) (Result, error) {
	if strings.TrimSpace(userID) == "" {
		return Result{}, syncerr.Validation("userId", "must not be blank")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, span := c.tracer.Start(ctx, "settings.restore", trace.WithAttributes(
		attribute.String("user_id", userID),
	))
	defer span.End()

	logger := c.logger.With("user_id", userID)

	if local != nil && local.UserID != userID {
		err := syncerr.Security("restore", fmt.Errorf("local snapshot belongs to %q", local.UserID))
		logger.Error("restore refused", "error", err)
		span.RecordError(err)
		return Result{}, err
	}
	if local == nil {
		stored, err := c.local.GetSettings(ctx, userID)
		switch {
		case err == nil:
			local = &stored
		case !errors.Is(err, store.ErrNotFound):
			return Result{}, fmt.Errorf("reading local settings: %w", err)
		}
	}

	remoteAgg, err := c.engine.Pull(ctx, userID)
	if syncerr.IsValidation(err) {
		// an invalid backup can never be adopted; treat it as missing so the
		// local copy or fresh defaults overwrite it
		logger.Warn("ignoring invalid backup", "error", err)
		remoteAgg, err = nil, nil
	}
	if err != nil {
		logger.Error("restore aborted, backup unreadable", "error", err)
		span.RecordError(err)
		return Result{}, fmt.Errorf("restoring settings: %w", err)
	}

	var (
		chosen   settings.Aggregate
		decision Decision
	)
	switch {
	case remoteAgg == nil && local == nil:
		chosen = settings.CreateDefault(userID, c.locale.CurrentLocale(), c.clock.Now())
		decision = SeededDefaults
	case remoteAgg == nil:
		chosen, decision = *local, KeptLocal
	case local == nil:
		chosen, decision = *remoteAgg, AdoptedRemote
	default:
		chosen, decision = Resolve(*local, *remoteAgg)
		if local.Preferences != remoteAgg.Preferences || !local.LastModified.Equal(remoteAgg.LastModified) {
			conflict := syncerr.Conflict("restore", fmt.Sprintf(
				"local modified %s, backup modified %s",
				local.LastModified.Format(time.RFC3339Nano),
				remoteAgg.LastModified.Format(time.RFC3339Nano)))
			logger.Info("settings conflict resolved", "decision", decision, "conflict", conflict)
		}
	}

	if decision == SeededDefaults || (decision == KeptLocal && chosen.NeedsSync()) {
		if err := c.local.SaveSettings(ctx, chosen); err != nil {
			return Result{}, fmt.Errorf("saving settings locally: %w", err)
		}
		pushed, err := c.engine.Push(ctx, chosen)
		if err != nil {
			if ctx.Err() != nil {
				return Result{Settings: pushed, Decision: decision}, err
			}
			logger.Warn("backup write failed, keeping local snapshot", "decision", decision, "error", err)
		}
		chosen = pushed
	}

	if err := c.local.SaveSettings(ctx, chosen); err != nil {
		return Result{}, fmt.Errorf("saving settings locally: %w", err)
	}
	if err := c.local.SetActiveUser(ctx, userID); err != nil {
		return Result{}, fmt.Errorf("recording active user: %w", err)
	}
	c.engine.Activate(userID, chosen)

	metrics.RestoreDecisions.WithLabelValues(string(decision)).Inc()
	span.SetAttributes(attribute.String("decision", string(decision)))
	logger.Info("settings restored", "decision", decision, "status", chosen.SyncStatus)
	return Result{Settings: chosen, Decision: decision}, nil
}

// Resolve picks between a local snapshot and the backup by last-modified
// time. A strictly newer local copy wins; otherwise the backup wins, including
// on an exact tie. The returned backup is marked Synced.
func Resolve(local, remote settings.Aggregate) (settings.Aggregate, Decision) {
	switch {
	case local.LastModified.After(remote.LastModified):
		return local, KeptLocal
	case remote.LastModified.After(local.LastModified):
		return remote.MarkAsSynced(), RemoteNewer
	default:
		return remote.MarkAsSynced(), RemoteWonTie
	}
}
