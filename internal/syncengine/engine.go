// ABOUTME: Offline-first settings sync: local commit first, then retried remote push
// ABOUTME: Serializes pushes per user and coalesces superseded snapshots

package syncengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/sestako/eunio-app-sub019/internal/metrics"
	"github.com/sestako/eunio-app-sub019/internal/remote"
	"github.com/sestako/eunio-app-sub019/internal/retry"
	"github.com/sestako/eunio-app-sub019/internal/settings"
	"github.com/sestako/eunio-app-sub019/internal/store"
	"github.com/sestako/eunio-app-sub019/internal/syncerr"
)

const tracerName = "github.com/sestako/eunio-app-sub019/internal/syncengine"

// ErrNotActivated is returned by Edit and Retry for a user whose settings
// have not been restored on this device yet.
var ErrNotActivated = errors.New("settings not activated for user")

// userState is the engine's per-user bookkeeping. All fields except sem are
// guarded by Engine.mu.
type userState struct {
	sem chan struct{} // one push in flight per user

	gen        uint64 // bumped by every enqueued push
	latest     settings.Aggregate
	pushedGen  uint64 // gen of the last completed push
	lastResult settings.Aggregate
	lastErr    error
	attempts   int

	current settings.Aggregate
	active  bool
}

// Engine pushes and pulls settings snapshots. Local writes always land first;
// remote failures never roll them back.
type Engine struct {
	remote remote.DocumentStore
	local  store.Store
	policy retry.Policy

	clock           settings.Clock
	logger          *slog.Logger
	tracer          trace.Tracer
	events          *StatusBroadcaster
	autoRetryFailed bool

	mu    sync.Mutex
	users map[string]*userState
}

// Option customises an Engine.
type Option func(*Engine)

// WithClock sets the time source for edits.
func WithClock(c settings.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithTracer sets the tracer used for push and pull spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithBroadcaster shares a status broadcaster with other components.
func WithBroadcaster(b *StatusBroadcaster) Option {
	return func(e *Engine) { e.events = b }
}

// WithAutoRetryFailed lets the reconcile loop re-push Failed snapshots.
// Without it only an explicit Retry moves Failed back to Pending.
func WithAutoRetryFailed(enabled bool) Option {
	return func(e *Engine) { e.autoRetryFailed = enabled }
}

// New creates an Engine.
func New(remoteStore remote.DocumentStore, local store.Store, policy retry.Policy, opts ...Option) *Engine {
	e := &Engine{
		remote: remoteStore,
		local:  local,
		policy: policy,
		clock:  settings.SystemClock,
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
		users:  make(map[string]*userState),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "syncengine")
	if e.events == nil {
		e.events = NewStatusBroadcaster(e.logger)
	}
	return e
}

func (e *Engine) state(userID string) *userState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked(userID)
}

func (e *Engine) stateLocked(userID string) *userState {
	st, ok := e.users[userID]
	if !ok {
		st = &userState{sem: make(chan struct{}, 1)}
		e.users[userID] = st
	}
	return st
}

// Push writes agg to the remote store, retrying transient failures.
//
// Pushes for one user run one at a time. A caller whose snapshot is
// superseded by a newer Push while it waits receives the newer push's result.
// An invalid snapshot fails immediately with a validation error and is never
// retried. If ctx is cancelled the returned snapshot stays Pending.
func (e *Engine) Push(ctx context.Context, agg settings.Aggregate) (settings.Aggregate, error) {
	if problems := agg.ValidationErrors(); len(problems) > 0 {
		metrics.PushOutcomes.WithLabelValues(string(settings.StatusFailed)).Inc()
		return agg.MarkAsSyncError(), syncerr.WithOp("push", syncerr.ValidationErrors("settings", problems))
	}

	st := e.state(agg.UserID)

	e.mu.Lock()
	myGen := st.enqueueLocked(agg)
	e.mu.Unlock()

	return e.pushQueued(ctx, st, agg, myGen)
}

// enqueueLocked registers agg as the newest snapshot to push and returns its
// generation. Caller holds Engine.mu.
func (st *userState) enqueueLocked(agg settings.Aggregate) uint64 {
	st.gen++
	st.latest = agg
	return st.gen
}

// pushQueued waits for the user's push slot and pushes the newest enqueued
// snapshot, unless a push that already covered myGen has completed.
func (e *Engine) pushQueued(ctx context.Context, st *userState, agg settings.Aggregate, myGen uint64) (settings.Aggregate, error) {
	select {
	case st.sem <- struct{}{}:
	case <-ctx.Done():
		return agg, ctx.Err()
	}
	defer func() { <-st.sem }()

	e.mu.Lock()
	if st.pushedGen >= myGen {
		result, err := st.lastResult, st.lastErr
		e.mu.Unlock()
		metrics.Coalesced.Inc()
		return result, err
	}
	snapshot, gen := st.latest, st.gen
	e.mu.Unlock()

	result, attempts, err := e.push(ctx, snapshot)
	cancelled := err != nil && ctx.Err() != nil

	e.mu.Lock()
	st.attempts = attempts
	if !cancelled {
		st.pushedGen = gen
		st.lastResult = result
		st.lastErr = err
	}
	isLatest := gen == st.gen
	if isLatest && st.active && !st.current.LastModified.After(result.LastModified) {
		st.current = result
	}
	e.mu.Unlock()

	if isLatest {
		// the local record is committed even when the caller has gone away
		if saveErr := e.local.SaveSettings(context.WithoutCancel(ctx), result); saveErr != nil {
			e.logger.Error("failed to save settings locally", "user_id", result.UserID, "error", saveErr)
		}
	}
	return result, err
}

// push runs the retried remote write for one snapshot.
func (e *Engine) push(ctx context.Context, snapshot settings.Aggregate) (settings.Aggregate, int, error) {
	opID := uuid.New().String()
	logger := e.logger.With("op_id", opID, "user_id", snapshot.UserID)

	ctx, span := e.tracer.Start(ctx, "settings.push", trace.WithAttributes(
		attribute.String("user_id", snapshot.UserID),
		attribute.String("op_id", opID),
	))
	defer span.End()

	doc, err := settings.ToDocument(snapshot.MarkAsSynced())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "encoding snapshot")
		return snapshot.MarkAsSyncError(), 0, syncerr.Unknown("push", fmt.Errorf("encoding snapshot: %w", err))
	}
	collection, id := settings.DocumentRef(snapshot.UserID)

	policy := e.policy
	userHook := policy.OnRetry
	policy = policy.WithOnRetry(func(a retry.Attempt) {
		if userHook != nil {
			userHook(a)
		}
		logger.Warn("push failed, retrying",
			"attempt", a.Index+1,
			"delay", a.NextDelay,
			"error", a.LastError)
		metrics.Retries.WithLabelValues(syncerr.KindOf(a.LastError).String()).Inc()
		e.events.Publish(StatusEvent{
			UserID:  snapshot.UserID,
			Status:  settings.StatusPending,
			OpID:    opID,
			Attempt: a.Index + 1,
			Err:     a.LastError,
			At:      time.Now(),
		})
	})

	attempts, err := policy.Do(ctx, func(ctx context.Context) error {
		err := e.remote.SetDocument(ctx, collection, id, doc)
		metrics.PushAttempts.WithLabelValues(resultLabel(err)).Inc()
		return err
	})
	span.SetAttributes(attribute.Int("attempts", attempts))

	var result settings.Aggregate
	switch {
	case err == nil:
		result = snapshot.MarkAsSynced()
		logger.Info("settings pushed", "attempts", attempts)
	case ctx.Err() != nil:
		// the caller gave up; a remote timeout with a live ctx is a failure
		result = snapshot.MarkAsPending()
		logger.Info("push cancelled", "attempts", attempts)
		span.SetStatus(otelcodes.Error, "cancelled")
		return result, attempts, err
	default:
		result = snapshot.MarkAsSyncError()
		err = syncerr.WithOp("push", err)
		logger.Error("push failed", "attempts", attempts, "kind", syncerr.KindOf(err), "error", err)
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "push failed")
	}

	metrics.PushOutcomes.WithLabelValues(string(result.SyncStatus)).Inc()
	e.events.Publish(StatusEvent{
		UserID:  snapshot.UserID,
		Status:  result.SyncStatus,
		OpID:    opID,
		Attempt: attempts,
		Err:     err,
		At:      time.Now(),
	})
	return result, attempts, err
}

// Pull fetches the user's backup. It returns nil, nil when no backup exists.
// A returned snapshot is marked Synced since it mirrors the remote copy. A
// backup that decodes but fails validation is a KindValidation error.
func (e *Engine) Pull(ctx context.Context, userID string) (*settings.Aggregate, error) {
	ctx, span := e.tracer.Start(ctx, "settings.pull", trace.WithAttributes(
		attribute.String("user_id", userID),
	))
	defer span.End()

	collection, id := settings.DocumentRef(userID)
	var doc *structpb.Struct
	_, err := e.policy.Do(ctx, func(ctx context.Context) error {
		d, err := e.remote.GetDocument(ctx, collection, id)
		if errors.Is(err, remote.ErrNotFound) {
			doc = nil
			return nil
		}
		doc = d
		return err
	})
	if err != nil {
		metrics.Pulls.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "pull failed")
		return nil, syncerr.WithOp("pull", err)
	}
	if doc == nil {
		metrics.Pulls.WithLabelValues("not_found").Inc()
		return nil, nil
	}

	agg, err := settings.FromDocument(doc)
	if err != nil {
		metrics.Pulls.WithLabelValues("error").Inc()
		return nil, &syncerr.Error{Kind: syncerr.KindValidation, Op: "pull", Err: err}
	}
	if agg.UserID != userID {
		metrics.Pulls.WithLabelValues("error").Inc()
		return nil, syncerr.Security("pull", fmt.Errorf("backup at %s belongs to %q", collection, agg.UserID))
	}
	if problems := agg.ValidationErrors(); len(problems) > 0 {
		metrics.Pulls.WithLabelValues("invalid").Inc()
		span.SetStatus(otelcodes.Error, "invalid backup")
		return nil, syncerr.WithOp("pull", syncerr.ValidationErrors("backup", problems))
	}

	metrics.Pulls.WithLabelValues("ok").Inc()
	synced := agg.MarkAsSynced()
	return &synced, nil
}

// Current returns the in-memory snapshot for an activated user.
func (e *Engine) Current(userID string) (settings.Aggregate, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.users[userID]
	if !ok || !st.active {
		return settings.Aggregate{}, false
	}
	return st.current, true
}

// Activate makes agg the user's current snapshot and unlocks Edit. It is
// called once restore has finished.
func (e *Engine) Activate(userID string, agg settings.Aggregate) {
	e.mu.Lock()
	st := e.stateLocked(userID)
	st.current = agg
	st.active = true
	e.mu.Unlock()

	e.logger.Info("settings activated", "user_id", userID, "status", agg.SyncStatus)
	e.events.Publish(StatusEvent{UserID: userID, Status: agg.SyncStatus, At: time.Now()})
}

// Deactivate drops the user's in-memory state, for sign-out.
func (e *Engine) Deactivate(userID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if st, ok := e.users[userID]; ok {
		st.active = false
		st.current = settings.Aggregate{}
	}
}

// Edit applies fn to the user's preferences, commits the result locally and
// pushes it. Edits are refused until the user is activated. fn runs while the
// engine's state lock is held and must not call back into the engine.
func (e *Engine) Edit(ctx context.Context, userID string, fn func(*settings.Preferences)) (settings.Aggregate, error) {
	e.mu.Lock()
	st, ok := e.users[userID]
	if !ok || !st.active {
		e.mu.Unlock()
		return settings.Aggregate{}, ErrNotActivated
	}

	prefs := st.current.Preferences
	fn(&prefs)
	next := st.current.WithPreferences(prefs, e.clock.Now())
	if problems := next.ValidationErrors(); len(problems) > 0 {
		current := st.current
		e.mu.Unlock()
		return current, syncerr.WithOp("edit", syncerr.ValidationErrors("settings", problems))
	}
	// queued together with current so an older push finishing now cannot
	// replace it
	st.current = next
	myGen := st.enqueueLocked(next)
	e.mu.Unlock()

	if err := e.local.SaveSettings(ctx, next); err != nil {
		return next, fmt.Errorf("saving settings locally: %w", err)
	}
	return e.pushQueued(ctx, st, next, myGen)
}

// Retry moves a Failed snapshot back to Pending and pushes it again.
// A snapshot that is already Synced is returned unchanged.
func (e *Engine) Retry(ctx context.Context, userID string) (settings.Aggregate, error) {
	return e.repush(ctx, userID, true)
}

// repush pushes the user's current snapshot unless it is Synced, or Failed
// with allowFailed unset.
func (e *Engine) repush(ctx context.Context, userID string, allowFailed bool) (settings.Aggregate, error) {
	e.mu.Lock()
	st, ok := e.users[userID]
	if !ok || !st.active {
		e.mu.Unlock()
		return settings.Aggregate{}, ErrNotActivated
	}
	current := st.current
	if current.SyncStatus == settings.StatusSynced ||
		(current.SyncStatus == settings.StatusFailed && !allowFailed) {
		e.mu.Unlock()
		return current, nil
	}
	if problems := current.ValidationErrors(); len(problems) > 0 {
		e.mu.Unlock()
		return current, syncerr.WithOp("push", syncerr.ValidationErrors("settings", problems))
	}
	pending := current.MarkAsPending()
	st.current = pending
	myGen := st.enqueueLocked(pending)
	e.mu.Unlock()

	if current.SyncStatus == settings.StatusFailed {
		e.logger.Info("retrying settings push", "user_id", userID, "previous_status", current.SyncStatus)
	}
	return e.pushQueued(ctx, st, pending, myGen)
}

// Subscribe streams status changes for userID until ctx is cancelled.
func (e *Engine) Subscribe(ctx context.Context, userID string) (<-chan StatusEvent, string) {
	return e.events.Subscribe(ctx, userID)
}

// PushAttempts returns how many remote writes the user's most recent push made.
func (e *Engine) PushAttempts(userID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if st, ok := e.users[userID]; ok {
		return st.attempts
	}
	return 0
}

// Reconcile makes one pass over activated users and re-pushes snapshots that
// are still Pending. Failed snapshots are re-pushed only with auto-retry
// enabled.
func (e *Engine) Reconcile(ctx context.Context) {
	e.mu.Lock()
	var due []string
	for userID, st := range e.users {
		if !st.active {
			continue
		}
		switch st.current.SyncStatus {
		case settings.StatusPending:
		case settings.StatusFailed:
			if !e.autoRetryFailed {
				continue
			}
		default:
			continue
		}
		due = append(due, userID)
	}
	e.mu.Unlock()

	sort.Strings(due)
	for _, userID := range due {
		if ctx.Err() != nil {
			return
		}
		// status is re-checked under the lock; an edit may have landed since
		_, err := e.repush(ctx, userID, e.autoRetryFailed)
		if err != nil && ctx.Err() == nil {
			e.logger.Warn("reconcile push failed", "user_id", userID, "error", err)
		}
	}
}

// Run reconciles every interval until ctx is cancelled.
func (e *Engine) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.logger.Info("reconcile loop started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("reconcile loop stopped")
			return ctx.Err()
		case <-ticker.C:
			e.Reconcile(ctx)
		}
	}
}

// Close releases subscriber channels.
func (e *Engine) Close() {
	e.events.Close()
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return syncerr.KindOf(err).String()
}
