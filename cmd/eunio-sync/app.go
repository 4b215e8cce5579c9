// ABOUTME: Builds the runtime graph for a command: stores, sync engine, restorer and cache
// ABOUTME: Also resolves which user a command acts on

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/sestako/eunio-app-sub019/internal/config"
	"github.com/sestako/eunio-app-sub019/internal/convcache"
	"github.com/sestako/eunio-app-sub019/internal/remote"
	"github.com/sestako/eunio-app-sub019/internal/restore"
	"github.com/sestako/eunio-app-sub019/internal/retry"
	"github.com/sestako/eunio-app-sub019/internal/settings"
	"github.com/sestako/eunio-app-sub019/internal/store"
	"github.com/sestako/eunio-app-sub019/internal/syncengine"
	"github.com/sestako/eunio-app-sub019/internal/tracing"
	"github.com/sestako/eunio-app-sub019/internal/units"
)

type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	logSink  io.Closer
	tracing  func(context.Context) error
	local    *store.SQLiteStore
	backup   *remote.SQLiteDocumentStore
	engine   *syncengine.Engine
	restorer *restore.Coordinator
	cache    *convcache.Cache
}

// openApp loads configuration and opens both databases.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger, sink := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		sink.Close()
		return nil, err
	}

	local, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		_ = shutdownTracing(ctx)
		sink.Close()
		return nil, fmt.Errorf("opening settings database: %w", err)
	}
	backup, err := remote.NewSQLiteDocumentStore(cfg.Remote.Path)
	if err != nil {
		local.Close()
		_ = shutdownTracing(ctx)
		sink.Close()
		return nil, fmt.Errorf("opening backup store: %w", err)
	}

	engine := syncengine.New(backup, local, retryPolicy(cfg.Sync),
		syncengine.WithLogger(logger),
		syncengine.WithAutoRetryFailed(cfg.Sync.AutoRetryFailed),
	)
	restorer := restore.New(engine, local, localeSource(cfg), settings.SystemClock,
		restore.WithLogger(logger),
	)
	cache := convcache.New(cacheConfig(cfg.Cache),
		convcache.WithLogger(logger),
		convcache.WithFormatter(formatterFor(localeSource(cfg))),
	)

	return &app{
		cfg:      cfg,
		logger:   logger,
		logSink:  sink,
		tracing:  shutdownTracing,
		local:    local,
		backup:   backup,
		engine:   engine,
		restorer: restorer,
		cache:    cache,
	}, nil
}

func (a *app) Close() {
	a.engine.Close()
	if err := a.backup.Close(); err != nil {
		a.logger.Warn("closing backup store", "error", err)
	}
	if err := a.local.Close(); err != nil {
		a.logger.Warn("closing settings database", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.tracing(ctx); err != nil {
		a.logger.Warn("flushing traces", "error", err)
	}
	a.logSink.Close()
}

func retryPolicy(cfg config.SyncConfig) retry.Policy {
	p := retry.DefaultPolicy()
	if cfg.MaxAttempts > 0 {
		p.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.Multiplier > 0 {
		p.Multiplier = cfg.Multiplier
	}
	if cfg.BaseDelay > 0 {
		p.BaseDelay = cfg.BaseDelay
	}
	if cfg.MaxDelay > 0 {
		p.MaxDelay = cfg.MaxDelay
	}
	return p
}

func cacheConfig(cfg config.CacheConfig) convcache.Config {
	policy := convcache.SkipWhenFull
	if cfg.InsertPolicy == "evict" {
		policy = convcache.EvictWhenFull
	}
	return convcache.Config{MaxSize: cfg.MaxSize, InsertPolicy: policy}
}

func localeSource(cfg *config.Config) settings.LocaleSource {
	if cfg.Locale != "" {
		return settings.StaticLocale(cfg.Locale)
	}
	return settings.EnvLocale{}
}

// formatterFor renders values with the device locale's digit grouping,
// falling back to English for an unknown locale.
func formatterFor(locale settings.LocaleSource) convcache.FormatFunc {
	tag, ok := settings.ParseLocale(locale.CurrentLocale())
	if !ok {
		tag = language.English
	}
	return units.NewFormatter(tag).Format
}

// userID returns --user, falling back to the device's active user.
func (a *app) userID(ctx context.Context) (string, error) {
	if userFlag != "" {
		return userFlag, nil
	}
	id, err := a.local.GetActiveUser(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return "", errors.New("no active user on this device; run restore --user <id> first")
	}
	if err != nil {
		return "", fmt.Errorf("reading active user: %w", err)
	}
	return id, nil
}

// activate loads the user's stored snapshot into the engine so Edit and
// Retry can act on it. Users never restored on this device are restored first.
func (a *app) activate(ctx context.Context, userID string) (settings.Aggregate, error) {
	if a.restorer.NeedsRestore(ctx, userID) {
		return a.restorer.RestoreOnNewDevice(ctx, userID, nil)
	}
	agg, err := a.local.GetSettings(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return a.restorer.RestoreOnNewDevice(ctx, userID, nil)
	}
	if err != nil {
		return settings.Aggregate{}, fmt.Errorf("reading local settings: %w", err)
	}
	a.engine.Activate(userID, agg)
	return agg, nil
}

// withApp wraps a command body with app setup and teardown.
func withApp(fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd.Context(), a, args)
	}
}
