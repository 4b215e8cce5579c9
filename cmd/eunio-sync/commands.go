// ABOUTME: eunio-sync subcommands: restore, show, set, retry, convert, format and serve
// ABOUTME: Snapshots print as JSON on stdout; progress and logs go to stderr

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/sestako/eunio-app-sub019/internal/settings"
	"github.com/sestako/eunio-app-sub019/internal/syncerr"
	"github.com/sestako/eunio-app-sub019/internal/units"
)

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore settings for a user on this device",
	Long: `Pull the user's backup and reconcile it with any snapshot already on this
device. Without a backup, defaults are seeded from the device locale and
pushed. The newer snapshot wins; a tie goes to the backup.`,
	Args: cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
		if userFlag == "" {
			return errors.New("restore requires --user")
		}
		res, err := a.restorer.Restore(ctx, userFlag, nil)
		if err != nil {
			return err
		}
		status(color.FgGreen, "Restored %s: %s (%s)", userFlag, res.Decision, res.Settings.SyncStatus)
		return printJSON(res.Settings)
	}),
}

var showRemote bool

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored settings snapshot",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
		userID, err := a.userID(ctx)
		if err != nil {
			return err
		}
		if showRemote {
			agg, err := a.engine.Pull(ctx, userID)
			if err != nil {
				return err
			}
			if agg == nil {
				return fmt.Errorf("no backup for %s", userID)
			}
			return printJSON(agg)
		}
		agg, err := a.local.GetSettings(ctx, userID)
		if err != nil {
			return fmt.Errorf("reading local settings: %w", err)
		}
		return printJSON(agg)
	}),
}

var setCmd = &cobra.Command{
	Use:   "set section.field=value...",
	Short: "Edit preferences, save locally and push",
	Long: `Apply one or more assignments to the user's preferences. Field names follow
the JSON snapshot, for example:

  eunio-sync set display.theme=dark display.textScale=1.2
  eunio-sync set units.system=imperial
  eunio-sync set notifications.reminderHour=21

All assignments are applied together; if any is malformed or the result is
invalid, nothing is saved.`,
	Args: cobra.MinimumNArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		userID, err := a.userID(ctx)
		if err != nil {
			return err
		}
		if _, err := a.activate(ctx, userID); err != nil {
			return err
		}

		current, _ := a.engine.Current(userID)
		next := current.Preferences
		for _, assignment := range args {
			if err := applySetting(&next, assignment); err != nil {
				return err
			}
		}

		agg, err := a.engine.Edit(ctx, userID, func(p *settings.Preferences) { *p = next })
		if syncerr.IsValidation(err) || errors.Is(err, context.Canceled) {
			return err
		}
		reportPush(agg, a.engine.PushAttempts(userID), err)
		return printJSON(agg)
	}),
}

var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Push a snapshot whose last sync failed",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
		userID, err := a.userID(ctx)
		if err != nil {
			return err
		}
		if _, err := a.activate(ctx, userID); err != nil {
			return err
		}
		agg, err := a.engine.Retry(ctx, userID)
		reportPush(agg, a.engine.PushAttempts(userID), err)
		if err != nil {
			return err
		}
		return printJSON(agg)
	}),
}

var showCacheStats bool

var convertCmd = &cobra.Command{
	Use:   "convert FROM TO VALUE...",
	Short: "Convert measurements between units",
	Example: `  eunio-sync convert kg lb 70
  eunio-sync convert celsius fahrenheit 36.4 36.6 36.8`,
	Args: cobra.MinimumNArgs(3),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		from, to, kind, err := parseUnitPair(args[0], args[1])
		if err != nil {
			return err
		}
		values, err := parseValues(args[2:])
		if err != nil {
			return err
		}

		var converted []float64
		if len(values) == 1 {
			converted = []float64{a.cache.Convert(values[0], from, to, kind)}
		} else if converted, err = a.cache.ConvertBatch(ctx, values, from, to, kind); err != nil {
			return err
		}
		formatted, err := a.cache.FormatBatch(ctx, converted, to, kind)
		if err != nil {
			return err
		}
		for i, s := range formatted {
			fmt.Printf("%s\t%s\n", a.cache.Format(values[i], from, kind), s)
		}
		if showCacheStats {
			a.cache.LogStats()
		}
		return nil
	}),
}

var formatCmd = &cobra.Command{
	Use:   "format UNIT VALUE...",
	Short: "Format measurements for display",
	Args:  cobra.MinimumNArgs(2),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		unit, err := units.ParseUnit(args[0])
		if err != nil {
			return err
		}
		kind, _ := units.KindOf(unit)
		values, err := parseValues(args[1:])
		if err != nil {
			return err
		}
		formatted, err := a.cache.FormatBatch(ctx, values, unit, kind)
		if err != nil {
			return err
		}
		for _, s := range formatted {
			fmt.Println(s)
		}
		if showCacheStats {
			a.cache.LogStats()
		}
		return nil
	}),
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reconcile loop and metrics endpoint",
	Long: `Activate every user stored on this device and periodically re-push
snapshots that still need sync. Failed snapshots are only retried when
sync.auto_retry_failed is set. Prometheus metrics are served when
metrics.enabled is set.`,
	Args: cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
		printBanner()
		gray := color.New(color.FgHiBlack)
		gray.Fprintf(os.Stderr, "    version: %s\n\n", version)

		all, err := a.local.ListSettings(ctx)
		if err != nil {
			return fmt.Errorf("listing local settings: %w", err)
		}
		for _, agg := range all {
			a.engine.Activate(agg.UserID, agg)
		}

		startupLine("Database:  %s", a.cfg.Database.Path)
		startupLine("Backup:    %s", a.cfg.Remote.Path)
		startupLine("Users:     %d", len(all))
		startupLine("Reconcile: every %s", a.cfg.Sync.ReconcileInterval)
		if a.cfg.Metrics.Enabled {
			startupLine("Metrics:   http://%s%s", a.cfg.Metrics.Addr, a.cfg.Metrics.Path)
		}
		fmt.Fprintln(os.Stderr)

		if a.cfg.Metrics.Enabled {
			srv := newMetricsServer(a.cfg.Metrics.Addr, a.cfg.Metrics.Path)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					a.logger.Error("metrics server failed", "error", err)
				}
			}()
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					a.logger.Warn("metrics server shutdown", "error", err)
				}
			}()
		}

		// Reconcile once before the first tick.
		a.engine.Reconcile(ctx)

		err = a.engine.Run(ctx, a.cfg.Sync.ReconcileInterval)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}),
}

func init() {
	showCmd.Flags().BoolVar(&showRemote, "remote", false, "show the backup copy instead of the local one")
	convertCmd.Flags().BoolVar(&showCacheStats, "stats", false, "log conversion cache stats when done")
	formatCmd.Flags().BoolVar(&showCacheStats, "stats", false, "log conversion cache stats when done")

	rootCmd.AddCommand(restoreCmd, showCmd, setCmd, retryCmd, convertCmd, formatCmd, serveCmd)
}

func newMetricsServer(addr, path string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func parseUnitPair(fromArg, toArg string) (units.Unit, units.Unit, units.Kind, error) {
	from, err := units.ParseUnit(fromArg)
	if err != nil {
		return "", "", "", err
	}
	to, err := units.ParseUnit(toArg)
	if err != nil {
		return "", "", "", err
	}
	kind, _ := units.KindOf(from)
	if !units.Compatible(from, to, kind) {
		return "", "", "", fmt.Errorf("cannot convert %s to %s", from, to)
	}
	return from, to, kind, nil
}

func parseValues(args []string) ([]float64, error) {
	values := make([]float64, len(args))
	for i, arg := range args {
		v, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q", arg)
		}
		values[i] = v
	}
	return values, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func status(attr color.Attribute, format string, args ...any) {
	color.New(attr).Fprintf(os.Stderr, format+"\n", args...)
}

func startupLine(format string, args ...any) {
	color.New(color.FgGreen).Fprint(os.Stderr, "    ▶ ")
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

// reportPush prints the outcome of a push. A failed push is not fatal: the
// snapshot is kept locally and can be retried.
func reportPush(agg settings.Aggregate, attempts int, err error) {
	switch {
	case err == nil && attempts == 0:
		status(color.FgGreen, "Already synced")
	case err == nil:
		status(color.FgGreen, "Synced after %d attempt(s)", attempts)
	case agg.SyncStatus == settings.StatusFailed:
		status(color.FgYellow, "Saved locally, backup failed after %d attempt(s): %v", attempts, err)
	default:
		status(color.FgYellow, "Saved locally, sync %s: %v", agg.SyncStatus, err)
	}
}
