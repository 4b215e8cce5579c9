// ABOUTME: Entry point for eunio-sync, the settings backup and conversion cache CLI
// ABOUTME: Wires config, logging and the cobra command tree

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// version is set with -ldflags at build time.
var version = "dev"

const banner = `
                  _
  ___ _   _ _ __ (_) ___        ___ _   _ _ __   ___
 / _ \ | | | '_ \| |/ _ \ _____/ __| | | | '_ \ / __|
|  __/ |_| | | | | | (_) |_____\__ \ |_| | | | | (__
 \___|\__,_|_| |_|_|\___/      |___/\__, |_| |_|\___|
                                    |___/
`

var (
	configPath string
	userFlag   string
)

var rootCmd = &cobra.Command{
	Use:     "eunio-sync",
	Short:   "Offline-first settings sync and unit conversion cache",
	Version: version,
	Long: `eunio-sync keeps a device's settings snapshot in a local SQLite database
and mirrors it to a backup document store.

Typical flow:
  eunio-sync restore --user alice      # first run on a new device
  eunio-sync set display.theme=dark    # edit, save locally, push
  eunio-sync retry                     # push a failed snapshot again
  eunio-sync serve                     # reconcile loop plus /metrics

The config file defaults to $XDG_CONFIG_HOME/eunio/sync.yaml and may be
overridden with --config or EUNIO_CONFIG. TOML files are accepted too.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: $EUNIO_CONFIG or ~/.config/eunio/sync.yaml)")
	rootCmd.PersistentFlags().StringVar(&userFlag, "user", "", "user ID (default: the device's active user)")
}

// getConfigPath returns the path to the config file.
// Priority: --config flag > EUNIO_CONFIG env var > XDG_CONFIG_HOME/eunio/sync.yaml > ~/.config/eunio/sync.yaml
// A missing default file is not an error; defaults are used instead.
func getConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv("EUNIO_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	path := filepath.Join(configDir, "eunio", "sync.yaml")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

func printBanner() {
	cyan := color.New(color.FgCyan, color.Bold)
	cyan.Fprint(os.Stderr, banner)
	fmt.Fprintln(os.Stderr)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: ")+err.Error())
		stop()
		os.Exit(1)
	}
}
