// Command conductor tracks contracts moving through staged flows.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/cityops/conductor/internal/config"
	"github.com/cityops/conductor/internal/engine"
	"github.com/cityops/conductor/internal/lifecycle"
	"github.com/cityops/conductor/internal/notify"
	"github.com/cityops/conductor/internal/storage"
	"github.com/cityops/conductor/internal/storage/sqlite"
	"github.com/cityops/conductor/internal/telemetry"
	"github.com/cityops/conductor/internal/timeutil"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	cfgPath    string
	dbPath     string
	actor      string
	jsonOutput bool
	noNotify   bool

	cfg     *config.Config
	store   storage.Storage
	refZone *time.Location
)

var rootCmd = &cobra.Command{
	Use:           "conductor",
	Short:         "conductor - contract stage tracker",
	Long:          `Conductor tracks contracts through staged flows and keeps an append-only action log of everything that happens to them.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		if dbPath == "" {
			dbPath = cfg.DBPath
		}
		if actor == "" {
			actor = cfg.Actor
		}
		refZone, err = timeutil.LoadZone(cfg.Timezone)
		if err != nil {
			return err
		}

		if err := telemetry.Init(cmd.Context(), "conductor", Version); err != nil {
			return err
		}

		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return fmt.Errorf("creating database directory: %w", err)
		}
		s, err := sqlite.New(cmd.Context(), dbPath)
		if err != nil {
			return err
		}
		store = telemetry.WrapStorage(s)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			_ = store.Close()
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		telemetry.Shutdown(ctx)
	},
}

// newEngine builds the transition engine with the configured dispatcher.
func newEngine() *engine.Engine {
	var dispatcher notify.Dispatcher = notify.Nop{}
	if cfg.Notify && !noNotify {
		dispatcher = notify.NewWriter(nil)
	}
	return engine.New(store, engine.WithDispatcher(dispatcher))
}

func newLifecycle() *lifecycle.Manager {
	return lifecycle.New(store)
}

// parseWhen resolves a --at flag value in the reference timezone. Empty
// means now.
func parseWhen(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return timeutil.ParseLocal(value, refZone)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default ~/.conductor/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database file (default from config)")
	rootCmd.PersistentFlags().StringVar(&actor, "actor", "", "actor recorded on logged actions (default from config)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output machine-readable JSON")
	rootCmd.PersistentFlags().BoolVar(&noNotify, "no-notify", false, "suppress stage entry notifications")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
