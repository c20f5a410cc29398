package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/symbolmap/internal/config"
	"github.com/rewired-gh/symbolmap/internal/geodata"
	"github.com/rewired-gh/symbolmap/internal/logger"
	"github.com/rewired-gh/symbolmap/internal/storage"
	"github.com/rewired-gh/symbolmap/internal/view"
)

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "symbolmap",
	Short: "Proportional symbol map over a GeoJSON time series",
	Long: "Loads a GeoJSON point dataset, sizes one circle marker per feature from a time-indexed attribute, " +
		"and steps through the periods over HTTP, Telegram or the command line.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		cfg = c

		logger.Init(cfg.Logging.Level, cfg.Logging.Format)
		if configPath != "" {
			logger.Info("Configuration loaded from %s", configPath)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "path to configuration file (empty for defaults and environment only)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Fatal("%v", err)
	}
}

// environment holds what every command needs to build a view.
type environment struct {
	store  *storage.Storage
	loader *geodata.Client
}

func newEnvironment() (*environment, error) {
	env := &environment{}

	var cache geodata.DatasetCache
	if cfg.Storage.DBPath != "" && cfg.Data.CacheFallback {
		store, err := storage.New(cfg.Storage.DBPath, cfg.Storage.MaxDatasets)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		env.store = store
		cache = store
	} else {
		logger.Debug("Dataset cache disabled")
	}

	env.loader = geodata.NewClient(geodata.ClientConfig{
		Timeout:        cfg.Data.Timeout,
		MaxRetries:     cfg.Data.MaxRetries,
		RetryDelayBase: cfg.Data.RetryDelayBase,
		IdentityField:  cfg.Data.IdentityField,
	}, cache)

	return env, nil
}

func (e *environment) loadView(ctx context.Context) (*view.View, error) {
	return view.Load(ctx, e.loader, view.OptionsFromConfig(cfg))
}

func (e *environment) Close() {
	if e.store == nil {
		return
	}
	if err := e.store.Close(); err != nil {
		logger.Error("Failed to close storage: %v", err)
	}
}
