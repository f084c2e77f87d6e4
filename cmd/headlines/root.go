package main

import (
	"context"
	"fmt"
	"time"

	"github.com/ASHISH26940/headlines/internal/config"
	"github.com/ASHISH26940/headlines/internal/headline"
	"github.com/ASHISH26940/headlines/internal/store"
	"github.com/ASHISH26940/headlines/internal/telemetry"
	"github.com/hashicorp/go-hclog"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const defaultConfigPath = "config.toml"

// app carries what every subcommand needs once flags are parsed.
type app struct {
	configPath string
	cfg        *config.Config
	logger     hclog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "headlines",
		Short:         "Per-country headline board",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.Flags().Changed("config"))
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", defaultConfigPath, "Path to config file")

	root.AddCommand(
		newServeCmd(a),
		newMigrateCmd(a),
		newGetCmd(a),
		newSetCmd(a),
		newRecentCmd(a),
	)
	return root
}

// init loads configuration from the file, .env and the environment, in that
// order of increasing precedence. The config file is optional unless it was
// named explicitly.
func (a *app) init(explicitConfig bool) error {
	cfg := config.New()
	load := cfg.LoadOptional
	if explicitConfig {
		load = cfg.Load
	}
	if err := load(a.configPath); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	envErr := godotenv.Load()
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	a.cfg = cfg
	a.logger = telemetry.NewLogger("headlines", cfg.LogLevel)
	if envErr != nil {
		a.logger.Debug("no .env file found, using system environment variables")
	}
	return nil
}

// openService opens the configured backend and wraps it in a Service. The
// caller must close the returned store.
func (a *app) openService(ctx context.Context) (*headline.Service, headline.Store, error) {
	st, err := store.Open(ctx, a.cfg.Store, a.logger.Named("store"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open store: %w", err)
	}
	svc := headline.NewService(st, headline.Options{
		MaxLength:   a.cfg.MaxLength,
		RecentLimit: a.cfg.RecentLimit,
		Timeout:     a.cfg.StoreTimeout,
		Logger:      a.logger.Named("headline"),
		Now:         time.Now,
	})
	return svc, st, nil
}
