package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/nearby/internal/app"
	"github.com/kailas-cloud/nearby/internal/config"
	logpkg "github.com/kailas-cloud/nearby/internal/logger"
	"github.com/kailas-cloud/nearby/internal/version"
)

// globalOptions are shared by every subcommand.
type globalOptions struct {
	env        string
	configPath string
	dbPath     string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:          "nearbyctl",
		Short:        "Operate a nearby provider search index",
		Version:      version.Version,
		SilenceUsage: true,
	}
	cmd.SetVersionTemplate("nearbyctl version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&opts.env, "env", config.GetEnv(), "Config environment (config/<env>.yaml)")
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Explicit config file (overrides --env)")
	cmd.PersistentFlags().StringVar(&opts.dbPath, "db", "", "SQLite index path (forces the sqlite driver)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level override: debug, info, warn, error")

	cmd.AddCommand(
		newReplayCmd(opts),
		newSearchCmd(opts),
		newSchemaCmd(opts),
	)
	return cmd
}

// loadConfig resolves the config file and applies flag overrides.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	var cfg config.Config
	var err error
	switch {
	case o.configPath != "":
		cfg, err = config.LoadFile(o.configPath)
	case o.dbPath != "":
		cfg.ApplyDefaults()
	default:
		cfg, err = config.Load(o.env)
	}
	if err != nil {
		return nil, err
	}
	if o.dbPath != "" {
		cfg.Database.Driver = config.DriverSQLite
		cfg.Database.Path = o.dbPath
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	return &cfg, nil
}

// open loads config, builds a logger and opens the index.
func (o *globalOptions) open(ctx context.Context) (*app.App, *zap.Logger, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	// CLI output stays on the console encoder whatever the server env is.
	logEnv := "local"
	if o.env == "test" {
		logEnv = "test"
	}
	logger, err := logpkg.NewLogger(logEnv, orDefault(cfg.Logging.Level, "warn"))
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}
	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return a, logger, nil
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
