package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/example/taskplanner/internal/config"
	"github.com/example/taskplanner/internal/logging"
)

type rootOptions struct {
	configFile string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "taskplanner",
		Short: "Household task planner API",
		Long: `taskplanner serves the task, calendar, reminder, knowledge and chat API
over a JSON-file, SQLite or PostgreSQL record store, optionally backed by a
Google Sheet for task assignments.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default ./taskplanner.yaml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	cmd.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newSeedCmd(opts),
		newCodesCmd(opts),
	)
	return cmd
}

// load reads configuration and builds the logger writing to the command's
// error stream.
func (o *rootOptions) load(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	v, err := config.NewViper(o.configFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	if o.logLevel != "" {
		v.Set("log.level", o.logLevel)
	}

	cfg, err := config.Load(v)
	if err != nil {
		return config.Config{}, nil, err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("configure logging: %w", err)
	}
	return cfg, logger, nil
}
