package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/taskplanner/internal/config"
	"github.com/example/taskplanner/internal/persistence/sqlstore"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long:  "Apply pending schema migrations to the configured SQLite or PostgreSQL database.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if cfg.Storage.Backend == config.BackendJSON {
				fmt.Fprintln(out, "json storage needs no migrations")
				return nil
			}

			store, closeFn, err := openStore(ctx, cfg.Storage, time.Now, logger)
			if err != nil {
				return err
			}
			defer closeFn()

			versions, err := store.(*sqlstore.Store).AppliedVersions(ctx)
			if err != nil {
				return err
			}
			for _, v := range versions {
				fmt.Fprintf(out, "applied %s\n", v)
			}
			fmt.Fprintf(out, "%s schema is up to date (%d migrations)\n", cfg.Storage.Backend, len(versions))
			return nil
		},
	}
}
