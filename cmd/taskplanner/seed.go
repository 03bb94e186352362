package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSeedCmd(opts *rootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load default access codes, team and templates",
		Long: `Register the default access codes when none exist and fill the team and
task template collections when they are empty. A YAML file may replace the
bundled access codes and supply team members and templates.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if file == "" {
				file = cfg.Seed.File
			}

			a, err := newApp(ctx, cfg, logger, false)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.seed(ctx, file)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "access codes: %d\nteam members: %d\ntask templates: %d\n",
				report.AccessCodes, report.Team, report.TaskTemplates)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "seed YAML file (default seed.file)")
	return cmd
}
