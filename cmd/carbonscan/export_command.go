package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"carbonscan/internal/export"
	"carbonscan/internal/runstate"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var toStdout bool
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export accepted emissions figures to CSV, one row per company",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(runCtx context.Context, sess *session) error {
				if toStdout {
					var rows []export.Row
					sess.store.View(func(state *runstate.RunState) {
						rows = export.BuildRows(state)
					})
					if len(rows) == 0 {
						return fmt.Errorf("nothing to export; no companies have accepted analyses")
					}
					return export.WriteCSV(cmd.OutOrStdout(), rows)
				}

				var path string
				err := func() error {
					var innerErr error
					sess.store.View(func(state *runstate.RunState) {
						path, innerErr = export.WriteFile(sess.cfg, state)
					})
					return innerErr
				}()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %s\n", path)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&toStdout, "stdout", false, "Write the CSV to standard output instead of the export directory")
	return cmd
}
