package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"carbonscan/internal/company"
	"carbonscan/internal/doctypes"
	"carbonscan/internal/runstate"
)

func newNewCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "new",
		Short: "Discard the current run and start a fresh one",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(runCtx context.Context, sess *session) error {
				if err := sess.store.NewRun(runCtx); err != nil {
					return err
				}
				var runID string
				sess.store.View(func(state *runstate.RunState) {
					runID = state.RunID
				})
				fmt.Fprintf(cmd.OutOrStdout(), "Started run %s\n", runID)
				return nil
			})
		},
	}
}

func newImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <companies.csv>",
		Short: "Import the company list from a CSV file",
		Long: `Import the company list from a CSV file with ticker, name, and optional
sector columns. Adding companies to an existing run keeps all pipeline
progress; removing or renaming any resets it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			companies, err := company.ImportCSV(args[0])
			if err != nil {
				return err
			}
			return ctx.withSession(cmd, func(runCtx context.Context, sess *session) error {
				err := sess.store.Mutate(func(state *runstate.RunState) error {
					state.SetCompanies(companies)
					return nil
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d companies\n", len(companies))
				return nil
			})
		},
	}
}

func newTypesCommand(ctx *commandContext) *cobra.Command {
	typesCmd := &cobra.Command{
		Use:   "types",
		Short: "Show or replace the document-type configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(runCtx context.Context, sess *session) error {
				var defs []doctypes.DocType
				sess.store.View(func(state *runstate.RunState) {
					defs = state.DocTypes
				})
				if len(defs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No document types configured; run `carbonscan types default` or `carbonscan types load <file>`")
					return nil
				}
				printDocTypes(cmd, defs)
				return nil
			})
		},
	}

	typesCmd.AddCommand(&cobra.Command{
		Use:   "default",
		Short: "Configure the built-in document types",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(runCtx context.Context, sess *session) error {
				defs := doctypes.Default()
				if err := setDocTypes(sess, defs); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Configured %d document types\n", len(defs))
				return nil
			})
		},
	})

	typesCmd.AddCommand(&cobra.Command{
		Use:   "load <types.yaml>",
		Short: "Load document types from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defs, err := doctypes.LoadFile(args[0])
			if err != nil {
				return err
			}
			return ctx.withSession(cmd, func(runCtx context.Context, sess *session) error {
				if err := setDocTypes(sess, defs); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Configured %d document types\n", len(defs))
				return nil
			})
		},
	})

	return typesCmd
}

func setDocTypes(sess *session, defs []doctypes.DocType) error {
	return sess.store.Mutate(func(state *runstate.RunState) error {
		state.SetDocTypes(defs)
		return nil
	})
}

func printDocTypes(cmd *cobra.Command, defs []doctypes.DocType) {
	g := newGrid("Name", "Search Terms", "Filetype", "Year", "Preference").rightAlign(4)
	for _, def := range defs {
		g.row(def.Name, strings.Join(def.SearchTerms, ", "), def.Filetype, def.Year, fmt.Sprintf("%d", def.Preference))
	}
	fmt.Fprintln(cmd.OutOrStdout(), g.render())
}

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change per-run setting overrides",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(runCtx context.Context, sess *session) error {
				var settings runstate.Settings
				sess.store.View(func(state *runstate.RunState) {
					settings = state.Settings
				})
				out := cmd.OutOrStdout()
				model := settings.AnalysisModel
				if model == "" {
					model = sess.cfg.LLM.Model + " (config default)"
				}
				keywords := strings.Join(settings.Keywords, ", ")
				if keywords == "" {
					keywords = strings.Join(sess.cfg.Extract.Keywords, ", ") + " (config default)"
				}
				fmt.Fprintf(out, "Analysis model: %s\n", model)
				fmt.Fprintf(out, "Filter keywords: %s\n", keywords)
				return nil
			})
		},
	}

	var model string
	var keywords []string
	var reset bool
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Override the analysis model or filter keywords for this run",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !reset && model == "" && len(keywords) == 0 {
				return fmt.Errorf("nothing to set; use --model, --keywords, or --reset")
			}
			return ctx.withSession(cmd, func(runCtx context.Context, sess *session) error {
				return sess.store.Mutate(func(state *runstate.RunState) error {
					if reset {
						state.Settings = runstate.Settings{}
						return nil
					}
					if model != "" {
						state.Settings.AnalysisModel = strings.TrimSpace(model)
					}
					if len(keywords) > 0 {
						state.Settings.Keywords = keywords
					}
					return nil
				})
			})
		},
	}
	setCmd.Flags().StringVar(&model, "model", "", "Analysis model override")
	setCmd.Flags().StringSliceVar(&keywords, "keywords", nil, "Filter keyword override (comma separated)")
	setCmd.Flags().BoolVar(&reset, "reset", false, "Clear all overrides")
	settingsCmd.AddCommand(setCmd)

	return settingsCmd
}
