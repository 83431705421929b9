package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"carbonscan/internal/collation"
	"carbonscan/internal/pipeline"
	"carbonscan/internal/runstate"
)

func parseStage(value string) (runstate.StageID, error) {
	stage := runstate.StageID(strings.ToLower(strings.TrimSpace(value)))
	for _, id := range runstate.AllStages() {
		if id == stage {
			return stage, nil
		}
	}
	names := make([]string, 0, len(runstate.AllStages()))
	for _, id := range runstate.AllStages() {
		names = append(names, string(id))
	}
	return "", fmt.Errorf("unknown stage %q (expected one of %s)", value, strings.Join(names, ", "))
}

func cellKey(ticker, docType string) collation.Key {
	return collation.Key{
		Ticker:  strings.ToUpper(strings.TrimSpace(ticker)),
		DocType: strings.ToLower(strings.TrimSpace(docType)),
	}
}

func newAcceptCommand(ctx *commandContext) *cobra.Command {
	var all bool
	var tickers, docTypes []string
	cmd := &cobra.Command{
		Use:   "accept <stage> [<ticker> <doc-type>]",
		Short: "Confirm ready cells as complete",
		Args:  cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			stage, err := parseStage(args[0])
			if err != nil {
				return err
			}
			if !all && len(args) != 3 {
				return fmt.Errorf("provide a ticker and document type, or --all")
			}
			return ctx.withSession(cmd, func(runCtx context.Context, sess *session) error {
				if all {
					sel, err := sess.runner.SelectKeys(stage, tickers, docTypes)
					if err != nil {
						return err
					}
					accepted, err := sess.runner.AcceptAll(stage, sel)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Accepted %d cells\n", accepted)
					return nil
				}
				key := cellKey(args[1], args[2])
				if err := sess.runner.Accept(stage, key); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Accepted %s\n", key)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Accept every ready cell in the selection")
	cmd.Flags().StringSliceVarP(&tickers, "tickers", "t", nil, "Restrict --all to these tickers")
	cmd.Flags().StringSliceVarP(&docTypes, "doc-types", "d", nil, "Restrict --all to these document types")
	return cmd
}

func newRejectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reject <stage> <ticker> <doc-type>",
		Short: "Discard a ready cell's result, returning the pair to idle",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			stage, err := parseStage(args[0])
			if err != nil {
				return err
			}
			return ctx.withSession(cmd, func(runCtx context.Context, sess *session) error {
				key := cellKey(args[1], args[2])
				if err := sess.runner.Reject(stage, key); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rejected %s\n", key)
				return nil
			})
		},
	}
}

func newVerifyCommand(ctx *commandContext) *cobra.Command {
	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Review analysis results before export",
	}
	verifyCmd.AddCommand(newVerifyAcceptCommand(ctx))
	verifyCmd.AddCommand(newVerifyReopenCommand(ctx))
	return verifyCmd
}

func newVerifyAcceptCommand(ctx *commandContext) *cobra.Command {
	var scope1, scope2, scope3 int64
	var notes string
	cmd := &cobra.Command{
		Use:   "accept <ticker> <doc-type>",
		Short: "Accept an analysis, optionally correcting figures; accepted figures lock",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var overrides pipeline.Overrides
			if cmd.Flags().Changed("scope1") {
				overrides.Scope1 = &scope1
			}
			if cmd.Flags().Changed("scope2") {
				overrides.Scope2 = &scope2
			}
			if cmd.Flags().Changed("scope3") {
				overrides.Scope3 = &scope3
			}
			overrides.Notes = notes
			return ctx.withSession(cmd, func(runCtx context.Context, sess *session) error {
				key := cellKey(args[0], args[1])
				if err := sess.runner.AcceptAnalysis(key, overrides); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Accepted analysis for %s\n", key)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&scope1, "scope1", 0, "Corrected scope 1 figure in kgCO2e")
	cmd.Flags().Int64Var(&scope2, "scope2", 0, "Corrected scope 2 figure in kgCO2e")
	cmd.Flags().Int64Var(&scope3, "scope3", 0, "Corrected scope 3 figure in kgCO2e")
	cmd.Flags().StringVar(&notes, "notes", "", "Review notes recorded with the acceptance")
	return cmd
}

func newVerifyReopenCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reopen <ticker> <doc-type>",
		Short: "Unlock an accepted analysis for another review pass",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(runCtx context.Context, sess *session) error {
				key := cellKey(args[0], args[1])
				if err := sess.runner.Reopen(key); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reopened %s\n", key)
				return nil
			})
		},
	}
}
