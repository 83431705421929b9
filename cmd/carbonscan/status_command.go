package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"carbonscan/internal/collation"
	"carbonscan/internal/runstate"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var stageFlag string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the run's step progress and stage matrices",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(runCtx context.Context, sess *session) error {
				var stages []runstate.StageID
				if stageFlag != "" {
					stage, err := parseStage(stageFlag)
					if err != nil {
						return err
					}
					stages = []runstate.StageID{stage}
				} else {
					stages = runstate.AllStages()
				}

				out := cmd.OutOrStdout()
				sess.store.View(func(state *runstate.RunState) {
					fmt.Fprintf(out, "Run %s\n", state.RunID)
					fmt.Fprintf(out, "Steps: %s\n\n", renderSteps(state))
					if len(state.Companies) == 0 {
						fmt.Fprintln(out, "No companies imported; run `carbonscan import <companies.csv>`")
						return
					}
					for _, stage := range stages {
						renderStage(out, state, stage)
					}
				})
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&stageFlag, "stage", "s", "", "Show only one stage matrix")
	return cmd
}

// renderSteps draws the wizard strip: valid steps get a check, the furthest
// step the user reached is bracketed.
func renderSteps(state *runstate.RunState) string {
	parts := make([]string, 0, len(state.Steps))
	for i, step := range state.Steps {
		name := step.Name
		if step.Valid {
			name = name + "✓"
		}
		if i == state.MaxStepReached {
			name = "[" + name + "]"
		}
		parts = append(parts, name)
	}
	return strings.Join(parts, " > ")
}

func renderStage(out io.Writer, state *runstate.RunState, stage runstate.StageID) {
	table := state.Table(stage)
	docTypes := table.DocTypes()
	if len(docTypes) == 0 {
		fmt.Fprintf(out, "%s: no document types configured\n\n", stage)
		return
	}

	matrix := newGrid(append([]string{"Company"}, docTypes...)...)
	for _, ticker := range table.Tickers() {
		row := []string{ticker}
		for _, docType := range docTypes {
			row = append(row, renderCell(table.Cell(collation.Key{Ticker: ticker, DocType: docType})))
		}
		matrix.row(row...)
	}
	fmt.Fprintf(out, "%s\n%s\n", strings.ToUpper(string(stage)), matrix.render())

	counts := table.CountByStatus()
	fmt.Fprintf(out, "%d idle, %d ready, %d complete, %d failed\n\n",
		counts[collation.StatusIdle],
		counts[collation.StatusReady],
		counts[collation.StatusComplete],
		counts[collation.StatusFailed],
	)
}

func renderCell(cell *collation.Cell) string {
	if cell == nil {
		return ""
	}
	label := statusLabel(cell.Status)
	if cell.Locked {
		label += " *"
	}
	return label
}

func statusLabel(status collation.Status) string {
	switch status {
	case collation.StatusIdle:
		return "·"
	case collation.StatusInProgress:
		return "running"
	case collation.StatusReady:
		return text.FgYellow.Sprint("ready")
	case collation.StatusComplete:
		return text.FgGreen.Sprint("done")
	case collation.StatusFailed:
		return text.FgRed.Sprint("failed")
	default:
		return string(status)
	}
}

func newAdvanceCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "advance <step>",
		Short: "Move the run to a wizard step; the preceding step must be complete",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.ToLower(strings.TrimSpace(args[0]))
			return ctx.withSession(cmd, func(runCtx context.Context, sess *session) error {
				err := sess.store.Mutate(func(state *runstate.RunState) error {
					idx := state.StepIndex(name)
					if idx < 0 {
						return fmt.Errorf("unknown step %q (expected one of %s)",
							args[0], strings.Join(runstate.StepNames(), ", "))
					}
					return state.AdvanceTo(idx)
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Advanced to %s\n", name)
				return nil
			})
		},
	}
}
