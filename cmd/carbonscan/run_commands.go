package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"carbonscan/internal/batch"
	"carbonscan/internal/collation"
	"carbonscan/internal/runstate"
)

// batchFunc is the runner operation behind one batch command.
type batchFunc func(ctx context.Context, sess *session, sel collation.Selection) (batch.Summary, error)

func newBatchCommand(ctx *commandContext, use, short string, stage runstate.StageID, fn batchFunc) *cobra.Command {
	var tickers, docTypes []string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(runCtx context.Context, sess *session) error {
				sel, err := sess.runner.SelectKeys(stage, tickers, docTypes)
				if err != nil {
					return err
				}
				summary, err := fn(runCtx, sess, sel)
				if err != nil {
					return err
				}
				printSummary(cmd.OutOrStdout(), use, summary)
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&tickers, "tickers", "t", nil, "Restrict to these tickers (comma separated)")
	cmd.Flags().StringSliceVarP(&docTypes, "doc-types", "d", nil, "Restrict to these document types (comma separated)")
	return cmd
}

func newSearchCommand(ctx *commandContext) *cobra.Command {
	return newBatchCommand(ctx, "search", "Find candidate documents for the selected pairs",
		runstate.StageCollect,
		func(runCtx context.Context, sess *session, sel collation.Selection) (batch.Summary, error) {
			return sess.runner.Search(runCtx, sel)
		})
}

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	return newBatchCommand(ctx, "download", "Download the found documents for the selected pairs",
		runstate.StageCollect,
		func(runCtx context.Context, sess *session, sel collation.Selection) (batch.Summary, error) {
			return sess.runner.Download(runCtx, sel)
		})
}

func newExtractCommand(ctx *commandContext) *cobra.Command {
	return newBatchCommand(ctx, "extract", "Extract text from the downloaded documents",
		runstate.StageExtract,
		func(runCtx context.Context, sess *session, sel collation.Selection) (batch.Summary, error) {
			return sess.runner.Extract(runCtx, sel)
		})
}

func newFilterCommand(ctx *commandContext) *cobra.Command {
	return newBatchCommand(ctx, "filter", "Reduce extracted text to emissions snippets",
		runstate.StageFilter,
		func(runCtx context.Context, sess *session, sel collation.Selection) (batch.Summary, error) {
			return sess.runner.Filter(runCtx, sel)
		})
}

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	return newBatchCommand(ctx, "analyze", "Run model analysis over the filtered snippets",
		runstate.StageAnalyze,
		func(runCtx context.Context, sess *session, sel collation.Selection) (batch.Summary, error) {
			return sess.runner.Analyze(runCtx, sel)
		})
}

func printSummary(out io.Writer, verb string, summary batch.Summary) {
	switch summary.Outcome {
	case batch.OutcomeEmpty:
		fmt.Fprintf(out, "No cells eligible for %s\n", verb)
	case batch.OutcomeCancelled:
		fmt.Fprintf(out, "%s cancelled: %d succeeded, %d failed, %d not attempted\n",
			verb, summary.Succeeded, summary.Failed, summary.NotAttempted)
	default:
		fmt.Fprintf(out, "%s finished: %d succeeded, %d failed\n",
			verb, summary.Succeeded, summary.Failed)
	}
}
