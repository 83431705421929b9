// Package batch drives one operation across many selected cells with
// per-item isolation and aggregate accounting.
package batch

import (
	"context"
	"log/slog"

	"carbonscan/internal/collation"
	"carbonscan/internal/logging"
)

// Outcome classifies the consolidated result of a batch run.
type Outcome string

const (
	OutcomeEmpty      Outcome = "empty"
	OutcomeAllSuccess Outcome = "all_success"
	OutcomeAllFailure Outcome = "all_failure"
	OutcomePartial    Outcome = "partial"
	OutcomeCancelled  Outcome = "cancelled"
)

// Summary aggregates per-item outcomes for a whole batch. The invariant
// Succeeded+Failed+NotAttempted == total eligible items holds at any
// cancellation point.
type Summary struct {
	Succeeded    int
	Failed       int
	NotAttempted int
	Outcome      Outcome
}

// Total returns the number of items the batch was asked to process.
func (s Summary) Total() int {
	return s.Succeeded + s.Failed + s.NotAttempted
}

// ItemFunc performs the operation for a single cell key and reports how the
// cell transitioned. Errors returned from it are contract violations, not
// external failures; they stop the batch.
type ItemFunc func(ctx context.Context, key collation.Key) (collation.Outcome, error)

// Executor applies an operation to an explicit list of cell keys, one item at
// a time in the order given, fully awaiting each before the next begins. One
// item's failure never aborts the batch; cancellation is checked between
// items, so an in-flight item finishes and the remainder count as not
// attempted.
type Executor struct {
	logger *slog.Logger
}

// NewExecutor constructs an executor. A nil logger falls back to no-op.
func NewExecutor(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Executor{logger: logger}
}

// Run executes fn once per key and returns the consolidated summary.
func (e *Executor) Run(ctx context.Context, keys []collation.Key, fn ItemFunc) (Summary, error) {
	summary := Summary{}
	if len(keys) == 0 {
		summary.Outcome = OutcomeEmpty
		return summary, nil
	}

	cancelled := false
	for i, key := range keys {
		if ctx.Err() != nil {
			cancelled = true
			summary.NotAttempted = len(keys) - i
			break
		}

		outcome, err := fn(ctx, key)
		if err != nil {
			// Contract violation: count the remainder (this item included)
			// as not attempted and surface the defect.
			summary.NotAttempted = len(keys) - i
			summary.Outcome = classify(summary, cancelled)
			return summary, err
		}
		switch outcome {
		case collation.OutcomeSucceeded:
			summary.Succeeded++
		case collation.OutcomeFailed:
			summary.Failed++
		default:
			summary.NotAttempted++
		}
	}

	summary.Outcome = classify(summary, cancelled)
	e.logger.Info("batch finished",
		logging.String(logging.FieldEventType, "batch_done"),
		logging.String("outcome", string(summary.Outcome)),
		logging.Int("succeeded", summary.Succeeded),
		logging.Int("failed", summary.Failed),
		logging.Int("not_attempted", summary.NotAttempted),
	)
	return summary, nil
}

func classify(summary Summary, cancelled bool) Outcome {
	switch {
	case cancelled:
		return OutcomeCancelled
	case summary.Succeeded > 0 && summary.Failed == 0 && summary.NotAttempted == 0:
		return OutcomeAllSuccess
	case summary.Failed > 0 && summary.Succeeded == 0 && summary.NotAttempted == 0:
		return OutcomeAllFailure
	case summary.Succeeded == 0 && summary.Failed == 0 && summary.NotAttempted == 0:
		return OutcomeEmpty
	default:
		return OutcomePartial
	}
}
