package collation

import (
	"context"
	"log/slog"
	"strings"

	"carbonscan/internal/logging"
)

// Call performs one external service request for a cell and returns the
// resulting stage payload or a typed error.
type Call func(ctx context.Context) (*Payload, error)

// Outcome reports what happened to a single cell during an engine run.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
)

// Engine applies the optimistic-dispatch transition around external calls.
type Engine struct {
	logger *slog.Logger
}

// NewEngine constructs an engine. A nil logger falls back to no-op.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{logger: logger}
}

// Run dispatches one external call for the cell: the cell enters in_progress
// the instant the operation is dispatched, the call is awaited, and exactly
// one of succeed or fail is applied. terminal selects whether success lands
// on complete (one remaining action) or ready_for_next (a further action or
// human judgment is required).
//
// Errors from the call are caught here: the message is stored verbatim on
// the cell, the status becomes failed, and the outcome is reported instead of
// the error. Only contract violations (illegal transitions) are returned as
// errors.
func (e *Engine) Run(ctx context.Context, cell *Cell, terminal bool, call Call) (Outcome, error) {
	if cell == nil {
		return OutcomeSkipped, ErrInvalidTransition
	}
	// Guard against double dispatch: a cell already in flight is skipped.
	if cell.Status == StatusInProgress {
		return OutcomeSkipped, nil
	}

	var err error
	if cell.Status == StatusReady {
		err = cell.Advance()
	} else {
		err = cell.Start()
	}
	if err != nil {
		return OutcomeSkipped, err
	}

	logger := logging.WithContext(ctx, e.logger)
	logger.Debug("cell dispatched",
		logging.String(logging.FieldEventType, "cell_start"),
		logging.String("cell", cell.Key().String()),
	)

	payload, callErr := call(ctx)
	if callErr != nil {
		message := strings.TrimSpace(callErr.Error())
		if failErr := cell.Fail(message); failErr != nil {
			return OutcomeFailed, failErr
		}
		logger.Warn("cell failed",
			logging.String(logging.FieldEventType, "cell_failure"),
			logging.String("cell", cell.Key().String()),
			logging.String("error_message", message),
		)
		return OutcomeFailed, nil
	}

	if terminal {
		err = cell.MarkComplete(payload)
	} else {
		err = cell.MarkReady(payload)
	}
	if err != nil {
		return OutcomeFailed, err
	}

	logger.Info("cell succeeded",
		logging.String(logging.FieldEventType, "cell_success"),
		logging.String("cell", cell.Key().String()),
		logging.String("next_status", string(cell.Status)),
	)
	return OutcomeSucceeded, nil
}
