package batch_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"carbonscan/internal/batch"
	"carbonscan/internal/collation"
)

func keysFor(tickers ...string) []collation.Key {
	keys := make([]collation.Key, len(tickers))
	for i, ticker := range tickers {
		keys[i] = collation.Key{Ticker: ticker, DocType: "sustainability"}
	}
	return keys
}

func TestRunEmpty(t *testing.T) {
	exec := batch.NewExecutor(nil)
	summary, err := exec.Run(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Outcome != batch.OutcomeEmpty || summary.Total() != 0 {
		t.Fatalf("unexpected summary: %#v", summary)
	}
}

func TestRunAllSuccess(t *testing.T) {
	exec := batch.NewExecutor(nil)
	var order []string
	summary, err := exec.Run(context.Background(), keysFor("A", "B", "C"), func(ctx context.Context, key collation.Key) (collation.Outcome, error) {
		order = append(order, key.Ticker)
		return collation.OutcomeSucceeded, nil
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Outcome != batch.OutcomeAllSuccess || summary.Succeeded != 3 {
		t.Fatalf("unexpected summary: %#v", summary)
	}
	if !reflect.DeepEqual(order, []string{"A", "B", "C"}) {
		t.Fatalf("items must run in declared order, got %v", order)
	}
}

func TestRunPartialFailureIsolation(t *testing.T) {
	exec := batch.NewExecutor(nil)
	summary, err := exec.Run(context.Background(), keysFor("A", "B"), func(ctx context.Context, key collation.Key) (collation.Outcome, error) {
		if key.Ticker == "B" {
			return collation.OutcomeFailed, nil
		}
		return collation.OutcomeSucceeded, nil
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Outcome != batch.OutcomePartial {
		t.Fatalf("expected partial, got %s", summary.Outcome)
	}
	if summary.Succeeded != 1 || summary.Failed != 1 || summary.NotAttempted != 0 {
		t.Fatalf("unexpected counts: %#v", summary)
	}
}

func TestRunAllFailure(t *testing.T) {
	exec := batch.NewExecutor(nil)
	summary, err := exec.Run(context.Background(), keysFor("A", "B"), func(ctx context.Context, key collation.Key) (collation.Outcome, error) {
		return collation.OutcomeFailed, nil
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Outcome != batch.OutcomeAllFailure || summary.Failed != 2 {
		t.Fatalf("unexpected summary: %#v", summary)
	}
}

func TestRunCancellationBetweenItems(t *testing.T) {
	exec := batch.NewExecutor(nil)
	ctx, cancel := context.WithCancel(context.Background())

	attempted := 0
	summary, err := exec.Run(ctx, keysFor("A", "B", "C", "D", "E"), func(ctx context.Context, key collation.Key) (collation.Outcome, error) {
		attempted++
		if attempted == 2 {
			// Cancellation raised mid-batch: the in-flight item finishes,
			// the remaining three are never started.
			cancel()
		}
		return collation.OutcomeSucceeded, nil
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if attempted != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempted)
	}
	if summary.Outcome != batch.OutcomeCancelled {
		t.Fatalf("expected cancelled, got %s", summary.Outcome)
	}
	if summary.Succeeded != 2 || summary.NotAttempted != 3 {
		t.Fatalf("unexpected counts: %#v", summary)
	}
	if summary.Total() != 5 {
		t.Fatalf("count invariant broken: %#v", summary)
	}
}

func TestRunStopsOnContractViolation(t *testing.T) {
	exec := batch.NewExecutor(nil)
	defect := errors.New("succeed called on idle cell")
	summary, err := exec.Run(context.Background(), keysFor("A", "B", "C"), func(ctx context.Context, key collation.Key) (collation.Outcome, error) {
		if key.Ticker == "B" {
			return "", defect
		}
		return collation.OutcomeSucceeded, nil
	})
	if !errors.Is(err, defect) {
		t.Fatalf("expected defect to propagate, got %v", err)
	}
	if summary.Succeeded != 1 || summary.NotAttempted != 2 {
		t.Fatalf("unexpected counts after defect: %#v", summary)
	}
	if summary.Total() != 3 {
		t.Fatalf("count invariant broken: %#v", summary)
	}
}
