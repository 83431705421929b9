package collation_test

import (
	"context"
	"errors"
	"testing"

	"carbonscan/internal/collation"
	"carbonscan/internal/services"
)

func TestEngineRunSuccessTwoStep(t *testing.T) {
	engine := collation.NewEngine(nil)
	cell := collation.NewCell("ASX:BHP", "sustainability")

	outcome, err := engine.Run(context.Background(), cell, false, func(ctx context.Context) (*collation.Payload, error) {
		return searchPayload("https://example.test/r.pdf"), nil
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if outcome != collation.OutcomeSucceeded {
		t.Fatalf("expected succeeded, got %s", outcome)
	}
	if cell.Status != collation.StatusReady {
		t.Fatalf("two-step success should land on ready_for_next, got %s", cell.Status)
	}
}

func TestEngineRunSuccessTerminal(t *testing.T) {
	engine := collation.NewEngine(nil)
	cell := collation.NewCell("ASX:BHP", "sustainability")
	if _, err := engine.Run(context.Background(), cell, false, func(ctx context.Context) (*collation.Payload, error) {
		return searchPayload("https://example.test/r.pdf"), nil
	}); err != nil {
		t.Fatalf("search run failed: %v", err)
	}

	outcome, err := engine.Run(context.Background(), cell, true, func(ctx context.Context) (*collation.Payload, error) {
		return collation.NewDownloadPayload(collation.DownloadResult{Path: "/tmp/r.pdf"}), nil
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if outcome != collation.OutcomeSucceeded || cell.Status != collation.StatusComplete {
		t.Fatalf("expected terminal complete, got %s / %s", outcome, cell.Status)
	}
}

func TestEngineRunCatchesCallError(t *testing.T) {
	engine := collation.NewEngine(nil)
	cell := collation.NewCell("ASX:BHP", "annual")

	callErr := services.Wrap(services.ErrTimeout, "collect", "search", "request timed out", nil)
	outcome, err := engine.Run(context.Background(), cell, false, func(ctx context.Context) (*collation.Payload, error) {
		return nil, callErr
	})
	if err != nil {
		t.Fatalf("call errors must not escape the cell boundary: %v", err)
	}
	if outcome != collation.OutcomeFailed {
		t.Fatalf("expected failed outcome, got %s", outcome)
	}
	if cell.Status != collation.StatusFailed {
		t.Fatalf("expected failed status, got %s", cell.Status)
	}
	if cell.ErrorMessage != callErr.Error() {
		t.Fatalf("expected verbatim error, got %q", cell.ErrorMessage)
	}
}

func TestEngineRunSkipsInProgressCell(t *testing.T) {
	engine := collation.NewEngine(nil)
	cell := collation.NewCell("ASX:BHP", "annual")
	if err := cell.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	called := false
	outcome, err := engine.Run(context.Background(), cell, false, func(ctx context.Context) (*collation.Payload, error) {
		called = true
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if outcome != collation.OutcomeSkipped {
		t.Fatalf("expected skipped, got %s", outcome)
	}
	if called {
		t.Fatal("external call must not be dispatched for an in-flight cell")
	}
}

func TestEngineRunRejectsLockedCell(t *testing.T) {
	engine := collation.NewEngine(nil)
	cell := collation.NewCell("ASX:BHP", "annual")
	if err := cell.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := cell.MarkReady(collation.NewAnalysisPayload(collation.AnalysisResult{})); err != nil {
		t.Fatalf("MarkReady failed: %v", err)
	}
	if err := cell.Accept(true); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}

	_, err := engine.Run(context.Background(), cell, false, func(ctx context.Context) (*collation.Payload, error) {
		t.Fatal("call must not run against a locked cell")
		return nil, nil
	})
	if !errors.Is(err, collation.ErrLocked) {
		t.Fatalf("expected locked error, got %v", err)
	}
}
