package collation_test

import (
	"reflect"
	"testing"

	"carbonscan/internal/collation"
)

func newTable(t *testing.T, tickers, docTypes []string) *collation.Table {
	t.Helper()
	table := collation.NewTable()
	table.Ensure(tickers, docTypes)
	return table
}

func TestEnsureCreatesIdleCellsLazily(t *testing.T) {
	table := newTable(t, []string{"ASX:BHP", "ASX:RIO"}, []string{"sustainability"})
	if table.Len() != 2 {
		t.Fatalf("expected 2 cells, got %d", table.Len())
	}
	for _, cell := range table.Cells() {
		if cell.Status != collation.StatusIdle {
			t.Fatalf("expected idle cell, got %s", cell.Status)
		}
	}
}

func TestEnsureGrowthPreservesExistingCells(t *testing.T) {
	table := newTable(t, []string{"ASX:BHP"}, []string{"sustainability"})
	cell := table.Cell(collation.Key{Ticker: "ASX:BHP", DocType: "sustainability"})
	if err := cell.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := cell.MarkReady(searchPayload("https://example.test/r.pdf")); err != nil {
		t.Fatalf("MarkReady failed: %v", err)
	}

	// Grow both axes; only the new pairs get fresh idle cells.
	table.Ensure([]string{"ASX:BHP", "ASX:RIO"}, []string{"sustainability", "annual"})
	if table.Len() != 4 {
		t.Fatalf("expected 4 cells, got %d", table.Len())
	}
	if got := table.Cell(collation.Key{Ticker: "ASX:BHP", DocType: "sustainability"}); got.Status != collation.StatusReady {
		t.Fatalf("existing cell must not be reset, got %s", got.Status)
	}
	if got := table.Cell(collation.Key{Ticker: "ASX:RIO", DocType: "annual"}); got.Status != collation.StatusIdle {
		t.Fatalf("new cell should be idle, got %s", got.Status)
	}
}

func TestCellsDeterministicOrder(t *testing.T) {
	table := newTable(t, []string{"B", "A"}, []string{"y", "x"})
	want := []collation.Key{
		{Ticker: "B", DocType: "y"},
		{Ticker: "B", DocType: "x"},
		{Ticker: "A", DocType: "y"},
		{Ticker: "A", DocType: "x"},
	}
	if got := table.Keys(); !reflect.DeepEqual(got, want) {
		t.Fatalf("iteration order changed: got %v want %v", got, want)
	}
}

func TestSelectAllState(t *testing.T) {
	table := newTable(t, []string{"A", "B"}, []string{"x"})
	sel := collation.NewSelection()

	if state := table.SelectAllState(sel); state.Checked || state.Indeterminate {
		t.Fatalf("empty selection should be unchecked, got %#v", state)
	}

	sel.Set(collation.Key{Ticker: "A", DocType: "x"}, true)
	if state := table.SelectAllState(sel); !state.Indeterminate || state.Checked {
		t.Fatalf("partial selection should be indeterminate, got %#v", state)
	}

	table.SelectAll(sel)
	if state := table.SelectAllState(sel); !state.Checked || state.Indeterminate {
		t.Fatalf("full selection should be checked, got %#v", state)
	}
}

func TestRowAndColumnState(t *testing.T) {
	table := newTable(t, []string{"A", "B"}, []string{"x", "y"})
	sel := collation.NewSelection()
	table.SelectRow("A", sel)

	if state := table.RowState("A", sel); !state.Checked {
		t.Fatalf("row A should be checked, got %#v", state)
	}
	if state := table.RowState("B", sel); state.Checked || state.Indeterminate {
		t.Fatalf("row B should be unchecked, got %#v", state)
	}
	if state := table.ColumnState("x", sel); !state.Indeterminate {
		t.Fatalf("column x should be indeterminate, got %#v", state)
	}
}

func TestViewsArePure(t *testing.T) {
	table := newTable(t, []string{"A", "B"}, []string{"x", "y"})
	sel := collation.NewSelection()
	sel.Set(collation.Key{Ticker: "A", DocType: "x"}, true)

	first := table.SelectAllState(sel)
	second := table.SelectAllState(sel)
	if first != second {
		t.Fatalf("summary diverged with no intervening mutation: %#v vs %#v", first, second)
	}

	e1 := table.Eligible(collation.OpStart, sel)
	e2 := table.Eligible(collation.OpStart, sel)
	if !reflect.DeepEqual(e1, e2) {
		t.Fatalf("eligibility diverged: %v vs %v", e1, e2)
	}
}

func TestEligibleFiltersByStatusAndArtifact(t *testing.T) {
	table := newTable(t, []string{"A", "B", "C"}, []string{"x"})
	sel := collation.NewSelection()
	table.SelectAll(sel)

	ready := table.Cell(collation.Key{Ticker: "A", DocType: "x"})
	if err := ready.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := ready.MarkReady(searchPayload("https://example.test/a.pdf")); err != nil {
		t.Fatalf("MarkReady failed: %v", err)
	}

	failed := table.Cell(collation.Key{Ticker: "B", DocType: "x"})
	if err := failed.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := failed.Fail("timeout"); err != nil {
		t.Fatalf("Fail failed: %v", err)
	}

	// OpStart acts on idle and failed cells only.
	startKeys := table.Eligible(collation.OpStart, sel)
	wantStart := []collation.Key{{Ticker: "B", DocType: "x"}, {Ticker: "C", DocType: "x"}}
	if !reflect.DeepEqual(startKeys, wantStart) {
		t.Fatalf("OpStart eligibility: got %v want %v", startKeys, wantStart)
	}

	// OpAdvance acts on ready cells carrying an artifact.
	advanceKeys := table.Eligible(collation.OpAdvance, sel)
	wantAdvance := []collation.Key{{Ticker: "A", DocType: "x"}}
	if !reflect.DeepEqual(advanceKeys, wantAdvance) {
		t.Fatalf("OpAdvance eligibility: got %v want %v", advanceKeys, wantAdvance)
	}

	// Unselected cells are never eligible.
	sel.Clear()
	if keys := table.Eligible(collation.OpStart, sel); len(keys) != 0 {
		t.Fatalf("expected no eligible cells with empty selection, got %v", keys)
	}
}

func TestResetDiscardsEverything(t *testing.T) {
	table := newTable(t, []string{"A"}, []string{"x"})
	table.Reset()
	if table.Len() != 0 || len(table.Tickers()) != 0 || len(table.DocTypes()) != 0 {
		t.Fatalf("expected empty table after reset")
	}
}
