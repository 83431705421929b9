package collation

// Table holds every cell for one pipeline stage as an ordered matrix of
// companies (rows) by document types (columns). Cells are created lazily
// when a pair is first observed and are only reset wholesale via Reset;
// growing either axis never touches cells for unaffected pairs.
type Table struct {
	tickers  []string
	docTypes []string
	cells    map[Key]*Cell
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{cells: make(map[Key]*Cell)}
}

// Ensure registers the current company and document-type axes, creating idle
// cells for any pair not seen before. Existing cells are left untouched.
func (t *Table) Ensure(tickers, docTypes []string) {
	t.tickers = appendMissing(t.tickers, tickers)
	t.docTypes = appendMissing(t.docTypes, docTypes)
	for _, ticker := range t.tickers {
		for _, docType := range t.docTypes {
			key := Key{Ticker: ticker, DocType: docType}
			if _, ok := t.cells[key]; !ok {
				t.cells[key] = NewCell(ticker, docType)
			}
		}
	}
}

// Reset discards every cell and axis. Used when upstream data (the company
// list or the document-type configuration) is replaced.
func (t *Table) Reset() {
	t.tickers = nil
	t.docTypes = nil
	t.cells = make(map[Key]*Cell)
}

// Cell returns the cell for a key, or nil when the pair is unknown.
func (t *Table) Cell(key Key) *Cell {
	return t.cells[key]
}

// Tickers returns the ordered company axis.
func (t *Table) Tickers() []string {
	cp := make([]string, len(t.tickers))
	copy(cp, t.tickers)
	return cp
}

// DocTypes returns the ordered document-type axis.
func (t *Table) DocTypes() []string {
	cp := make([]string, len(t.docTypes))
	copy(cp, t.docTypes)
	return cp
}

// Len returns the number of cells in the table.
func (t *Table) Len() int {
	return len(t.cells)
}

// Cells returns every cell in deterministic order: company-major, then
// document type, both in configuration order.
func (t *Table) Cells() []*Cell {
	out := make([]*Cell, 0, len(t.cells))
	for _, ticker := range t.tickers {
		for _, docType := range t.docTypes {
			if cell, ok := t.cells[Key{Ticker: ticker, DocType: docType}]; ok {
				out = append(out, cell)
			}
		}
	}
	return out
}

// Keys returns every cell key in the same deterministic order as Cells.
func (t *Table) Keys() []Key {
	cells := t.Cells()
	keys := make([]Key, len(cells))
	for i, cell := range cells {
		keys[i] = cell.Key()
	}
	return keys
}

// CountByStatus returns the number of cells per status.
func (t *Table) CountByStatus() map[Status]int {
	counts := make(map[Status]int, len(allStatuses))
	for _, cell := range t.cells {
		counts[cell.Status]++
	}
	return counts
}

// RowComplete reports whether at least one cell in the company's row reached
// complete.
func (t *Table) RowComplete(ticker string) bool {
	for _, docType := range t.docTypes {
		if cell, ok := t.cells[Key{Ticker: ticker, DocType: docType}]; ok && cell.Status == StatusComplete {
			return true
		}
	}
	return false
}

// Eligible filters selected cells down to those whose current status legally
// accepts op. For OpAdvance the cell must also carry a retrievable artifact.
func (t *Table) Eligible(op Operation, sel Selection) []Key {
	var keys []Key
	for _, cell := range t.Cells() {
		if !sel[cell.Key()] {
			continue
		}
		if !op.Accepts(cell.Status) {
			continue
		}
		if op == OpAdvance && !cell.HasArtifact() {
			continue
		}
		keys = append(keys, cell.Key())
	}
	return keys
}

func appendMissing(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, v := range existing {
		seen[v] = struct{}{}
	}
	for _, v := range incoming {
		if _, ok := seen[v]; ok {
			continue
		}
		existing = append(existing, v)
		seen[v] = struct{}{}
	}
	return existing
}
