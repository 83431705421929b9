package collation

// Selection is a transient mapping from cell key to checked state, scoped to
// the current session. It is never persisted; reloads start empty.
type Selection map[Key]bool

// NewSelection returns an empty selection.
func NewSelection() Selection {
	return make(Selection)
}

// Set marks a single cell.
func (s Selection) Set(key Key, checked bool) {
	if checked {
		s[key] = true
		return
	}
	delete(s, key)
}

// Toggle flips a single cell.
func (s Selection) Toggle(key Key) {
	s.Set(key, !s[key])
}

// Clear removes every marked cell.
func (s Selection) Clear() {
	for key := range s {
		delete(s, key)
	}
}

// TriState is the checked/indeterminate pair backing select-all checkboxes.
type TriState struct {
	Checked       bool
	Indeterminate bool
}

// SelectAllState reports the tri-state over every cell in the table:
// checked iff every cell is selected, indeterminate iff some but not all.
func (t *Table) SelectAllState(sel Selection) TriState {
	return triStateOver(t.Keys(), sel)
}

// RowState reports the tri-state restricted to one company's row.
func (t *Table) RowState(ticker string, sel Selection) TriState {
	keys := make([]Key, 0, len(t.docTypes))
	for _, docType := range t.docTypes {
		key := Key{Ticker: ticker, DocType: docType}
		if _, ok := t.cells[key]; ok {
			keys = append(keys, key)
		}
	}
	return triStateOver(keys, sel)
}

// ColumnState reports the tri-state restricted to one document-type column.
func (t *Table) ColumnState(docType string, sel Selection) TriState {
	keys := make([]Key, 0, len(t.tickers))
	for _, ticker := range t.tickers {
		key := Key{Ticker: ticker, DocType: docType}
		if _, ok := t.cells[key]; ok {
			keys = append(keys, key)
		}
	}
	return triStateOver(keys, sel)
}

// SelectAll marks every cell in the table.
func (t *Table) SelectAll(sel Selection) {
	for _, key := range t.Keys() {
		sel[key] = true
	}
}

// SelectRow marks every cell in a company's row.
func (t *Table) SelectRow(ticker string, sel Selection) {
	for _, docType := range t.docTypes {
		key := Key{Ticker: ticker, DocType: docType}
		if _, ok := t.cells[key]; ok {
			sel[key] = true
		}
	}
}

// SelectColumn marks every cell in a document-type column.
func (t *Table) SelectColumn(docType string, sel Selection) {
	for _, ticker := range t.tickers {
		key := Key{Ticker: ticker, DocType: docType}
		if _, ok := t.cells[key]; ok {
			sel[key] = true
		}
	}
}

func triStateOver(keys []Key, sel Selection) TriState {
	if len(keys) == 0 {
		return TriState{}
	}
	selected := 0
	for _, key := range keys {
		if sel[key] {
			selected++
		}
	}
	switch selected {
	case 0:
		return TriState{}
	case len(keys):
		return TriState{Checked: true}
	default:
		return TriState{Indeterminate: true}
	}
}
