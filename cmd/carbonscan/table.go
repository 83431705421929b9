package main

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

func init() {
	// Status colors only make sense on a terminal; piped output stays plain.
	fd := os.Stdout.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		text.DisableColors()
	}
}

// grid accumulates rows for a rounded-border table. Cells beyond the
// header width are dropped, short rows pad with blanks.
type grid struct {
	headers []string
	rows    [][]string
	right   map[int]bool
}

func newGrid(headers ...string) *grid {
	return &grid{headers: headers, right: map[int]bool{}}
}

// rightAlign marks zero-based columns as numeric, aligned to the right.
func (g *grid) rightAlign(columns ...int) *grid {
	for _, c := range columns {
		g.right[c] = true
	}
	return g
}

func (g *grid) row(cells ...string) {
	padded := make([]string, len(g.headers))
	copy(padded, cells)
	g.rows = append(g.rows, padded)
}

func (g *grid) render() string {
	if len(g.headers) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(g.headers))
	for i, h := range g.headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, cells := range g.rows {
		row := make(table.Row, len(cells))
		for i, cell := range cells {
			row[i] = cell
		}
		tw.AppendRow(row)
	}

	configs := make([]table.ColumnConfig, 0, len(g.right))
	for column := range g.right {
		configs = append(configs, table.ColumnConfig{
			Number:      column + 1,
			Align:       text.AlignRight,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}
