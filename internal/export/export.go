package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"carbonscan/internal/collation"
	"carbonscan/internal/config"
	"carbonscan/internal/runstate"
	"carbonscan/internal/services"
)

// Row is one exported company with its merged artifacts and figures.
type Row struct {
	Ticker           string
	Name             string
	Sector           string
	DocType          string
	DocumentURL      string
	DocumentTitle    string
	Year             string
	DocumentPath     string
	SnippetPath      string
	Scope1           *int64
	Scope2           *int64
	Scope2Method     string
	Scope3           *int64
	Scope3Qualifiers string
	Qualifiers       string
	Confidence       float64
	Model            string
	AnalysedAt       string
	ReviewNotes      string
}

// BuildRows flattens the run into one row per company. When several document
// types reached an accepted analysis for the same company, the configured
// preference order decides which one is exported.
func BuildRows(state *runstate.RunState) []Row {
	preference := make(map[string]int, len(state.DocTypes))
	for _, dt := range state.DocTypes {
		preference[dt.Name] = dt.Preference
	}

	rows := make([]Row, 0, len(state.Companies))
	for _, comp := range state.Companies {
		row := Row{Ticker: comp.Ticker, Name: comp.Name, Sector: comp.Sector}

		analyzed := acceptedAnalyses(state, comp.Ticker)
		if len(analyzed) > 0 {
			sort.SliceStable(analyzed, func(i, j int) bool {
				return preference[analyzed[i].DocType] < preference[analyzed[j].DocType]
			})
			chosen := analyzed[0]
			row.DocType = chosen.DocType
			applyAnalysis(&row, chosen.Payload.Analysis)
			fillDocumentColumns(&row, state, collation.Key{Ticker: comp.Ticker, DocType: chosen.DocType})
		}
		rows = append(rows, row)
	}
	return rows
}

func acceptedAnalyses(state *runstate.RunState, ticker string) []*collation.Cell {
	var out []*collation.Cell
	for _, cell := range state.Table(runstate.StageAnalyze).Cells() {
		if cell.Ticker != ticker || cell.Status != collation.StatusComplete {
			continue
		}
		if cell.Payload == nil || cell.Payload.Analysis == nil {
			continue
		}
		out = append(out, cell)
	}
	return out
}

// applyAnalysis copies figures onto the row, letting reviewer overrides win.
func applyAnalysis(row *Row, analysis *collation.AnalysisResult) {
	row.Scope1 = analysis.Scope1
	if analysis.Scope1Override != nil {
		row.Scope1 = analysis.Scope1Override
	}
	if analysis.Scope2 != nil {
		v := analysis.Scope2.Value
		row.Scope2 = &v
		row.Scope2Method = analysis.Scope2.Method
	}
	if analysis.Scope2Override != nil {
		row.Scope2 = analysis.Scope2Override
	}
	if analysis.Scope3 != nil {
		v := analysis.Scope3.Value
		row.Scope3 = &v
		row.Scope3Qualifiers = analysis.Scope3.Qualifiers
	}
	if analysis.Scope3Override != nil {
		row.Scope3 = analysis.Scope3Override
	}
	row.Qualifiers = analysis.Qualifiers
	row.Confidence = analysis.Confidence
	row.Model = analysis.Method
	row.AnalysedAt = analysis.AnalysedAt
	row.ReviewNotes = analysis.ReviewNotes
}

func fillDocumentColumns(row *Row, state *runstate.RunState, key collation.Key) {
	if cell := state.Table(runstate.StageCollect).Cell(key); cell != nil && cell.Payload != nil {
		if search := cell.Payload.Search; search != nil {
			row.DocumentURL = search.URL
			row.DocumentTitle = search.Title
			row.Year = search.Year
		}
		if download := cell.Payload.Download; download != nil {
			row.DocumentPath = download.Path
		}
	}
	if cell := state.Table(runstate.StageFilter).Cell(key); cell != nil && cell.Payload != nil {
		if extract := cell.Payload.Extract; extract != nil {
			row.SnippetPath = extract.TextPath
		}
	}
}

var csvHeader = []string{
	"ticker", "name", "sector", "doc_type", "document_url", "document_title",
	"year", "document_path", "snippet_path",
	"scope_1_kgco2e", "scope_2_kgco2e", "scope_2_method",
	"scope_3_kgco2e", "scope_3_qualifiers", "qualifiers",
	"confidence", "model", "analysed_at", "review_notes",
}

// WriteCSV writes the rows with a header line.
func WriteCSV(w io.Writer, rows []Row) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.Ticker, row.Name, row.Sector, row.DocType, row.DocumentURL, row.DocumentTitle,
			row.Year, row.DocumentPath, row.SnippetPath,
			formatValue(row.Scope1), formatValue(row.Scope2), row.Scope2Method,
			formatValue(row.Scope3), row.Scope3Qualifiers, row.Qualifiers,
			formatConfidence(row.Confidence), row.Model, row.AnalysedAt, row.ReviewNotes,
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv row %s: %w", row.Ticker, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteFile exports the run into the export directory and returns the
// written path.
func WriteFile(cfg *config.Config, state *runstate.RunState) (string, error) {
	rows := BuildRows(state)
	if len(rows) == 0 {
		return "", services.Wrap(services.ErrValidation, "export", "build rows", "nothing to export", nil)
	}
	if err := os.MkdirAll(cfg.Paths.ExportDir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(cfg.Paths.ExportDir,
		fmt.Sprintf("emissions-%s.csv", time.Now().UTC().Format("2006-01-02")))
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}
	if err := WriteCSV(file, rows); err != nil {
		_ = file.Close()
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close export file: %w", err)
	}
	return path, nil
}

func formatValue(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func formatConfidence(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
