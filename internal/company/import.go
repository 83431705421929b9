package company

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"carbonscan/internal/services"
)

var titleCaser = cases.Title(language.English)

// ImportCSV reads a company list from a CSV file. The first row is treated as
// a header when it names the expected columns; otherwise rows are read
// positionally as ticker, name, sector. Duplicate tickers are rejected.
func ImportCSV(path string) ([]Company, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "import", "open company list", path, err)
	}
	defer file.Close()
	return parseCSV(file)
}

func parseCSV(r io.Reader) ([]Company, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "import", "parse csv", "", err)
	}
	if len(records) == 0 {
		return nil, services.Wrap(services.ErrValidation, "import", "parse csv", "company list is empty", nil)
	}

	cols := columnIndexes(records[0])
	rows := records
	if cols.header {
		rows = records[1:]
	}

	companies := make([]Company, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for i, row := range rows {
		if len(row) == 0 || allBlank(row) {
			continue
		}
		c := Company{
			Ticker: strings.ToUpper(strings.TrimSpace(field(row, cols.ticker))),
			Name:   normalizeName(field(row, cols.name)),
			Sector: strings.TrimSpace(field(row, cols.sector)),
		}
		if err := c.Validate(); err != nil {
			return nil, services.Wrap(services.ErrValidation, "import", "row", fmt.Sprintf("line %d", i+1), err)
		}
		if _, dup := seen[c.Ticker]; dup {
			return nil, services.Wrap(services.ErrValidation, "import", "row", fmt.Sprintf("duplicate ticker %s", c.Ticker), nil)
		}
		seen[c.Ticker] = struct{}{}
		companies = append(companies, c)
	}
	if len(companies) == 0 {
		return nil, services.Wrap(services.ErrValidation, "import", "parse csv", "no companies found", nil)
	}
	return companies, nil
}

// normalizeName collapses whitespace and title-cases shouty all-caps names,
// leaving mixed-case names as provided.
func normalizeName(name string) string {
	cleaned := strings.Join(strings.Fields(name), " ")
	if cleaned == "" {
		return ""
	}
	if cleaned == strings.ToUpper(cleaned) {
		return titleCaser.String(strings.ToLower(cleaned))
	}
	return cleaned
}

type columns struct {
	header bool
	ticker int
	name   int
	sector int
}

func columnIndexes(headerRow []string) columns {
	cols := columns{ticker: 0, name: 1, sector: 2}
	found := false
	for i, cell := range headerRow {
		switch strings.ToLower(strings.TrimSpace(cell)) {
		case "ticker", "symbol", "code":
			cols.ticker = i
			found = true
		case "name", "company", "company_name":
			cols.name = i
			found = true
		case "sector", "industry", "classification":
			cols.sector = i
			found = true
		}
	}
	cols.header = found
	return cols
}

func field(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func allBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
