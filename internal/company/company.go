// Package company models the entities being researched and imports them from
// CSV company lists.
package company

import (
	"fmt"
	"strings"
)

// Company is one imported entity. The ticker is the unique key for the run;
// attributes are immutable once imported.
type Company struct {
	Ticker string `json:"ticker"`
	Name   string `json:"name"`
	Sector string `json:"sector,omitempty"`
}

// Validate checks required fields.
func (c Company) Validate() error {
	if strings.TrimSpace(c.Ticker) == "" {
		return fmt.Errorf("company %q: ticker is required", c.Name)
	}
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("company %s: name is required", c.Ticker)
	}
	return nil
}

// Tickers returns the ordered ticker list for a company slice.
func Tickers(companies []Company) []string {
	tickers := make([]string, len(companies))
	for i, c := range companies {
		tickers[i] = c.Ticker
	}
	return tickers
}
