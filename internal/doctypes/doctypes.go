// Package doctypes loads the document-type definitions that form the work
// items of a run: each definition names a target document class with its
// search terms and filetype constraint.
package doctypes

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"carbonscan/internal/services"
)

// DocType is one configured document class, shared across all companies.
type DocType struct {
	Name string `yaml:"name" json:"name"`
	// SearchTerms are appended to the company name when querying.
	SearchTerms []string `yaml:"search_terms" json:"search_terms"`
	// Filetype constrains accepted results (pdf, xlsx, csv, html, ...).
	Filetype string `yaml:"filetype" json:"filetype,omitempty"`
	// Year restricts results to a reporting year when set (YYYY).
	Year string `yaml:"year" json:"year,omitempty"`
	// Preference orders document classes when several match; lower wins.
	Preference int `yaml:"preference" json:"preference,omitempty"`
}

var allowedFiletypes = map[string]struct{}{
	"pdf": {}, "csv": {}, "xlsx": {}, "txt": {}, "html": {}, "htm": {},
}

// Validate checks a single definition.
func (d DocType) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("document type name is required")
	}
	if len(d.SearchTerms) == 0 {
		return fmt.Errorf("document type %s: at least one search term is required", d.Name)
	}
	if d.Filetype != "" {
		if _, ok := allowedFiletypes[strings.ToLower(d.Filetype)]; !ok {
			return fmt.Errorf("document type %s: unsupported filetype %q", d.Name, d.Filetype)
		}
	}
	if d.Year != "" && !isYear(d.Year) {
		return fmt.Errorf("document type %s: year must be four digits (YYYY)", d.Name)
	}
	return nil
}

type definitionsFile struct {
	DocumentTypes []DocType `yaml:"document_types"`
}

// LoadFile reads document-type definitions from a YAML file.
func LoadFile(path string) ([]DocType, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "configure", "open document types", path, err)
	}
	return Parse(body)
}

// Parse decodes and validates YAML definitions.
func Parse(body []byte) ([]DocType, error) {
	var file definitionsFile
	if err := yaml.Unmarshal(body, &file); err != nil {
		return nil, services.Wrap(services.ErrValidation, "configure", "parse document types", "", err)
	}
	if len(file.DocumentTypes) == 0 {
		return nil, services.Wrap(services.ErrValidation, "configure", "parse document types", "no document types defined", nil)
	}
	seen := make(map[string]struct{}, len(file.DocumentTypes))
	for i := range file.DocumentTypes {
		d := &file.DocumentTypes[i]
		d.Name = strings.ToLower(strings.TrimSpace(d.Name))
		d.Filetype = strings.ToLower(strings.TrimSpace(d.Filetype))
		if err := d.Validate(); err != nil {
			return nil, services.Wrap(services.ErrValidation, "configure", "document type", "", err)
		}
		if _, dup := seen[d.Name]; dup {
			return nil, services.Wrap(services.ErrValidation, "configure", "document type", fmt.Sprintf("duplicate name %s", d.Name), nil)
		}
		seen[d.Name] = struct{}{}
	}
	return file.DocumentTypes, nil
}

// Default returns the built-in document classes in preference order:
// sustainability reports first, annual reports as the fallback.
func Default() []DocType {
	return []DocType{
		{
			Name:        "sustainability",
			SearchTerms: []string{"sustainability report", "scope 1", "scope 2"},
			Filetype:    "pdf",
			Preference:  1,
		},
		{
			Name:        "climate",
			SearchTerms: []string{"climate report", "climate action", "emissions"},
			Filetype:    "pdf",
			Preference:  2,
		},
		{
			Name:        "esg",
			SearchTerms: []string{"esg report", "environmental social governance"},
			Filetype:    "pdf",
			Preference:  3,
		},
		{
			Name:        "annual",
			SearchTerms: []string{"annual report", "greenhouse gas"},
			Filetype:    "pdf",
			Preference:  4,
		},
	}
}

// Names returns the ordered name list for a definition slice.
func Names(docTypes []DocType) []string {
	names := make([]string, len(docTypes))
	for i, d := range docTypes {
		names[i] = d.Name
	}
	return names
}

// ByName returns the definition with the given name.
func ByName(docTypes []DocType, name string) (DocType, bool) {
	for _, d := range docTypes {
		if d.Name == name {
			return d, true
		}
	}
	return DocType{}, false
}

func isYear(value string) bool {
	if len(value) != 4 {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
