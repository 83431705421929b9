package doctypes_test

import (
	"testing"

	"carbonscan/internal/doctypes"
)

func TestParseValidDefinitions(t *testing.T) {
	body := []byte(`
document_types:
  - name: Sustainability
    search_terms: ["sustainability report", "scope 1"]
    filetype: PDF
    year: "2025"
    preference: 1
  - name: annual
    search_terms: ["annual report"]
`)
	defs, err := doctypes.Parse(body)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("expected 2 definitions, got %d", len(defs))
	}
	if defs[0].Name != "sustainability" || defs[0].Filetype != "pdf" {
		t.Fatalf("expected normalized fields, got %#v", defs[0])
	}
}

func TestParseRejectsBadDefinitions(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"empty", `document_types: []`},
		{"no_terms", "document_types:\n  - name: annual\n    search_terms: []\n"},
		{"bad_filetype", "document_types:\n  - name: annual\n    search_terms: [\"annual report\"]\n    filetype: docx\n"},
		{"bad_year", "document_types:\n  - name: annual\n    search_terms: [\"annual report\"]\n    year: \"25\"\n"},
		{"duplicate", "document_types:\n  - name: annual\n    search_terms: [\"a\"]\n  - name: Annual\n    search_terms: [\"b\"]\n"},
	}
	for _, tc := range cases {
		if _, err := doctypes.Parse([]byte(tc.body)); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestDefaultPreferenceOrder(t *testing.T) {
	defs := doctypes.Default()
	if len(defs) == 0 {
		t.Fatal("expected built-in definitions")
	}
	for i := 1; i < len(defs); i++ {
		if defs[i].Preference < defs[i-1].Preference {
			t.Fatalf("default definitions out of preference order: %#v", defs)
		}
	}
	if defs[0].Name != "sustainability" {
		t.Fatalf("sustainability reports should be preferred, got %s", defs[0].Name)
	}
	for _, d := range defs {
		if err := d.Validate(); err != nil {
			t.Fatalf("default definition invalid: %v", err)
		}
	}
}

func TestByName(t *testing.T) {
	defs := doctypes.Default()
	if _, ok := doctypes.ByName(defs, "annual"); !ok {
		t.Fatal("expected to find annual definition")
	}
	if _, ok := doctypes.ByName(defs, "quarterly"); ok {
		t.Fatal("unexpected definition found")
	}
}
