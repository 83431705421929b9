package extract

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"carbonscan/internal/config"
	"carbonscan/internal/services"
)

const sampleText = `--- Page 1 ---
Chairman's letter. Another record year for shareholder value.

--- Page 2 ---
Our Scope 1 emissions were 12,400 tCO2e, down 8% year on year.

--- Page 3 ---
Directory of offices and subsidiaries.

--- Page 4 ---
Scope 2 (market-based): 5,100 tCO2e. Scope 3 disclosures follow.

`

func newTestFilter(t *testing.T) *Filter {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.SnippetsDir = t.TempDir()
	filter, err := NewFilter(&cfg, nil)
	if err != nil {
		t.Fatalf("new filter: %v", err)
	}
	return filter
}

func writeTextFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFilterTextKeepsMatchingPages(t *testing.T) {
	filter := newTestFilter(t)
	textPath := writeTextFile(t, t.TempDir(), "ACME_abc_report.text.txt", sampleText)

	result, err := filter.FilterText(textPath)
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if result.PageHits != 2 {
		t.Fatalf("kept %d pages, want 2", result.PageHits)
	}

	body, err := os.ReadFile(result.SnippetPath)
	if err != nil {
		t.Fatal(err)
	}
	snippet := string(body)
	if !strings.Contains(snippet, "Scope 1 emissions") || !strings.Contains(snippet, "market-based") {
		t.Fatalf("snippet missing emissions pages:\n%s", snippet)
	}
	if strings.Contains(snippet, "Chairman's letter") {
		t.Fatal("snippet kept a non-matching page")
	}
	if !strings.HasSuffix(result.SnippetPath, "ACME_abc_report.snippet.txt") {
		t.Fatalf("snippet path %s", result.SnippetPath)
	}
	if result.TokenCount <= 0 {
		t.Fatal("token count not computed")
	}
}

func TestFilterTextNoMatches(t *testing.T) {
	filter := newTestFilter(t)
	textPath := writeTextFile(t, t.TempDir(), "doc.text.txt",
		"--- Page 1 ---\nNothing about the climate here.\n\n")

	_, err := filter.FilterText(textPath)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("want ErrValidation, got %v", err)
	}
}

func TestFilterKeywordsAreFlexible(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.SnippetsDir = t.TempDir()
	cfg.Extract.Keywords = []string{"scope 1"}
	filter, err := NewFilter(&cfg, nil)
	if err != nil {
		t.Fatal(err)
	}

	textPath := writeTextFile(t, t.TempDir(), "doc.text.txt",
		"--- Page 1 ---\nTotal SCOPE  1 emissions rose.\n\n")
	result, err := filter.FilterText(textPath)
	if err != nil {
		t.Fatalf("case/whitespace variant not matched: %v", err)
	}
	if result.PageHits != 1 {
		t.Fatalf("hits = %d", result.PageHits)
	}
}

func TestFilterWithKeywordsOverride(t *testing.T) {
	filter := newTestFilter(t)
	override, err := filter.WithKeywords([]string{"renewable energy"})
	if err != nil {
		t.Fatal(err)
	}

	textPath := writeTextFile(t, t.TempDir(), "doc.text.txt",
		"--- Page 1 ---\nInvestment in renewable energy doubled.\n\n")
	if _, err := override.FilterText(textPath); err != nil {
		t.Fatalf("override keywords not applied: %v", err)
	}
	// The original keyword set must not match this page.
	if _, err := filter.FilterText(textPath); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("base filter matched unrelated page: %v", err)
	}
}

func TestFilterRejectsEmptyKeywordList(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.SnippetsDir = t.TempDir()
	cfg.Extract.Keywords = []string{"  "}
	if _, err := NewFilter(&cfg, nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("want ErrConfiguration, got %v", err)
	}
}

func TestSplitPages(t *testing.T) {
	pages := SplitPages(sampleText)
	if len(pages) != 4 {
		t.Fatalf("parsed %d pages, want 4", len(pages))
	}
	if pages[1].Number != 2 || !strings.Contains(pages[1].Text, "Scope 1") {
		t.Fatalf("page 2 parsed wrong: %+v", pages[1])
	}
}

func TestEstimateTokens(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"", 0},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 400), 100},
	}
	for _, tc := range cases {
		if got := EstimateTokens(tc.text); got != tc.want {
			t.Fatalf("EstimateTokens(%d chars) = %d, want %d", len(tc.text), got, tc.want)
		}
	}
}
