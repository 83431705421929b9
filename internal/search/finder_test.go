package search

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"carbonscan/internal/company"
	"carbonscan/internal/config"
	"carbonscan/internal/doctypes"
	"carbonscan/internal/services"
)

func testDocType() doctypes.DocType {
	return doctypes.DocType{
		Name:        "sustainability",
		SearchTerms: []string{"sustainability report", "esg report"},
		Filetype:    "pdf",
		Year:        "2025",
	}
}

func testFinder(t *testing.T, handler http.HandlerFunc) *Finder {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	cfg := &config.Config{}
	cfg.Search.BaseURL = server.URL + "/html"
	cfg.Search.ResultLimit = 10
	return NewFinder(cfg, server.Client(), nil)
}

func TestBuildQuery(t *testing.T) {
	t.Parallel()

	comp := company.Company{Ticker: "ACME", Name: "Acme Corp"}
	got := BuildQuery(comp, testDocType())

	for _, want := range []string{
		`"Acme Corp"`,
		`"sustainability report" OR "esg report"`,
		"2025",
		"filetype:pdf",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("query %q missing %q", got, want)
		}
	}
}

func TestFindPicksBestScoringPDF(t *testing.T) {
	t.Parallel()

	page := `
	<div class="results">
	  <a class="result__a" href="https://example.com/ir/annual-2025.html">Annual Report 2025</a>
	  <a class="result__a" href="https://example.com/ir/misc.pdf">Quarterly update</a>
	  <a class="result__a" href="https://example.com/ir/sustainability-report-2025.pdf">Acme Sustainability Report 2025</a>
	</div>`

	finder := testFinder(t, func(w http.ResponseWriter, r *http.Request) {
		if q := r.URL.Query().Get("q"); !strings.Contains(q, "Acme") {
			t.Errorf("query not forwarded: %q", q)
		}
		_, _ = w.Write([]byte(page))
	})

	result, err := finder.Find(context.Background(), company.Company{Ticker: "ACME", Name: "Acme Corp"}, testDocType())
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if result.URL != "https://example.com/ir/sustainability-report-2025.pdf" {
		t.Fatalf("picked %s", result.URL)
	}
	if result.Filename != "sustainability-report-2025.pdf" {
		t.Fatalf("filename %s", result.Filename)
	}
	if result.Year != "2025" {
		t.Fatalf("year %s", result.Year)
	}
}

func TestFindUnwrapsRedirectLinks(t *testing.T) {
	t.Parallel()

	target := "https://example.com/reports/esg-2025.pdf"
	page := `<a class="result__a" href="/l/?uddg=` + url.QueryEscape(target) + `">Acme ESG Report 2025</a>`

	finder := testFinder(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(page))
	})

	result, err := finder.Find(context.Background(), company.Company{Ticker: "ACME", Name: "Acme Corp"}, testDocType())
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if result.URL != target {
		t.Fatalf("redirect not unwrapped: %s", result.URL)
	}
}

func TestFindNoMatchingResults(t *testing.T) {
	t.Parallel()

	finder := testFinder(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<a class="result__a" href="https://example.com/page.html">Homepage</a>`))
	})

	_, err := finder.Find(context.Background(), company.Company{Ticker: "ACME", Name: "Acme Corp"}, testDocType())
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestFindServerError(t *testing.T) {
	t.Parallel()

	finder := testFinder(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	})

	_, err := finder.Find(context.Background(), company.Company{Ticker: "ACME", Name: "Acme Corp"}, testDocType())
	if !errors.Is(err, services.ErrExternalService) {
		t.Fatalf("want ErrExternalService, got %v", err)
	}
}

func TestDeriveFilename(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		url      string
		filetype string
		want     string
	}{
		{"plain", "https://example.com/a/report.pdf", "pdf", "report.pdf"},
		{"query junk", "https://example.com/report.pdf?download=1", "pdf", "report.pdf"},
		{"missing extension", "https://example.com/download/1234", "pdf", "1234.pdf"},
		{"escaped", "https://example.com/Annual%20Report%202025.pdf", "pdf", "Annual_Report_2025.pdf"},
		{"trailing junk", "https://example.com/report.pdf.aspx", "pdf", "report.pdf"},
		{"empty path", "https://example.com/", "pdf", "document.pdf"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DeriveFilename(tc.url, tc.filetype); got != tc.want {
				t.Fatalf("DeriveFilename(%q) = %q, want %q", tc.url, got, tc.want)
			}
		})
	}
}

func TestInferYear(t *testing.T) {
	t.Parallel()

	cases := []struct {
		title string
		url   string
		want  string
	}{
		{"Acme Sustainability Report 2025", "", "2025"},
		{"", "https://example.com/reports/fy2024/esg.pdf", "2024"},
		{"Report", "https://example.com/id/123456789/doc.pdf", ""},
		{"Founded 1885, Report 2023", "", "2023"},
	}
	for _, tc := range cases {
		if got := InferYear(tc.title, tc.url); got != tc.want {
			t.Fatalf("InferYear(%q, %q) = %q, want %q", tc.title, tc.url, got, tc.want)
		}
	}
}
