package download

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"carbonscan/internal/config"
	"carbonscan/internal/services"
)

func testDownloader(t *testing.T, handler http.HandlerFunc) (*Downloader, string) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Paths.DocumentsDir = dir
	return New(cfg, server.Client(), nil), server.URL
}

func pdfHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte(body))
	}
}

func TestFetchWritesDocument(t *testing.T) {
	dl, base := testDownloader(t, pdfHandler("%PDF-1.7 fake"))

	result, err := dl.Fetch(context.Background(), Request{
		Ticker:   "ACME",
		URL:      base + "/reports/sustainability-2025.pdf",
		Filename: "sustainability-2025.pdf",
		Filetype: "pdf",
	})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	body, err := os.ReadFile(result.Path)
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if string(body) != "%PDF-1.7 fake" {
		t.Fatalf("unexpected body %q", body)
	}
	name := filepath.Base(result.Path)
	if !strings.HasPrefix(name, "ACME_") || !strings.HasSuffix(name, "_sustainability-2025.pdf") {
		t.Fatalf("unexpected filename %s", name)
	}
}

func TestFetchReusesExistingFile(t *testing.T) {
	requests := 0
	dl, base := testDownloader(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		pdfHandler("%PDF content")(w, r)
	})

	req := Request{Ticker: "ACME", URL: base + "/report.pdf", Filename: "report.pdf", Filetype: "pdf"}
	first, err := dl.Fetch(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	second, err := dl.Fetch(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if requests != 1 {
		t.Fatalf("%d requests for the same url, want 1", requests)
	}
	if first.Path != second.Path {
		t.Fatalf("paths differ: %s vs %s", first.Path, second.Path)
	}
}

func TestFetchDistinctURLsDoNotCollide(t *testing.T) {
	dl, base := testDownloader(t, pdfHandler("%PDF"))

	a, err := dl.Fetch(context.Background(), Request{Ticker: "ACME", URL: base + "/a/report.pdf", Filename: "report.pdf", Filetype: "pdf"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := dl.Fetch(context.Background(), Request{Ticker: "ACME", URL: base + "/b/report.pdf", Filename: "report.pdf", Filetype: "pdf"})
	if err != nil {
		t.Fatal(err)
	}
	if a.Path == b.Path {
		t.Fatalf("different urls mapped to the same file %s", a.Path)
	}
}

func TestFetchRejectsWrongContentType(t *testing.T) {
	dl, base := testDownloader(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>please sign in</html>"))
	})

	_, err := dl.Fetch(context.Background(), Request{Ticker: "ACME", URL: base + "/report.pdf", Filename: "report.pdf", Filetype: "pdf"})
	if !errors.Is(err, services.ErrExternalService) {
		t.Fatalf("want ErrExternalService, got %v", err)
	}
}

func TestFetchRejectsNonHTTPURL(t *testing.T) {
	dl, _ := testDownloader(t, pdfHandler("x"))
	_, err := dl.Fetch(context.Background(), Request{Ticker: "ACME", URL: "file:///etc/passwd", Filetype: "pdf"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("want ErrValidation, got %v", err)
	}
}

func TestFetchServerFailure(t *testing.T) {
	dl, base := testDownloader(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})
	_, err := dl.Fetch(context.Background(), Request{Ticker: "ACME", URL: base + "/report.pdf", Filetype: "pdf"})
	if !errors.Is(err, services.ErrExternalService) {
		t.Fatalf("want ErrExternalService, got %v", err)
	}
}

func TestFetchEnforcesSizeLimit(t *testing.T) {
	server := httptest.NewServer(pdfHandler(strings.Repeat("x", 2048)))
	t.Cleanup(server.Close)
	cfg := &config.Config{}
	cfg.Paths.DocumentsDir = t.TempDir()
	cfg.Download.MaxBytes = 1024
	dl := New(cfg, server.Client(), nil)

	_, err := dl.Fetch(context.Background(), Request{Ticker: "ACME", URL: server.URL + "/big.pdf", Filetype: "pdf"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("want ErrValidation for oversize document, got %v", err)
	}
}
