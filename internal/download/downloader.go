package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"carbonscan/internal/config"
	"carbonscan/internal/logging"
	"carbonscan/internal/services"
)

const (
	defaultTimeout  = 60 * time.Second
	defaultMaxBytes = 100 << 20
)

// Downloader fetches documents over HTTP into a target directory.
type Downloader struct {
	client   *http.Client
	dir      string
	maxBytes int64
	logger   *slog.Logger
}

// New builds a Downloader from configuration. A nil client gets a default
// with the configured request timeout.
func New(cfg *config.Config, client *http.Client, logger *slog.Logger) *Downloader {
	timeout := defaultTimeout
	if cfg.Download.RequestTimeout > 0 {
		timeout = time.Duration(cfg.Download.RequestTimeout) * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	maxBytes := cfg.Download.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Downloader{
		client:   client,
		dir:      cfg.Paths.DocumentsDir,
		maxBytes: maxBytes,
		logger:   logging.NewComponentLogger(logger, "download"),
	}
}

// Request identifies one document to retrieve.
type Request struct {
	Ticker   string
	URL      string
	Filename string
	// Filetype constrains the accepted content type when set.
	Filetype string
}

// Result reports where the document landed.
type Result struct {
	Path  string
	Bytes int64
}

// Fetch downloads the document and returns its path on disk. An existing
// file for the same URL is reused without a network round trip.
func (d *Downloader) Fetch(ctx context.Context, req Request) (Result, error) {
	if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
		return Result{}, services.Wrap(services.ErrValidation, "collect", "download", "url must be http(s): "+req.URL, nil)
	}
	outPath := filepath.Join(d.dir, targetFilename(req))
	if info, err := os.Stat(outPath); err == nil && info.Size() > 0 {
		d.logger.Debug("reusing downloaded document",
			logging.String(logging.FieldTicker, req.Ticker),
			logging.String("path", outPath))
		return Result{Path: outPath, Bytes: info.Size()}, nil
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return Result{}, services.Wrap(services.ErrValidation, "collect", "download", "build request", err)
	}
	httpReq.Header.Set("User-Agent", "carbonscan/1.0 (+document retrieval)")
	httpReq.Header.Set("Accept", acceptHeader(req.Filetype))

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return Result{}, services.Wrap(services.ErrExternalService, "collect", "download", "request document", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, services.Wrap(services.ErrExternalService, "collect", "download",
			"server returned "+resp.Status, nil)
	}
	if err := checkContentType(resp.Header.Get("Content-Type"), req.Filetype); err != nil {
		return Result{}, services.Wrap(services.ErrExternalService, "collect", "download", "", err)
	}

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create documents dir: %w", err)
	}

	written, err := writeAtomically(outPath, io.LimitReader(resp.Body, d.maxBytes+1))
	if err != nil {
		return Result{}, services.Wrap(services.ErrExternalService, "collect", "download", "write document", err)
	}
	if written > d.maxBytes {
		_ = os.Remove(outPath)
		return Result{}, services.Wrap(services.ErrValidation, "collect", "download",
			fmt.Sprintf("document exceeds %d byte limit", d.maxBytes), nil)
	}

	d.logger.Info("document downloaded",
		logging.String(logging.FieldTicker, req.Ticker),
		logging.String("path", outPath),
		logging.Int64("bytes", written))
	return Result{Path: outPath, Bytes: written}, nil
}

// targetFilename builds "<ticker>_<urlhash>_<filename>" so distinct URLs for
// the same company never overwrite each other.
func targetFilename(req Request) string {
	name := strings.TrimSpace(req.Filename)
	if name == "" {
		name = "document." + strings.TrimPrefix(defaultFiletype(req.Filetype), ".")
	}
	name = strings.ReplaceAll(name, " ", "_")
	sum := sha256.Sum256([]byte(req.URL))
	hash := hex.EncodeToString(sum[:])[:10]
	ticker := strings.TrimSpace(req.Ticker)
	if ticker == "" {
		ticker = "doc"
	}
	return ticker + "_" + hash + "_" + name
}

func defaultFiletype(filetype string) string {
	if filetype == "" {
		return "pdf"
	}
	return strings.ToLower(filetype)
}

func acceptHeader(filetype string) string {
	switch strings.ToLower(filetype) {
	case "", "pdf":
		return "application/pdf,application/octet-stream;q=0.9,*/*;q=0.8"
	case "csv":
		return "text/csv,application/octet-stream;q=0.9,*/*;q=0.8"
	case "xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet,*/*;q=0.8"
	case "html", "htm":
		return "text/html,*/*;q=0.8"
	default:
		return "*/*"
	}
}

// checkContentType rejects responses that are clearly not the requested
// document class; an interstitial HTML page instead of a PDF is the common
// failure. Absent or generic content types pass.
func checkContentType(contentType, filetype string) error {
	if filetype == "" || contentType == "" {
		return nil
	}
	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	if mediaType == "" || mediaType == "application/octet-stream" || mediaType == "binary/octet-stream" {
		return nil
	}
	switch strings.ToLower(filetype) {
	case "pdf":
		if mediaType != "application/pdf" && mediaType != "application/x-pdf" {
			return fmt.Errorf("expected a pdf, server sent %s", mediaType)
		}
	case "html", "htm":
		if mediaType != "text/html" {
			return fmt.Errorf("expected html, server sent %s", mediaType)
		}
	case "csv":
		if mediaType != "text/csv" && mediaType != "text/plain" {
			return fmt.Errorf("expected csv, server sent %s", mediaType)
		}
	}
	return nil
}

func writeAtomically(path string, body io.Reader) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".download-*")
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	written, err := io.Copy(tmp, body)
	if err != nil {
		return written, err
	}
	if err := tmp.Close(); err != nil {
		return written, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return written, err
	}
	return written, nil
}
