package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	pdfx "github.com/ledongthuc/pdf"

	"carbonscan/internal/config"
	"carbonscan/internal/logging"
	"carbonscan/internal/services"
)

const pageMarkerPrefix = "--- Page "

// Extractor converts PDF documents into page-marked text files.
type Extractor struct {
	dir      string
	maxPages int
	logger   *slog.Logger
}

// NewExtractor builds an Extractor writing into the configured snippets
// directory.
func NewExtractor(cfg *config.Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Extractor{
		dir:      cfg.Paths.SnippetsDir,
		maxPages: cfg.Extract.MaxPages,
		logger:   logging.NewComponentLogger(logger, "extract"),
	}
}

// TextResult describes the extracted text file.
type TextResult struct {
	TextPath   string
	PageCount  int
	TokenCount int
}

// ExtractText reads the PDF and writes its text, one page marker per page,
// next to the other snippets. Pages past the configured maximum are skipped.
func (e *Extractor) ExtractText(ctx context.Context, pdfPath string) (TextResult, error) {
	file, reader, err := pdfx.Open(pdfPath)
	if err != nil {
		return TextResult{}, services.Wrap(services.ErrValidation, "extract", "open pdf", pdfPath, err)
	}
	defer file.Close()

	totalPages := reader.NumPage()
	limit := totalPages
	if e.maxPages > 0 && limit > e.maxPages {
		limit = e.maxPages
	}

	var out strings.Builder
	extracted := 0
	for pageNum := 1; pageNum <= limit; pageNum++ {
		if err := ctx.Err(); err != nil {
			return TextResult{}, err
		}
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Individual undecodable pages are common in scanned reports;
			// keep going and report what was readable.
			e.logger.Debug("page text unavailable",
				logging.String("pdf", filepath.Base(pdfPath)),
				logging.Int("page", pageNum),
				logging.Error(err))
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		fmt.Fprintf(&out, "%s%d ---\n%s\n\n", pageMarkerPrefix, pageNum, text)
		extracted++
	}

	if extracted == 0 {
		return TextResult{}, services.Wrap(services.ErrValidation, "extract", "extract text",
			"no extractable text in "+filepath.Base(pdfPath)+" (scanned document?)", nil)
	}

	body := out.String()
	textPath, err := e.writeOutput(pdfPath, ".text.txt", body)
	if err != nil {
		return TextResult{}, err
	}

	result := TextResult{
		TextPath:   textPath,
		PageCount:  extracted,
		TokenCount: EstimateTokens(body),
	}
	e.logger.Info("text extracted",
		logging.String("pdf", filepath.Base(pdfPath)),
		logging.Int("pages", result.PageCount),
		logging.Int("tokens", result.TokenCount))
	return result, nil
}

func (e *Extractor) writeOutput(sourcePath, suffix, body string) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("create snippets dir: %w", err)
	}
	base := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	outPath := filepath.Join(e.dir, base+suffix)
	if err := os.WriteFile(outPath, []byte(body), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", outPath, err)
	}
	return outPath, nil
}

// EstimateTokens approximates the model token count of a text at four
// characters per token.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}
