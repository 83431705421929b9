package extract

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"carbonscan/internal/config"
	"carbonscan/internal/logging"
	"carbonscan/internal/services"
)

// Filter reduces extracted text files to the pages carrying emissions
// content.
type Filter struct {
	dir     string
	pattern *regexp.Regexp
	logger  *slog.Logger
}

// NewFilter builds a Filter from the configured keyword list. Keyword
// matching is case-insensitive with flexible whitespace, so "Scope 1" and
// "scope  1" both hit.
func NewFilter(cfg *config.Config, logger *slog.Logger) (*Filter, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	pattern, err := compileKeywords(cfg.Extract.Keywords)
	if err != nil {
		return nil, err
	}
	return &Filter{
		dir:     cfg.Paths.SnippetsDir,
		pattern: pattern,
		logger:  logging.NewComponentLogger(logger, "filter"),
	}, nil
}

// WithKeywords returns a Filter using an override keyword list, keeping the
// output directory.
func (f *Filter) WithKeywords(keywords []string) (*Filter, error) {
	pattern, err := compileKeywords(keywords)
	if err != nil {
		return nil, err
	}
	return &Filter{dir: f.dir, pattern: pattern, logger: f.logger}, nil
}

// SnippetResult describes the filtered snippet file.
type SnippetResult struct {
	SnippetPath string
	PageHits    int
	TokenCount  int
}

// FilterText reads a page-marked text file and writes only the matching
// pages to a snippet file. A document with no matching pages is a
// validation failure: there is nothing for the model to analyse.
func (f *Filter) FilterText(textPath string) (SnippetResult, error) {
	body, err := os.ReadFile(textPath)
	if err != nil {
		return SnippetResult{}, services.Wrap(services.ErrValidation, "filter", "open text", textPath, err)
	}

	pages := SplitPages(string(body))
	var (
		kept strings.Builder
		hits int
	)
	for _, page := range pages {
		if !f.pattern.MatchString(page.Text) {
			continue
		}
		fmt.Fprintf(&kept, "%s%d ---\n%s\n\n", pageMarkerPrefix, page.Number, page.Text)
		hits++
	}
	if hits == 0 {
		return SnippetResult{}, services.Wrap(services.ErrValidation, "filter", "filter text",
			"no pages match the emissions keywords in "+filepath.Base(textPath), nil)
	}

	base := strings.TrimSuffix(filepath.Base(textPath), ".text.txt")
	outPath := filepath.Join(f.dir, base+".snippet.txt")
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return SnippetResult{}, fmt.Errorf("create snippets dir: %w", err)
	}
	if err := os.WriteFile(outPath, []byte(kept.String()), 0o644); err != nil {
		return SnippetResult{}, fmt.Errorf("write %s: %w", outPath, err)
	}

	result := SnippetResult{
		SnippetPath: outPath,
		PageHits:    hits,
		TokenCount:  EstimateTokens(kept.String()),
	}
	f.logger.Info("snippet written",
		logging.String("snippet", filepath.Base(outPath)),
		logging.Int("pages", hits),
		logging.Int("tokens", result.TokenCount))
	return result, nil
}

// Page is one page of extracted text.
type Page struct {
	Number int
	Text   string
}

// SplitPages parses a page-marked text body back into pages.
func SplitPages(body string) []Page {
	var pages []Page
	sections := strings.Split(body, pageMarkerPrefix)
	for _, section := range sections {
		idx := strings.Index(section, " ---\n")
		if idx < 0 {
			continue
		}
		var number int
		if _, err := fmt.Sscanf(section[:idx], "%d", &number); err != nil {
			continue
		}
		text := strings.TrimSpace(section[idx+len(" ---\n"):])
		if text == "" {
			continue
		}
		pages = append(pages, Page{Number: number, Text: text})
	}
	return pages
}

func compileKeywords(keywords []string) (*regexp.Regexp, error) {
	cleaned := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		words := strings.Fields(regexp.QuoteMeta(kw))
		cleaned = append(cleaned, strings.Join(words, `\s+`))
	}
	if len(cleaned) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "filter", "keywords", "at least one keyword is required", nil)
	}
	pattern, err := regexp.Compile(`(?i)` + strings.Join(cleaned, "|"))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "filter", "keywords", "compile keyword pattern", err)
	}
	return pattern, nil
}
