package search

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"carbonscan/internal/company"
	"carbonscan/internal/config"
	"carbonscan/internal/doctypes"
	"carbonscan/internal/logging"
	"carbonscan/internal/services"
)

const (
	defaultResultLimit = 10
	defaultTimeout     = 20 * time.Second
	defaultUserAgent   = "carbonscan/1.0"
)

// Finder queries a search endpoint and picks the best candidate document.
type Finder struct {
	client    *http.Client
	baseURL   string
	userAgent string
	limit     int
	logger    *slog.Logger
}

// NewFinder builds a Finder from configuration. A nil client gets a default
// with the configured request timeout.
func NewFinder(cfg *config.Config, client *http.Client, logger *slog.Logger) *Finder {
	timeout := defaultTimeout
	if cfg.Search.RequestTimeout > 0 {
		timeout = time.Duration(cfg.Search.RequestTimeout) * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	limit := cfg.Search.ResultLimit
	if limit <= 0 {
		limit = defaultResultLimit
	}
	userAgent := cfg.Search.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Finder{
		client:    client,
		baseURL:   cfg.Search.BaseURL,
		userAgent: userAgent,
		limit:     limit,
		logger:    logging.NewComponentLogger(logger, "search"),
	}
}

// Candidate is one scraped search result with its computed score.
type Candidate struct {
	URL   string
	Title string
	Score int
}

// Result is the selected document reference for a cell.
type Result struct {
	URL      string
	Title    string
	Filename string
	Year     string
}

// Find runs one search for the pair and returns the highest-scoring
// candidate that satisfies the document type's filetype constraint.
func (f *Finder) Find(ctx context.Context, comp company.Company, docType doctypes.DocType) (Result, error) {
	query := BuildQuery(comp, docType)
	pageURL, err := f.buildSearchURL(query)
	if err != nil {
		return Result{}, services.Wrap(services.ErrConfiguration, "collect", "search", "build search url", err)
	}
	f.logger.Debug("searching",
		logging.String(logging.FieldTicker, comp.Ticker),
		logging.String(logging.FieldDocType, docType.Name),
		logging.String("query", query))

	doc, err := f.fetchDocument(ctx, pageURL)
	if err != nil {
		return Result{}, err
	}

	candidates := extractCandidates(doc, f.limit)
	best, ok := pickBest(candidates, docType)
	if !ok {
		return Result{}, services.Wrap(services.ErrNotFound, "collect", "search",
			fmt.Sprintf("no %s result for %s", docType.Name, comp.Ticker), nil)
	}

	return Result{
		URL:      best.URL,
		Title:    best.Title,
		Filename: DeriveFilename(best.URL, docType.Filetype),
		Year:     InferYear(best.Title, best.URL),
	}, nil
}

// BuildQuery assembles the search query from company name, search terms,
// year, and filetype constraint.
func BuildQuery(comp company.Company, docType doctypes.DocType) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%q", comp.Name)
	if len(docType.SearchTerms) > 0 {
		quoted := make([]string, len(docType.SearchTerms))
		for i, term := range docType.SearchTerms {
			quoted[i] = fmt.Sprintf("%q", term)
		}
		fmt.Fprintf(&b, " (%s)", strings.Join(quoted, " OR "))
	}
	if docType.Year != "" {
		fmt.Fprintf(&b, " %s", docType.Year)
	}
	if docType.Filetype != "" {
		fmt.Fprintf(&b, " filetype:%s", docType.Filetype)
	}
	return b.String()
}

func (f *Finder) buildSearchURL(query string) (string, error) {
	parsed, err := url.Parse(f.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid search base url %s: %w", f.baseURL, err)
	}
	values := parsed.Query()
	values.Set("q", query)
	parsed.RawQuery = values.Encode()
	return parsed.String(), nil
}

func (f *Finder) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalService, "collect", "search", "build request", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalService, "collect", "search", "request results", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrExternalService, "collect", "search",
			"search endpoint returned "+resp.Status, nil)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalService, "collect", "search", "parse results", err)
	}
	return doc, nil
}

// extractCandidates reads the result list. The selectors match the
// lightweight HTML variant of common search frontends: each result is an
// anchor with class result__a, with the href possibly wrapped in a uddg
// redirect parameter.
func extractCandidates(doc *goquery.Document, limit int) []Candidate {
	var out []Candidate
	doc.Find("a.result__a").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if len(out) >= limit {
			return false
		}
		href, ok := sel.Attr("href")
		if !ok {
			return true
		}
		target := resolveRedirect(href)
		if target == "" {
			return true
		}
		out = append(out, Candidate{URL: target, Title: strings.TrimSpace(sel.Text())})
		return true
	})
	return out
}

func resolveRedirect(href string) string {
	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if wrapped := parsed.Query().Get("uddg"); wrapped != "" {
		if unwrapped, err := url.QueryUnescape(wrapped); err == nil {
			href = unwrapped
		} else {
			href = wrapped
		}
		parsed, err = url.Parse(href)
		if err != nil {
			return ""
		}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ""
	}
	return parsed.String()
}

// pickBest scores candidates and returns the winner. Candidates that fail
// the filetype constraint are discarded outright.
func pickBest(candidates []Candidate, docType doctypes.DocType) (Candidate, bool) {
	var (
		best  Candidate
		found bool
	)
	for _, cand := range candidates {
		if docType.Filetype != "" && !matchesFiletype(cand.URL, docType.Filetype) {
			continue
		}
		cand.Score = scoreCandidate(cand, docType)
		if !found || cand.Score > best.Score {
			best = cand
			found = true
		}
	}
	return best, found
}

func matchesFiletype(rawURL, filetype string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(parsed.Path), "."))
	if ext == filetype {
		return true
	}
	// Some hosts serve documents from extensionless download endpoints.
	return ext == "" && strings.Contains(strings.ToLower(parsed.Path), filetype)
}

func scoreCandidate(cand Candidate, docType doctypes.DocType) int {
	haystack := strings.ToLower(cand.Title + " " + cand.URL)
	score := 0
	for _, term := range docType.SearchTerms {
		if strings.Contains(haystack, strings.ToLower(term)) {
			score += 2
		}
	}
	if docType.Year != "" && strings.Contains(haystack, docType.Year) {
		score += 3
	}
	if strings.Contains(haystack, strings.ToLower(docType.Name)) {
		score++
	}
	return score
}

// DeriveFilename extracts a safe filename from a document URL, appending the
// expected extension when the path does not carry one.
func DeriveFilename(rawURL, filetype string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "document." + defaultExt(filetype)
	}
	name := path.Base(parsed.Path)
	if decoded, decErr := url.PathUnescape(name); decErr == nil {
		name = decoded
	}
	// Guard before sanitizing: path.Base returns "/" or "." for bare URLs,
	// and sanitizing first would turn the slash into a plain "-".
	if name == "" || name == "." || name == "/" {
		name = "document"
	}
	name = sanitizeFilename(name)
	ext := defaultExt(filetype)
	lower := strings.ToLower(name)
	if !strings.HasSuffix(lower, "."+ext) {
		if idx := strings.LastIndex(lower, "."+ext); idx >= 0 {
			// Trim trailing junk after the real extension.
			name = name[:idx+len(ext)+1]
		} else {
			name += "." + ext
		}
	}
	return name
}

func defaultExt(filetype string) string {
	if filetype == "" {
		return "pdf"
	}
	return strings.ToLower(filetype)
}

func sanitizeFilename(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		case r == ' ':
			return '_'
		default:
			return '-'
		}
	}, name)
}

// InferYear scans the title and URL for a plausible reporting year.
func InferYear(title, rawURL string) string {
	for _, source := range []string{title, rawURL} {
		if year := findYear(source); year != "" {
			return year
		}
	}
	return ""
}

func findYear(s string) string {
	for i := 0; i+4 <= len(s); i++ {
		if s[i] != '1' && s[i] != '2' {
			continue
		}
		candidate := s[i : i+4]
		if !allDigits(candidate) {
			continue
		}
		// Reporting years worth trusting sit in a narrow band.
		if candidate >= "1990" && candidate <= "2035" {
			if i+4 < len(s) && isDigit(s[i+4]) {
				continue
			}
			if i > 0 && isDigit(s[i-1]) {
				continue
			}
			return candidate
		}
	}
	return ""
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
