package collation

import (
	"fmt"
	"strings"
)

// PayloadKind tags the per-stage payload variant carried by a cell.
type PayloadKind string

const (
	KindSearch   PayloadKind = "search"
	KindDownload PayloadKind = "download"
	KindExtract  PayloadKind = "extract"
	KindAnalysis PayloadKind = "analysis"
)

// SearchResult is the artifact of a successful document search.
type SearchResult struct {
	URL      string `json:"url"`
	Title    string `json:"title,omitempty"`
	Filename string `json:"filename,omitempty"`
	Year     string `json:"year,omitempty"`
	DocType  string `json:"doc_type,omitempty"`
}

// DownloadResult is the artifact of a completed document download.
type DownloadResult struct {
	Path string `json:"path"`
}

// ExtractResult describes the snippet files produced from a document.
type ExtractResult struct {
	TextPath   string `json:"text_path"`
	TokenCount int    `json:"token_count,omitempty"`
	PageCount  int    `json:"page_count,omitempty"`
	TableCount int    `json:"table_count,omitempty"`
}

// Scope2 captures scope 2 emissions with the reporting method when known.
type Scope2 struct {
	Value  int64  `json:"value"`
	Method string `json:"method,omitempty"` // market, location, or unsure
}

// Scope3 captures scope 3 emissions with optional coverage qualifiers.
type Scope3 struct {
	Value      int64  `json:"value"`
	Qualifiers string `json:"qualifiers,omitempty"`
}

// AnalysisResult holds the emissions figures extracted from a document plus
// any reviewer overrides recorded during verification. All values are kgCO2e.
type AnalysisResult struct {
	Scope1     *int64  `json:"scope_1,omitempty"`
	Scope2     *Scope2 `json:"scope_2,omitempty"`
	Scope3     *Scope3 `json:"scope_3,omitempty"`
	Qualifiers string  `json:"qualifiers,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Method     string  `json:"method,omitempty"`
	AnalysedAt string  `json:"analysed_at,omitempty"`

	Scope1Override *int64 `json:"scope_1_override,omitempty"`
	Scope2Override *int64 `json:"scope_2_override,omitempty"`
	Scope3Override *int64 `json:"scope_3_override,omitempty"`
	ReviewNotes    string `json:"review_notes,omitempty"`
}

// Payload is the tagged union of stage artifacts. Exactly one variant field
// matching Kind must be set; Validate enforces this on snapshot load.
type Payload struct {
	Kind     PayloadKind     `json:"kind"`
	Search   *SearchResult   `json:"search,omitempty"`
	Download *DownloadResult `json:"download,omitempty"`
	Extract  *ExtractResult  `json:"extract,omitempty"`
	Analysis *AnalysisResult `json:"analysis,omitempty"`
}

// NewSearchPayload wraps a search result.
func NewSearchPayload(result SearchResult) *Payload {
	return &Payload{Kind: KindSearch, Search: &result}
}

// NewDownloadPayload wraps a download result.
func NewDownloadPayload(result DownloadResult) *Payload {
	return &Payload{Kind: KindDownload, Download: &result}
}

// NewExtractPayload wraps an extraction result.
func NewExtractPayload(result ExtractResult) *Payload {
	return &Payload{Kind: KindExtract, Extract: &result}
}

// NewAnalysisPayload wraps an analysis result.
func NewAnalysisPayload(result AnalysisResult) *Payload {
	return &Payload{Kind: KindAnalysis, Analysis: &result}
}

// Validate checks that the variant matching Kind is present and carries its
// required artifact reference.
func (p *Payload) Validate() error {
	if p == nil {
		return nil
	}
	switch p.Kind {
	case KindSearch:
		if p.Search == nil || strings.TrimSpace(p.Search.URL) == "" {
			return fmt.Errorf("search payload missing url")
		}
	case KindDownload:
		if p.Download == nil || strings.TrimSpace(p.Download.Path) == "" {
			return fmt.Errorf("download payload missing path")
		}
	case KindExtract:
		if p.Extract == nil || strings.TrimSpace(p.Extract.TextPath) == "" {
			return fmt.Errorf("extract payload missing text path")
		}
	case KindAnalysis:
		if p.Analysis == nil {
			return fmt.Errorf("analysis payload missing result")
		}
	default:
		return fmt.Errorf("unknown payload kind %q", p.Kind)
	}
	return nil
}

// Artifact returns the payload's primary artifact reference (URL or path).
func (p *Payload) Artifact() string {
	if p == nil {
		return ""
	}
	switch p.Kind {
	case KindSearch:
		if p.Search != nil {
			return p.Search.URL
		}
	case KindDownload:
		if p.Download != nil {
			return p.Download.Path
		}
	case KindExtract:
		if p.Extract != nil {
			return p.Extract.TextPath
		}
	case KindAnalysis:
		if p.Analysis != nil {
			return "analysis"
		}
	}
	return ""
}
