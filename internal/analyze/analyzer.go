package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"carbonscan/internal/collation"
	"carbonscan/internal/company"
	"carbonscan/internal/config"
	"carbonscan/internal/logging"
	"carbonscan/internal/services"
)

const systemPrompt = `You extract greenhouse gas emissions figures from company report excerpts.
Respond with a single JSON object and nothing else, using this schema:
{
  "scope_1": <total scope 1 emissions in kgCO2e, integer, or null if not reported>,
  "scope_2": {"value": <total scope 2 emissions in kgCO2e, integer>, "method": "market" | "location" | "unsure"} or null,
  "scope_3": {"value": <total scope 3 emissions in kgCO2e, integer>, "qualifiers": "<coverage caveats>"} or null,
  "qualifiers": "<any caveats about the figures overall>",
  "confidence": <0.0 to 1.0>
}
Convert units: 1 tCO2e = 1000 kgCO2e, 1 ktCO2e = 1000000 kgCO2e, 1 MtCO2e = 1000000000 kgCO2e.
Use the most recent reporting year in the excerpt. Never guess a figure that is not present.`

// Analyzer runs model analysis over filtered snippets.
type Analyzer struct {
	client *Client
	model  string
	logger *slog.Logger
}

// New builds an Analyzer from configuration. The model can be overridden
// per run through the model argument of Analyze.
func New(cfg *config.Config, logger *slog.Logger, opts ...ClientOption) *Analyzer {
	if logger == nil {
		logger = logging.NewNop()
	}
	client := NewClient(ClientConfig{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	}, opts...)
	return &Analyzer{
		client: client,
		model:  cfg.LLM.Model,
		logger: logging.NewComponentLogger(logger, "analyze"),
	}
}

// Analyze reads the snippet file and asks the model for emissions figures.
func (a *Analyzer) Analyze(ctx context.Context, comp company.Company, snippetPath string) (collation.AnalysisResult, error) {
	snippet, err := os.ReadFile(snippetPath)
	if err != nil {
		return collation.AnalysisResult{}, services.Wrap(services.ErrValidation, "analyze", "open snippet", snippetPath, err)
	}
	if strings.TrimSpace(string(snippet)) == "" {
		return collation.AnalysisResult{}, services.Wrap(services.ErrValidation, "analyze", "snippet", "snippet file is empty", nil)
	}

	userPrompt := fmt.Sprintf("Company: %s (%s)\n\nReport excerpt:\n%s", comp.Name, comp.Ticker, snippet)
	content, err := a.client.CompleteJSON(ctx, systemPrompt, userPrompt)
	if err != nil {
		return collation.AnalysisResult{}, services.Wrap(services.ErrExternalService, "analyze", "completion", "", err)
	}

	result, err := DecodeEmissions(content)
	if err != nil {
		return collation.AnalysisResult{}, services.Wrap(services.ErrValidation, "analyze", "decode emissions", "", err)
	}
	result.Method = a.model
	result.AnalysedAt = time.Now().UTC().Format(time.RFC3339)

	a.logger.Info("analysis complete",
		logging.String(logging.FieldTicker, comp.Ticker),
		logging.Float64("confidence", result.Confidence))
	return result, nil
}

// rawEmissions mirrors the model response with every field loosely typed so
// coercion can happen after decode.
type rawEmissions struct {
	Scope1     json.RawMessage `json:"scope_1"`
	Scope2     json.RawMessage `json:"scope_2"`
	Scope3     json.RawMessage `json:"scope_3"`
	Qualifiers string          `json:"qualifiers"`
	Confidence float64         `json:"confidence"`
}

type rawScope struct {
	Value      json.RawMessage `json:"value"`
	Method     string          `json:"method"`
	Qualifiers string          `json:"qualifiers"`
}

// DecodeEmissions parses a model response into an AnalysisResult, applying
// the coercions real responses need: numbers as strings, floats for
// integers, bare values instead of scope objects.
func DecodeEmissions(content string) (collation.AnalysisResult, error) {
	var raw rawEmissions
	if err := DecodeModelJSON(content, &raw); err != nil {
		return collation.AnalysisResult{}, fmt.Errorf("parse emissions payload: %w", err)
	}

	var result collation.AnalysisResult
	if v, ok, err := coerceValue(raw.Scope1); err != nil {
		return collation.AnalysisResult{}, fmt.Errorf("scope_1: %w", err)
	} else if ok {
		result.Scope1 = &v
	}

	scope2, err := coerceScope(raw.Scope2, "scope_2")
	if err != nil {
		return collation.AnalysisResult{}, err
	}
	if scope2 != nil {
		method, err := NormalizeScope2Method(scope2.Method)
		if err != nil {
			return collation.AnalysisResult{}, err
		}
		value, ok, err := coerceValue(scope2.Value)
		if err != nil || !ok {
			return collation.AnalysisResult{}, fmt.Errorf("scope_2: value required")
		}
		result.Scope2 = &collation.Scope2{Value: value, Method: method}
	}

	scope3, err := coerceScope(raw.Scope3, "scope_3")
	if err != nil {
		return collation.AnalysisResult{}, err
	}
	if scope3 != nil {
		value, ok, err := coerceValue(scope3.Value)
		if err != nil || !ok {
			return collation.AnalysisResult{}, fmt.Errorf("scope_3: value required")
		}
		result.Scope3 = &collation.Scope3{Value: value, Qualifiers: strings.TrimSpace(scope3.Qualifiers)}
	}

	result.Qualifiers = strings.TrimSpace(raw.Qualifiers)
	result.Confidence = clampConfidence(raw.Confidence)

	if result.Scope1 == nil && result.Scope2 == nil && result.Scope3 == nil {
		return collation.AnalysisResult{}, fmt.Errorf("no emissions figures in response")
	}
	return result, nil
}

// coerceScope accepts either a scope object or a bare number standing in
// for {"value": n}.
func coerceScope(raw json.RawMessage, field string) (*rawScope, error) {
	if isJSONNull(raw) {
		return nil, nil
	}
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "{") {
		var scope rawScope
		if err := json.Unmarshal(raw, &scope); err != nil {
			return nil, fmt.Errorf("%s: %w", field, err)
		}
		return &scope, nil
	}
	// Bare number or numeric string.
	if _, ok, err := coerceValue(raw); err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	} else if !ok {
		return nil, nil
	}
	return &rawScope{Value: raw}, nil
}

// coerceValue turns a JSON number, numeric string, or float into an int64.
// Returns ok=false for null or absent values.
func coerceValue(raw json.RawMessage) (int64, bool, error) {
	if isJSONNull(raw) {
		return 0, false, nil
	}
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false, err
		}
		s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
		if s == "" {
			return 0, false, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false, fmt.Errorf("not a number: %q", s)
		}
		return int64(math.Round(f)), true, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false, fmt.Errorf("not a number: %s", trimmed)
	}
	return int64(math.Round(f)), true, nil
}

// NormalizeScope2Method maps reported method spellings onto the canonical
// set (market, location, unsure). Empty input normalizes to unsure; anything
// unrecognized is rejected.
func NormalizeScope2Method(method string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(method)) {
	case "", "unsure", "unknown":
		return "unsure", nil
	case "market", "market-based":
		return "market", nil
	case "location", "locational", "location-based":
		return "location", nil
	default:
		return "", fmt.Errorf("scope_2.method must be one of market, location, unsure (got %q)", method)
	}
}

func isJSONNull(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed == "" || trimmed == "null"
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
