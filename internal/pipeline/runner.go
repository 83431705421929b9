package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"carbonscan/internal/batch"
	"carbonscan/internal/collation"
	"carbonscan/internal/company"
	"carbonscan/internal/doctypes"
	"carbonscan/internal/download"
	"carbonscan/internal/extract"
	"carbonscan/internal/logging"
	"carbonscan/internal/runstate"
	"carbonscan/internal/search"
	"carbonscan/internal/services"
)

// DocumentFinder locates a candidate document for a pair.
type DocumentFinder interface {
	Find(ctx context.Context, comp company.Company, docType doctypes.DocType) (search.Result, error)
}

// DocumentFetcher downloads a located document.
type DocumentFetcher interface {
	Fetch(ctx context.Context, req download.Request) (download.Result, error)
}

// TextExtractor converts a document into page-marked text.
type TextExtractor interface {
	ExtractText(ctx context.Context, pdfPath string) (extract.TextResult, error)
}

// SnippetFilter reduces extracted text to emissions pages.
type SnippetFilter interface {
	FilterText(textPath string) (extract.SnippetResult, error)
}

// EmissionsAnalyzer extracts figures from a snippet.
type EmissionsAnalyzer interface {
	Analyze(ctx context.Context, comp company.Company, snippetPath string) (collation.AnalysisResult, error)
}

// Collaborators bundles the stage services the runner dispatches to.
type Collaborators struct {
	Finder    DocumentFinder
	Fetcher   DocumentFetcher
	Extractor TextExtractor
	Filter    SnippetFilter
	Analyzer  EmissionsAnalyzer
}

// Runner drives pipeline operations against the run-state store.
type Runner struct {
	store    *runstate.Store
	engine   *collation.Engine
	executor *batch.Executor
	collab   Collaborators
	logger   *slog.Logger
}

// NewRunner wires a runner around the store and collaborators.
func NewRunner(store *runstate.Store, collab Collaborators, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{
		store:    store,
		engine:   collation.NewEngine(logger),
		executor: batch.NewExecutor(logger),
		collab:   collab,
		logger:   logging.NewComponentLogger(logger, "pipeline"),
	}
}

// Store exposes the underlying run-state store.
func (r *Runner) Store() *runstate.Store {
	return r.store
}

// Search dispatches the report finder for every selected cell that has not
// been searched yet (idle) or failed before. Cells already carrying a result
// are skipped, so re-running a search never clobbers found documents.
func (r *Runner) Search(ctx context.Context, sel collation.Selection) (batch.Summary, error) {
	info, _ := StageByID(runstate.StageCollect)
	keys := r.eligibleKeys(info, collation.OpStart, sel)
	return r.executor.Run(ctx, keys, func(ctx context.Context, key collation.Key) (collation.Outcome, error) {
		call, err := r.prepareSearch(key)
		if err != nil {
			return collation.OutcomeSkipped, err
		}
		return r.runCell(ctx, info, key, false, call)
	})
}

// Download retrieves the found document for every selected ready cell,
// completing the collection stage for the pair.
func (r *Runner) Download(ctx context.Context, sel collation.Selection) (batch.Summary, error) {
	info, _ := StageByID(runstate.StageCollect)
	keys := r.eligibleKeys(info, collation.OpAdvance, sel)
	return r.executor.Run(ctx, keys, func(ctx context.Context, key collation.Key) (collation.Outcome, error) {
		call, err := r.prepareDownload(key)
		if err != nil {
			return collation.OutcomeSkipped, err
		}
		return r.runCell(ctx, info, key, true, call)
	})
}

// Extract produces text for every selected cell whose document is on disk.
func (r *Runner) Extract(ctx context.Context, sel collation.Selection) (batch.Summary, error) {
	info, _ := StageByID(runstate.StageExtract)
	keys := r.eligibleKeys(info, collation.OpStart, sel)
	return r.executor.Run(ctx, keys, func(ctx context.Context, key collation.Key) (collation.Outcome, error) {
		call, err := r.prepareExtract(key)
		if err != nil {
			return collation.OutcomeSkipped, err
		}
		return r.runCell(ctx, info, key, false, call)
	})
}

// Filter reduces extracted text to emissions snippets for the selection.
func (r *Runner) Filter(ctx context.Context, sel collation.Selection) (batch.Summary, error) {
	info, _ := StageByID(runstate.StageFilter)
	keys := r.eligibleKeys(info, collation.OpStart, sel)
	return r.executor.Run(ctx, keys, func(ctx context.Context, key collation.Key) (collation.Outcome, error) {
		call, err := r.prepareFilter(key)
		if err != nil {
			return collation.OutcomeSkipped, err
		}
		return r.runCell(ctx, info, key, false, call)
	})
}

// Analyze runs model analysis over the selection's snippets.
func (r *Runner) Analyze(ctx context.Context, sel collation.Selection) (batch.Summary, error) {
	info, _ := StageByID(runstate.StageAnalyze)
	keys := r.eligibleKeys(info, collation.OpStart, sel)
	return r.executor.Run(ctx, keys, func(ctx context.Context, key collation.Key) (collation.Outcome, error) {
		call, err := r.prepareAnalyze(key)
		if err != nil {
			return collation.OutcomeSkipped, err
		}
		return r.runCell(ctx, info, key, false, call)
	})
}

// Accept confirms a ready cell as complete. Analysis cells lock on accept.
func (r *Runner) Accept(stage runstate.StageID, key collation.Key) error {
	info, err := StageByID(stage)
	if err != nil {
		return err
	}
	return r.store.Mutate(func(state *runstate.RunState) error {
		cell := state.Table(stage).Cell(key)
		if cell == nil {
			return services.Wrap(services.ErrNotFound, string(stage), "accept", key.String(), nil)
		}
		return cell.Accept(info.Locking)
	})
}

// AcceptAll accepts every selected ready cell in the stage.
func (r *Runner) AcceptAll(stage runstate.StageID, sel collation.Selection) (int, error) {
	info, err := StageByID(stage)
	if err != nil {
		return 0, err
	}
	accepted := 0
	err = r.store.Mutate(func(state *runstate.RunState) error {
		for _, key := range state.Table(stage).Eligible(collation.OpAccept, sel) {
			if err := state.Table(stage).Cell(key).Accept(info.Locking); err != nil {
				return err
			}
			accepted++
		}
		return nil
	})
	return accepted, err
}

// Reject discards a ready cell's artifact, returning the pair to idle.
func (r *Runner) Reject(stage runstate.StageID, key collation.Key) error {
	if _, err := StageByID(stage); err != nil {
		return err
	}
	return r.store.Mutate(func(state *runstate.RunState) error {
		cell := state.Table(stage).Cell(key)
		if cell == nil {
			return services.Wrap(services.ErrNotFound, string(stage), "reject", key.String(), nil)
		}
		return cell.Reject()
	})
}

// Overrides carries reviewer corrections recorded at verification.
type Overrides struct {
	Scope1 *int64
	Scope2 *int64
	Scope3 *int64
	Notes  string
}

func (o Overrides) empty() bool {
	return o.Scope1 == nil && o.Scope2 == nil && o.Scope3 == nil && strings.TrimSpace(o.Notes) == ""
}

// AcceptAnalysis records reviewer overrides on a ready analysis cell and
// accepts it, locking the figures.
func (r *Runner) AcceptAnalysis(key collation.Key, overrides Overrides) error {
	return r.store.Mutate(func(state *runstate.RunState) error {
		cell := state.Table(runstate.StageAnalyze).Cell(key)
		if cell == nil {
			return services.Wrap(services.ErrNotFound, "analyze", "accept", key.String(), nil)
		}
		if !overrides.empty() {
			if cell.Payload == nil || cell.Payload.Analysis == nil {
				return services.Wrap(services.ErrValidation, "analyze", "accept", "no analysis to override on "+key.String(), nil)
			}
			analysis := cell.Payload.Analysis
			analysis.Scope1Override = overrides.Scope1
			analysis.Scope2Override = overrides.Scope2
			analysis.Scope3Override = overrides.Scope3
			analysis.ReviewNotes = strings.TrimSpace(overrides.Notes)
		}
		return cell.Accept(true)
	})
}

// Reopen unlocks an accepted analysis cell and returns it to ready for a
// fresh review pass.
func (r *Runner) Reopen(key collation.Key) error {
	return r.store.Mutate(func(state *runstate.RunState) error {
		cell := state.Table(runstate.StageAnalyze).Cell(key)
		if cell == nil {
			return services.Wrap(services.ErrNotFound, "analyze", "reopen", key.String(), nil)
		}
		if cell.Status != collation.StatusComplete {
			return services.Wrap(services.ErrValidation, "analyze", "reopen", key.String()+" is not complete", nil)
		}
		cell.Unlock()
		cell.Status = collation.StatusReady
		return nil
	})
}

// eligibleKeys computes the keys an operation may touch: selected, in a
// legal status, and with their upstream artifact present.
func (r *Runner) eligibleKeys(info StageInfo, op collation.Operation, sel collation.Selection) []collation.Key {
	var keys []collation.Key
	r.store.View(func(state *runstate.RunState) {
		for _, key := range state.Table(info.ID).Eligible(op, sel) {
			if !sourceComplete(state, info, key) {
				continue
			}
			keys = append(keys, key)
		}
	})
	return keys
}

// runCell applies the engine transition for one key inside a store mutation,
// so the resulting state change schedules a persist whatever the outcome.
func (r *Runner) runCell(ctx context.Context, info StageInfo, key collation.Key, terminal bool, call collation.Call) (collation.Outcome, error) {
	var outcome collation.Outcome
	err := r.store.Mutate(func(state *runstate.RunState) error {
		cell := state.Table(info.ID).Cell(key)
		if cell == nil {
			return services.Wrap(services.ErrNotFound, string(info.ID), "run", key.String(), nil)
		}
		ctx := services.WithTicker(services.WithDocType(services.WithStage(ctx, string(info.ID)), key.DocType), key.Ticker)
		var runErr error
		outcome, runErr = r.engine.Run(ctx, cell, terminal, call)
		return runErr
	})
	return outcome, err
}

// The prepare functions resolve every store-held input before the engine
// dispatches, so the returned Call never touches the store: it runs while
// the store mutation holds the lock. Missing inputs surface here, before
// the cell is placed in progress.

func (r *Runner) prepareSearch(key collation.Key) (collation.Call, error) {
	comp, docType, err := r.pairInputs(key)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) (*collation.Payload, error) {
		result, err := r.collab.Finder.Find(ctx, comp, docType)
		if err != nil {
			return nil, err
		}
		return collation.NewSearchPayload(collation.SearchResult{
			URL:      result.URL,
			Title:    result.Title,
			Filename: result.Filename,
			Year:     result.Year,
			DocType:  docType.Name,
		}), nil
	}, nil
}

func (r *Runner) prepareDownload(key collation.Key) (collation.Call, error) {
	var found *collation.SearchResult
	var filetype string
	r.store.View(func(state *runstate.RunState) {
		if cell := state.Table(runstate.StageCollect).Cell(key); cell != nil && cell.Payload != nil {
			found = cell.Payload.Search
		}
		if dt := findDocType(state.DocTypes, key.DocType); dt != nil {
			filetype = dt.Filetype
		}
	})
	if found == nil {
		return nil, services.Wrap(services.ErrValidation, "collect", "download", "no search result on "+key.String(), nil)
	}
	result := *found
	return func(ctx context.Context) (*collation.Payload, error) {
		fetched, err := r.collab.Fetcher.Fetch(ctx, download.Request{
			Ticker:   key.Ticker,
			URL:      result.URL,
			Filename: result.Filename,
			Filetype: filetype,
		})
		if err != nil {
			return nil, err
		}
		// The search result stays on the payload so exports can cite the
		// document source.
		return &collation.Payload{
			Kind:     collation.KindDownload,
			Search:   &result,
			Download: &collation.DownloadResult{Path: fetched.Path},
		}, nil
	}, nil
}

func (r *Runner) prepareExtract(key collation.Key) (collation.Call, error) {
	pdfPath := r.sourceArtifact(runstate.StageCollect, key)
	if pdfPath == "" {
		return nil, services.Wrap(services.ErrValidation, "extract", "run", "no downloaded document for "+key.String(), nil)
	}
	return func(ctx context.Context) (*collation.Payload, error) {
		result, err := r.collab.Extractor.ExtractText(ctx, pdfPath)
		if err != nil {
			return nil, err
		}
		return collation.NewExtractPayload(collation.ExtractResult{
			TextPath:   result.TextPath,
			TokenCount: result.TokenCount,
			PageCount:  result.PageCount,
		}), nil
	}, nil
}

func (r *Runner) prepareFilter(key collation.Key) (collation.Call, error) {
	textPath := r.sourceArtifact(runstate.StageExtract, key)
	if textPath == "" {
		return nil, services.Wrap(services.ErrValidation, "filter", "run", "no extracted text for "+key.String(), nil)
	}
	return func(ctx context.Context) (*collation.Payload, error) {
		result, err := r.collab.Filter.FilterText(textPath)
		if err != nil {
			return nil, err
		}
		return collation.NewExtractPayload(collation.ExtractResult{
			TextPath:   result.SnippetPath,
			TokenCount: result.TokenCount,
			PageCount:  result.PageHits,
		}), nil
	}, nil
}

func (r *Runner) prepareAnalyze(key collation.Key) (collation.Call, error) {
	snippetPath := r.sourceArtifact(runstate.StageFilter, key)
	if snippetPath == "" {
		return nil, services.Wrap(services.ErrValidation, "analyze", "run", "no snippet for "+key.String(), nil)
	}
	comp, _, err := r.pairInputs(key)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) (*collation.Payload, error) {
		result, err := r.collab.Analyzer.Analyze(ctx, comp, snippetPath)
		if err != nil {
			return nil, err
		}
		return collation.NewAnalysisPayload(result), nil
	}, nil
}

// pairInputs resolves the company and document type behind a key.
func (r *Runner) pairInputs(key collation.Key) (company.Company, doctypes.DocType, error) {
	var (
		comp    *company.Company
		docType *doctypes.DocType
	)
	r.store.View(func(state *runstate.RunState) {
		for i := range state.Companies {
			if state.Companies[i].Ticker == key.Ticker {
				comp = &state.Companies[i]
				break
			}
		}
		docType = findDocType(state.DocTypes, key.DocType)
	})
	if comp == nil {
		return company.Company{}, doctypes.DocType{}, services.Wrap(services.ErrValidation, "pipeline", "inputs", "unknown ticker "+key.Ticker, nil)
	}
	if docType == nil {
		return company.Company{}, doctypes.DocType{}, services.Wrap(services.ErrValidation, "pipeline", "inputs", "unknown document type "+key.DocType, nil)
	}
	return *comp, *docType, nil
}

func (r *Runner) sourceArtifact(stage runstate.StageID, key collation.Key) string {
	var artifact string
	r.store.View(func(state *runstate.RunState) {
		if cell := state.Table(stage).Cell(key); cell != nil && cell.Status == collation.StatusComplete {
			artifact = cell.Payload.Artifact()
		}
	})
	return artifact
}

func findDocType(defs []doctypes.DocType, name string) *doctypes.DocType {
	for i := range defs {
		if defs[i].Name == name {
			return &defs[i]
		}
	}
	return nil
}

// SelectKeys builds a selection from ticker and document-type filters. Empty
// filters select the whole axis.
func (r *Runner) SelectKeys(stage runstate.StageID, tickers, docTypes []string) (collation.Selection, error) {
	if _, err := StageByID(stage); err != nil {
		return nil, err
	}
	wantTicker := toSet(tickers)
	wantType := toSet(docTypes)
	sel := collation.Selection{}
	r.store.View(func(state *runstate.RunState) {
		for _, key := range state.Table(stage).Keys() {
			if len(wantTicker) > 0 {
				if _, ok := wantTicker[strings.ToUpper(key.Ticker)]; !ok {
					continue
				}
			}
			if len(wantType) > 0 {
				if _, ok := wantType[strings.ToLower(key.DocType)]; !ok {
					continue
				}
			}
			sel[key] = true
		}
	})
	if len(sel) == 0 {
		return nil, fmt.Errorf("no cells match the selection")
	}
	return sel, nil
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		// Tickers are stored upper-case, document types lower-case; store
		// both spellings so either axis can match.
		set[strings.ToUpper(v)] = struct{}{}
		set[strings.ToLower(v)] = struct{}{}
	}
	return set
}
