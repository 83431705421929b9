package services

import "context"

type contextKey string

const (
	tickerKey  contextKey = "ticker"
	docTypeKey contextKey = "doc_type"
	stageKey   contextKey = "stage"
	projectKey contextKey = "project"
)

// WithTicker annotates context with the company ticker being processed.
func WithTicker(ctx context.Context, ticker string) context.Context {
	if ticker == "" {
		return ctx
	}
	return context.WithValue(ctx, tickerKey, ticker)
}

// TickerFromContext extracts the company ticker if present.
func TickerFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(tickerKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithDocType annotates context with the document type name.
func WithDocType(ctx context.Context, docType string) context.Context {
	if docType == "" {
		return ctx
	}
	return context.WithValue(ctx, docTypeKey, docType)
}

// DocTypeFromContext returns the document type name if present.
func DocTypeFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(docTypeKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(stageKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithProject annotates context with the project identifier.
func WithProject(ctx context.Context, project string) context.Context {
	if project == "" {
		return ctx
	}
	return context.WithValue(ctx, projectKey, project)
}

// ProjectFromContext returns the project identifier if present.
func ProjectFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(projectKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
