package logging

import (
	"context"
	"log/slog"

	"carbonscan/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldTicker is the standardized structured logging key for company tickers.
	FieldTicker = "ticker"
	// FieldDocType is the standardized structured logging key for document type names.
	FieldDocType = "doc_type"
	// FieldStage is the standardized structured logging key for pipeline stage names.
	FieldStage = "stage"
	// FieldProject is the standardized structured logging key for project identifiers.
	FieldProject = "project"
	// FieldEventType labels machine-readable pipeline events (cell_start, batch_done, ...).
	FieldEventType = "event_type"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if project, ok := services.ProjectFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldProject, project))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if ticker, ok := services.TickerFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldTicker, ticker))
	}
	if docType, ok := services.DocTypeFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldDocType, docType))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
