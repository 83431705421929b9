// Package services defines shared utilities consumed by the pipeline stage
// collaborators and the CLI.
//
// Key responsibilities:
//   - Context helpers that stamp company tickers, document types, and stage
//     names for logging.
//   - Structured error markers plus the Wrap helper that keep failure
//     classification consistent across search, download, extraction, and
//     analysis (transient vs permanent-input failures).
//
// Use these helpers when wiring new stage logic so operational behaviour
// (error handling, observability, retries) stays uniform across the pipeline.
package services
