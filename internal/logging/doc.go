// Package logging builds the slog loggers used across carbonscan and
// standardizes the structured field names stamped on pipeline events.
package logging
