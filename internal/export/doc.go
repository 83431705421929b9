// Package export flattens a finished run into one row per company and
// writes it as CSV. Each row merges the collected document reference, the
// extraction artifacts, and the accepted analysis, with reviewer overrides
// taking precedence over model figures.
package export
