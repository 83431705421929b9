// Package runstate owns the authoritative in-memory state of one research
// run and its persistence.
//
// RunState aggregates the wizard steps, the company and document-type axes,
// and one collation table per pipeline stage. It is mutated only through the
// Store, which recomputes step validity after every mutation and schedules a
// debounced snapshot write. Snapshot loading is forgiving: any missing or
// malformed field defaults rather than failing, so a run is always resumable.
package runstate
