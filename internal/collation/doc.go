// Package collation tracks per-company, per-document-type research work.
//
// A Cell is the unit of tracked work for one (ticker, document type) pair and
// moves through a fixed lifecycle: idle, in_progress, ready_for_next,
// complete, failed. The Table holds every cell for a pipeline stage and
// derives selection and readiness summaries as pure functions of current
// state. The Engine wraps an external service call in the optimistic
// in-progress transition and applies exactly one of succeed or fail, catching
// service errors at the cell boundary so batch runs stay isolated per cell.
//
// Treat this package as the single source of truth for lifecycle semantics;
// when you add new statuses or payload variants, update the snapshot
// normalization in runstate as well.
package collation
