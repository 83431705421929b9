// Package main hosts the carbonscan CLI entrypoint and command graph.
//
// The Cobra-based command tree drives the emissions research pipeline: it
// imports company lists, configures document types, dispatches the search,
// download, extract, filter, and analyze batches, and surfaces the review
// operations that gate the final CSV export. Each invocation opens the
// project database, resumes the persisted run state, and flushes it on exit.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
