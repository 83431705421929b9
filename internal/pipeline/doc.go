// Package pipeline binds the stage tables to their collaborators and drives
// every operation through the run-state store, so each cell transition
// schedules a snapshot persist. The four stages share one shape: an external
// call moves a cell to ready_for_next, a reviewer's accept makes it
// complete. Collection splits its external work in two (search, then
// download); analysis locks accepted cells against further mutation.
package pipeline
