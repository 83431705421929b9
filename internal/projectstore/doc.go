// Package projectstore persists run snapshots in a per-project SQLite
// database. Snapshots are opaque JSON blobs keyed by project id; the store
// neither inspects nor migrates their contents. A file lock next to the
// database keeps two sessions from mutating the same project concurrently.
package projectstore
