// Package download retrieves found documents into the project documents
// directory. Filenames are prefixed with the ticker and a short URL hash so
// re-searches and shared filenames cannot collide on disk.
package download
