// Package runlog keeps the history of optimization runs, either as JSON
// lines optionally rotated by size or in a SQLite or PostgreSQL table.
package runlog
