// Package sqlite provides the SQLite-backed identity store.
//
// Single-use rows (verification tokens, OAuth state) are consumed with
// DELETE ... RETURNING so that a second consumer never observes the row.
package sqlite
