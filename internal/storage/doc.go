// Package storage keeps an optional journal of accepted status transitions.
//
// Drivers:
//   - "file": JSON Lines, no dependencies beyond the standard library
//   - "sqlite": SQLite database file (modernc.org/sqlite, pure Go)
//
// The journal is diagnostic only; the bridge never reads it back to make
// decisions.
package storage
