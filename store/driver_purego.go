//go:build !sqlite_vec
// +build !sqlite_vec

package store

// Compiled when building without the sqlite_vec tag. The pure Go driver needs
// no C compiler but has no vector index; SearchVector reports unavailable and
// callers use the in-process similarity scan instead.
//
// Build command:
//   CGO_ENABLED=0 go build ./...

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use.
	DriverName = "sqlite"

	// VectorExtensionAvailable indicates if the vector index is available.
	VectorExtensionAvailable = false
)
