// Package migrations embeds the SQLite schema migrations so the binary
// can create and upgrade its history database without files on disk.
package migrations

import "embed"

// FS holds every *.sql migration at its root.
//
//go:embed *.sql
var FS embed.FS
