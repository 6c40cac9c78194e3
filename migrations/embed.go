// Package migrations ships the schema with the binaries.
package migrations

import "embed"

// FS holds the ordered .sql files applied at startup.
//
//go:embed *.sql
var FS embed.FS
