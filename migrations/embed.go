// Package migrations holds the versioned Postgres schema.
package migrations

import "embed"

// FS contains every NNNNNN_name.{up,down}.sql file
//
//go:embed *.sql
var FS embed.FS
