// Package migrations embeds the SQL migration files into the binary, so
// FieldPoint can migrate its database without the files present on disk.
package migrations

import "embed"

//go:embed *.sql
var files embed.FS

// FS exposes the embedded migration files.
var FS embed.FS = files
