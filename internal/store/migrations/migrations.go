// Package migrations embeds the SQL migration files for the smsd database.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
