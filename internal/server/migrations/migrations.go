// Package migrations embeds the goose migrations for the PostgreSQL
// record codec.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
