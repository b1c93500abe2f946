// Package migrations embeds the goose migrations of the CLI's sqlite state.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
