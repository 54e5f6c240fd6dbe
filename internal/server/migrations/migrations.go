// Package migrations embeds the SQL schema applied by goose at start-up.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
