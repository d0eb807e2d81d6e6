// Package migrations embeds the Postgres schema shared by the services.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
