// Package migrations embeds the goose SQL migrations for each relational
// dialect.
package migrations

import "embed"

//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS
