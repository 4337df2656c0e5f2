// Package db embeds the SQL migrations for the postgres run log.
package db

import "embed"

//go:embed migrations/*.sql
var Migrations embed.FS
