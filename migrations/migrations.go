// Package migrations embeds the postgres schema.
package migrations

import _ "embed"

//go:embed 001_init.sql
var Init string
