// Package migrations contains embedded SQL migrations for the worker journal.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
