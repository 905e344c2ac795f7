package migrations

import "embed"

// Files contains SQL migrations embedded into the binary, named NNN_name.sql
// and applied in lexical order.
//
//go:embed *.sql
var Files embed.FS
